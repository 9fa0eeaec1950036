package ingestion

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Benny93/bgv-go/internal/config"
	"github.com/Benny93/bgv-go/internal/index"
	"github.com/Benny93/bgv-go/internal/logging"
)

// DebounceInterval is how long the watcher waits after the last event on a
// batch of dumps before re-indexing it. Compilers write dumps incrementally.
const DebounceInterval = 2 * time.Second

// WatchDir monitors dir for dump changes and keeps store up to date.
// Blocks until the context is cancelled.
func WatchDir(ctx context.Context, dir string, store index.Backend, cfg config.Config) error {
	return watchDir(ctx, dir, store, cfg, DebounceInterval)
}

func watchDir(ctx context.Context, dir string, store index.Backend, cfg config.Config, debounce time.Duration) error {
	logger := logging.FromContext(ctx)

	matcher, err := loadMatcher(dir, cfg.Ignore)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(dir, path); rel != "." {
			if isHidden(d.Name()) || matcher.Match(splitPath(rel), true) {
				return filepath.SkipDir
			}
		}
		return watcher.Add(path)
	})
	if err != nil {
		return err
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop() // Don't start yet

	logger.Info("watching for dumps", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn("cannot watch directory", "dir", event.Name, "err", err)
					}
					continue
				}
			}
			rel, err := filepath.Rel(dir, event.Name)
			if err != nil || !isDump(event.Name) || matcher.Match(splitPath(rel), false) {
				continue
			}
			changed[event.Name] = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "err", err)

		case <-batchTimer.C:
			processChanged(ctx, store, cfg, changed)
			changed = make(map[string]bool)
		}
	}
}

// processChanged re-indexes dumps that still exist and drops the listings of
// dumps that were removed.
func processChanged(ctx context.Context, store index.Backend, cfg config.Config, changed map[string]bool) {
	logger := logging.FromContext(ctx)

	for path := range changed {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			n, err := removeListings(ctx, store, path)
			if err != nil {
				logger.Error("removing listing", "path", path, "err", err)
			} else if n > 0 {
				logger.Info("removed dump", "path", path)
			}
			continue
		}

		listing, scanned, err := IndexFile(ctx, path, store, cfg)
		if err != nil {
			// Partially written dumps fail here and are picked up by the
			// next write event.
			logger.Warn("cannot index dump", "path", path, "err", err)
			continue
		}
		if scanned {
			logger.Info("indexed dump", "path", path, "graphs", len(listing.Graphs))
		}
	}
}

// removeListings drops the listing stored for exactly path.
func removeListings(ctx context.Context, store index.Backend, path string) (int, error) {
	listings, err := store.ListingsByPath(ctx, path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range listings {
		if l.Path != path {
			continue
		}
		removed, err := store.RemoveListing(ctx, l.Digest)
		if err != nil {
			return n, err
		}
		if removed {
			n++
		}
	}
	return n, nil
}
