package ingestion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/bgv-go/internal/bgv"
	"github.com/Benny93/bgv-go/internal/config"
	"github.com/Benny93/bgv-go/internal/index"
	"github.com/Benny93/bgv-go/internal/logging"
	"github.com/Benny93/bgv-go/internal/pool"
)

// Result summarizes an index run.
type Result struct {
	Files        int
	Graphs       int
	Unchanged    int
	Failed       int
	DurationSecs float64
}

// ProgressCallback is called with the phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Digest returns the hex SHA-256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ScanFile lists the graphs of the dump at path without materializing
// their bodies.
func ScanFile(ctx context.Context, path string, cfg config.Config) (*index.Listing, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Scan(ctx, path, content, cfg)
}

// Scan lists the graphs of an in-memory dump. path is recorded as is.
func Scan(ctx context.Context, path string, content []byte, cfg config.Config) (*index.Listing, error) {
	p := bgv.NewParser(bytes.NewReader(content), cfg.ParserOptions()...)
	version, err := p.ReadFileHeader(cfg.VersionCheck)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := p.SkipDocumentProps(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	listing := &index.Listing{
		Digest:    Digest(content),
		Path:      path,
		Version:   version.String(),
		IndexedAt: time.Now().UTC(),
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i, id, ok, err := p.ReadGraphPreheader()
		if err != nil {
			return nil, fmt.Errorf("%s: graph %d: %w", path, len(listing.Graphs), err)
		}
		if !ok {
			break
		}
		offset := p.Offset()
		header, err := p.ReadGraphHeader()
		if err != nil {
			return nil, fmt.Errorf("%s: graph %d: %w", path, i, err)
		}
		nodes, err := p.SkipGraph()
		if err != nil {
			return nil, fmt.Errorf("%s: graph %d: %w", path, i, err)
		}

		entry := index.Entry{
			Index:  i,
			ID:     id,
			Name:   bgv.GraphName(header),
			Nodes:  nodes,
			Offset: offset,
		}
		if n := len(header.Groups); n > 0 {
			entry.Group = pool.NameOf(header.Groups[n-1].Name)
		}
		listing.Graphs = append(listing.Graphs, entry)
	}
	return listing, nil
}

// IndexFile scans path and stores its listing unless the store already
// holds a listing with the same digest. It reports whether the file was
// scanned.
func IndexFile(ctx context.Context, path string, store index.Backend, cfg config.Config) (*index.Listing, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	cached, err := store.GetListing(ctx, Digest(content))
	if err != nil {
		return nil, false, err
	}
	if cached != nil && cached.Path == path {
		return cached, false, nil
	}

	listing, err := Scan(ctx, path, content, cfg)
	if err != nil {
		return nil, false, err
	}
	if err := store.PutListing(ctx, listing); err != nil {
		return nil, false, fmt.Errorf("storing listing: %w", err)
	}
	return listing, true, nil
}

// RunIndex walks dir and indexes every dump in parallel. A dump that fails
// to parse is logged and counted; it does not stop the run.
func RunIndex(
	ctx context.Context,
	dir string,
	store index.Backend,
	cfg config.Config,
	progress ProgressCallback,
) (*Result, error) {
	start := time.Now()
	logger := logging.FromContext(ctx)

	if progress != nil {
		progress("Walking dumps", 0.0)
	}
	dumps, err := WalkDumps(dir, cfg.Ignore)
	if err != nil {
		return nil, fmt.Errorf("walking dumps: %w", err)
	}
	if progress != nil {
		progress("Walking dumps", 1.0)
	}

	result := &Result{Files: len(dumps)}
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, dump := range dumps {
		g.Go(func() error {
			listing, scanned, err := IndexFile(gctx, dump.Path, store, cfg)

			mu.Lock()
			defer mu.Unlock()
			done++
			switch {
			case gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				logger.Warn("skipping dump", "path", dump.RelPath, "err", err)
				result.Failed++
			default:
				result.Graphs += len(listing.Graphs)
				if !scanned {
					result.Unchanged++
				}
				logger.Debug("indexed dump", "path", dump.RelPath, "graphs", len(listing.Graphs), "cached", !scanned)
			}
			if progress != nil {
				progress("Scanning graphs", float64(done)/float64(len(dumps)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.DurationSecs = time.Since(start).Seconds()
	return result, nil
}
