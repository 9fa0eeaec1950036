package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/bgv-go/internal/config"
	"github.com/Benny93/bgv-go/internal/index"
)

func TestProcessChanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tmpDir := t.TempDir()
	kept := filepath.Join(tmpDir, "kept.bgv")
	gone := filepath.Join(tmpDir, "gone.bgv")
	broken := filepath.Join(tmpDir, "broken.bgv")
	require.NoError(t, os.WriteFile(kept, dump(), 0o644))
	require.NoError(t, os.WriteFile(broken, []byte("BIGV"), 0o644))

	store := index.NewMemoryBackend()
	require.NoError(t, store.PutListing(ctx, &index.Listing{Digest: "stale", Path: gone}))

	processChanged(ctx, store, config.Default(), map[string]bool{kept: true, gone: true, broken: true})

	listings, err := store.ListingsByPath(ctx, tmpDir)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, kept, listings[0].Path)
	assert.Len(t, listings[0].Graphs, 2)
}

func TestRemoveListings_ExactPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := index.NewMemoryBackend()
	require.NoError(t, store.PutListing(ctx, &index.Listing{Digest: "a", Path: "/d/a.bgv"}))
	require.NoError(t, store.PutListing(ctx, &index.Listing{Digest: "b", Path: "/d/a.bgv.1/b.bgv"}))

	n, err := removeListings(ctx, store, "/d/a.bgv")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Listings)
}

func TestWatchDir(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	store := index.NewMemoryBackend()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- watchDir(ctx, tmpDir, store, config.Default(), 50*time.Millisecond)
	}()

	listed := func(path string) func() bool {
		return func() bool {
			listings, err := store.ListingsByPath(context.Background(), path)
			return err == nil && len(listings) == 1 && len(listings[0].Graphs) == 2
		}
	}

	path := filepath.Join(tmpDir, "answer.bgv")
	// The watcher may not be registered yet; keep writing until it notices.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, dump(), 0o644)
		return listed(path)()
	}, 5*time.Second, 100*time.Millisecond)

	sub := filepath.Join(tmpDir, "run2")
	require.NoError(t, os.Mkdir(sub, 0o755))
	nested := filepath.Join(sub, "nested.bgv")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(nested, dumpOf("nested"), 0o644)
		return listed(nested)()
	}, 5*time.Second, 100*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		listings, err := store.ListingsByPath(context.Background(), path)
		return err == nil && len(listings) == 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
