package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleListing(digest, path string, graphs int) *Listing {
	l := &Listing{
		Digest:    digest,
		Path:      path,
		Version:   "7.0",
		IndexedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for i := range graphs {
		l.Graphs = append(l.Graphs, Entry{
			Index:  i,
			ID:     int32(i + 1),
			Name:   "hashCode",
			Group:  "String.hashCode",
			Nodes:  10 * (i + 1),
			Offset: int64(100 * i),
		})
	}
	return l
}

// backends returns a fresh instance of every Backend implementation.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	mem := NewMemoryBackend()
	require.NoError(t, mem.Initialize("", false))

	bdg := NewBadgerBackend()
	require.NoError(t, bdg.Initialize(filepath.Join(t.TempDir(), "badger"), false))

	t.Cleanup(func() {
		mem.Close()
		bdg.Close()
	})
	return map[string]Backend{"Memory": mem, "Badger": bdg}
}

func TestBackend_PutGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleListing("aaa", "/dumps/a.bgv", 3)
			require.NoError(t, b.PutListing(ctx, want))

			got, err := b.GetListing(ctx, "aaa")
			require.NoError(t, err)
			require.NotNil(t, got)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("GetListing() mismatch (-want +got):\n%s", diff)
			}

			missing, err := b.GetListing(ctx, "zzz")
			assert.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestBackend_ReplaceByPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.PutListing(ctx, sampleListing("old", "/dumps/a.bgv", 1)))
			require.NoError(t, b.PutListing(ctx, sampleListing("new", "/dumps/a.bgv", 2)))

			old, err := b.GetListing(ctx, "old")
			require.NoError(t, err)
			assert.Nil(t, old, "stale listing should be dropped")

			listings, err := b.ListingsByPath(ctx, "/dumps/a.bgv")
			require.NoError(t, err)
			require.Len(t, listings, 1)
			assert.Equal(t, "new", listings[0].Digest)

			stats, err := b.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{Listings: 1, Graphs: 2}, stats)
		})
	}
}

func TestBackend_SameContentMoves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.PutListing(ctx, sampleListing("same", "/dumps/a.bgv", 1)))
			require.NoError(t, b.PutListing(ctx, sampleListing("same", "/dumps/copy.bgv", 1)))

			listings, err := b.ListingsByPath(ctx, "/dumps/")
			require.NoError(t, err)
			require.Len(t, listings, 1)
			assert.Equal(t, "/dumps/copy.bgv", listings[0].Path)

			removed, err := b.RemoveListing(ctx, "same")
			require.NoError(t, err)
			assert.True(t, removed)
			listings, err = b.ListingsByPath(ctx, "/dumps/")
			require.NoError(t, err)
			assert.Empty(t, listings)
		})
	}
}

func TestBackend_ListingsByPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.PutListing(ctx, sampleListing("c", "/dumps/run2/c.bgv", 1)))
			require.NoError(t, b.PutListing(ctx, sampleListing("a", "/dumps/run1/a.bgv", 1)))
			require.NoError(t, b.PutListing(ctx, sampleListing("b", "/dumps/run1/b.bgv", 1)))
			require.NoError(t, b.PutListing(ctx, sampleListing("x", "/other/x.bgv", 1)))

			tests := []struct {
				prefix string
				want   []string
			}{
				{"/dumps/run1/", []string{"/dumps/run1/a.bgv", "/dumps/run1/b.bgv"}},
				{"/dumps/", []string{"/dumps/run1/a.bgv", "/dumps/run1/b.bgv", "/dumps/run2/c.bgv"}},
				{"/nowhere/", nil},
			}
			for _, tt := range tests {
				listings, err := b.ListingsByPath(ctx, tt.prefix)
				require.NoError(t, err)
				var paths []string
				for _, l := range listings {
					paths = append(paths, l.Path)
				}
				assert.Equal(t, tt.want, paths, tt.prefix)
			}
		})
	}
}

func TestBackend_RemoveListing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.PutListing(ctx, sampleListing("aaa", "/dumps/a.bgv", 2)))

			removed, err := b.RemoveListing(ctx, "aaa")
			require.NoError(t, err)
			assert.True(t, removed)

			removed, err = b.RemoveListing(ctx, "aaa")
			require.NoError(t, err)
			assert.False(t, removed)

			listings, err := b.ListingsByPath(ctx, "/dumps/")
			require.NoError(t, err)
			assert.Empty(t, listings)

			stats, err := b.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{}, stats)
		})
	}
}

func TestBadgerBackend_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("ReopenKeepsListings", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		dbPath := filepath.Join(t.TempDir(), "badger")

		b1 := NewBadgerBackend()
		require.NoError(t, b1.Initialize(dbPath, false))
		require.NoError(t, b1.PutListing(ctx, sampleListing("aaa", "/dumps/a.bgv", 2)))
		require.NoError(t, b1.Close())

		b2 := NewBadgerBackend()
		require.NoError(t, b2.Initialize(dbPath, true))
		defer b2.Close()

		got, err := b2.GetListing(ctx, "aaa")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Len(t, got.Graphs, 2)

		err = b2.PutListing(ctx, sampleListing("bbb", "/dumps/b.bgv", 1))
		assert.ErrorIs(t, err, ErrReadOnly)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		t.Parallel()
		b := NewBadgerBackend()
		err := b.Initialize("/nonexistent/path/that/does/not/exist", true)
		assert.Error(t, err)
	})

	t.Run("CloseTwice", func(t *testing.T) {
		t.Parallel()
		b := NewBadgerBackend()
		require.NoError(t, b.Initialize(filepath.Join(t.TempDir(), "badger"), false))
		assert.NoError(t, b.Close())
		assert.NoError(t, b.Close())
	})
}

func TestMemoryBackend_ReadOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Initialize("", true))

	assert.ErrorIs(t, b.PutListing(ctx, sampleListing("a", "/a.bgv", 1)), ErrReadOnly)
	_, err := b.RemoveListing(ctx, "a")
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryBackend_CopiesListings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewMemoryBackend()
	l := sampleListing("a", "/a.bgv", 1)
	require.NoError(t, b.PutListing(ctx, l))
	l.Graphs[0].Name = "mutated"

	got, err := b.GetListing(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hashCode", got.Graphs[0].Name)
}
