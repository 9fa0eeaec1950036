package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for different data types
const (
	prefixListing = "l:" // listing by digest
	prefixPath    = "p:" // path -> digest
)

// BadgerBackend is a BadgerDB-backed Backend.
type BadgerBackend struct {
	db       *badger.DB
	readOnly bool
	mu       sync.RWMutex
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db
	b.readOnly = readOnly
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func listingKey(digest string) []byte { return []byte(prefixListing + digest) }

func pathKey(path string) []byte { return []byte(prefixPath + path) }

// PutListing stores l and points its path at it. A listing previously
// stored for the same path under another digest is deleted, and a path
// previously holding the same digest loses its listing.
func (b *BadgerBackend) PutListing(ctx context.Context, l *Listing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readOnly {
		return ErrReadOnly
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling listing: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		old, err := getDigest(txn, l.Path)
		if err != nil {
			return err
		}
		if old != "" && old != l.Digest {
			if err := txn.Delete(listingKey(old)); err != nil {
				return fmt.Errorf("deleting stale listing: %w", err)
			}
		}
		moved, err := getListing(txn, l.Digest)
		if err != nil {
			return err
		}
		if moved != nil && moved.Path != l.Path {
			current, err := getDigest(txn, moved.Path)
			if err != nil {
				return err
			}
			if current == l.Digest {
				if err := txn.Delete(pathKey(moved.Path)); err != nil {
					return fmt.Errorf("deleting moved path: %w", err)
				}
			}
		}
		if err := txn.Set(listingKey(l.Digest), data); err != nil {
			return fmt.Errorf("setting listing: %w", err)
		}
		if err := txn.Set(pathKey(l.Path), []byte(l.Digest)); err != nil {
			return fmt.Errorf("setting path: %w", err)
		}
		return nil
	})
}

func getDigest(txn *badger.Txn, path string) (string, error) {
	item, err := txn.Get(pathKey(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting path: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", fmt.Errorf("reading path: %w", err)
	}
	return string(val), nil
}

func getListing(txn *badger.Txn, digest string) (*Listing, error) {
	item, err := txn.Get(listingKey(digest))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}

	var l Listing
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &l)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling listing: %w", err)
	}
	return &l, nil
}

// GetListing returns the listing with the given digest, or nil if not found.
func (b *BadgerBackend) GetListing(ctx context.Context, digest string) (*Listing, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var l *Listing
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		l, err = getListing(txn, digest)
		return err
	})
	return l, err
}

// ListingsByPath returns the current listing of every path under prefix.
func (b *BadgerBackend) ListingsByPath(ctx context.Context, prefix string) ([]*Listing, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var listings []*Listing
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pathKey(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		var digests []string
		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("reading path: %w", err)
			}
			digests = append(digests, string(val))
		}

		for _, digest := range digests {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := getListing(txn, digest)
			if err != nil {
				return err
			}
			if l != nil {
				listings = append(listings, l)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(listings, func(i, j int) bool {
		return listings[i].Path < listings[j].Path
	})
	return listings, nil
}

// RemoveListing deletes a listing and its path key.
func (b *BadgerBackend) RemoveListing(ctx context.Context, digest string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readOnly {
		return false, ErrReadOnly
	}

	removed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		l, err := getListing(txn, digest)
		if err != nil || l == nil {
			return err
		}
		if err := txn.Delete(listingKey(digest)); err != nil {
			return fmt.Errorf("deleting listing: %w", err)
		}
		current, err := getDigest(txn, l.Path)
		if err != nil {
			return err
		}
		if current == digest {
			if err := txn.Delete(pathKey(l.Path)); err != nil {
				return fmt.Errorf("deleting path: %w", err)
			}
		}
		removed = true
		return nil
	})
	return removed, err
}

// Stats counts listings and the graphs they describe.
func (b *BadgerBackend) Stats(ctx context.Context) (Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var s Stats
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixListing)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var l Listing
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &l)
			}); err != nil {
				return fmt.Errorf("unmarshaling listing: %w", err)
			}
			s.Listings++
			s.Graphs += len(l.Graphs)
		}
		return nil
	})
	return s, err
}
