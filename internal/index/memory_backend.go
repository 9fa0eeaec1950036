package index

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend is an in-memory Backend for tests and one-shot runs.
type MemoryBackend struct {
	mu       sync.RWMutex
	listings map[string]*Listing
	paths    map[string]string
	readOnly bool
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		listings: make(map[string]*Listing),
		paths:    make(map[string]string),
	}
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings = make(map[string]*Listing)
	m.paths = make(map[string]string)
	return nil
}

// PutListing implements Backend.
func (m *MemoryBackend) PutListing(ctx context.Context, l *Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return ErrReadOnly
	}

	if old, ok := m.paths[l.Path]; ok && old != l.Digest {
		delete(m.listings, old)
	}
	if moved, ok := m.listings[l.Digest]; ok && moved.Path != l.Path && m.paths[moved.Path] == l.Digest {
		delete(m.paths, moved.Path)
	}
	stored := *l
	stored.Graphs = append([]Entry(nil), l.Graphs...)
	m.listings[l.Digest] = &stored
	m.paths[l.Path] = l.Digest
	return nil
}

// GetListing implements Backend.
func (m *MemoryBackend) GetListing(ctx context.Context, digest string) (*Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.listings[digest]
	if !ok {
		return nil, nil
	}
	out := *l
	return &out, nil
}

// ListingsByPath implements Backend.
func (m *MemoryBackend) ListingsByPath(ctx context.Context, prefix string) ([]*Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var listings []*Listing
	for path, digest := range m.paths {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if l, ok := m.listings[digest]; ok {
			out := *l
			listings = append(listings, &out)
		}
	}
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].Path < listings[j].Path
	})
	return listings, nil
}

// RemoveListing implements Backend.
func (m *MemoryBackend) RemoveListing(ctx context.Context, digest string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return false, ErrReadOnly
	}

	l, ok := m.listings[digest]
	if !ok {
		return false, nil
	}
	delete(m.listings, digest)
	if m.paths[l.Path] == digest {
		delete(m.paths, l.Path)
	}
	return true, nil
}

// Stats implements Backend.
func (m *MemoryBackend) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{Listings: len(m.listings)}
	for _, l := range m.listings {
		s.Graphs += len(l.Graphs)
	}
	return s, nil
}
