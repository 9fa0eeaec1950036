// Package index persists graph listings of BGV dump files so that listing a
// large dump does not require scanning it again.
//
// A listing is keyed by the SHA-256 digest of the file content; a secondary
// path key points at the digest most recently indexed for that path.
package index

import (
	"context"
	"errors"
	"time"
)

// ErrReadOnly is returned by writes to a backend opened read-only.
var ErrReadOnly = errors.New("index is read-only")

// Entry describes one graph of a dump file.
type Entry struct {
	// Index is the position of the graph in the file, starting at 0.
	Index int `json:"index"`

	// ID is the graph id written by the compiler.
	ID int32 `json:"id"`

	// Name is the formatted graph name.
	Name string `json:"name"`

	// Group is the name of the innermost enclosing group, if any.
	Group string `json:"group,omitempty"`

	// Nodes is the number of nodes in the graph body.
	Nodes int `json:"nodes"`

	// Offset is the byte offset of the graph header, just past the graph id.
	Offset int64 `json:"offset"`
}

// Listing is the graph table of contents of one dump file.
type Listing struct {
	Digest    string    `json:"digest"`
	Path      string    `json:"path"`
	Version   string    `json:"version"`
	Graphs    []Entry   `json:"graphs"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Stats summarises the contents of a backend.
type Stats struct {
	Listings int
	Graphs   int
}

// Backend stores listings.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Initialize opens or creates the backend at path.
	// If readOnly is true, writes fail.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// PutListing stores l, replacing any listing previously stored for the
	// same path. Files with identical content share one listing, recorded
	// under the path stored last.
	PutListing(ctx context.Context, l *Listing) error

	// GetListing returns the listing with the given digest, or nil.
	GetListing(ctx context.Context, digest string) (*Listing, error)

	// ListingsByPath returns every listing whose path starts with prefix,
	// ordered by path.
	ListingsByPath(ctx context.Context, prefix string) ([]*Listing, error)

	// RemoveListing deletes the listing with the given digest.
	// Returns false if there was none.
	RemoveListing(ctx context.Context, digest string) (bool, error)

	// Stats counts stored listings and graphs.
	Stats(ctx context.Context) (Stats, error)
}
