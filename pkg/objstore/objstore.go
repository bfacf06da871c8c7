// Package objstore stores artwork bytes extracted by the metadata scanner.
// Each object is keyed by the UUID the scanner mints when it persists a
// piece of cover art (embedded picture or best folder image).
package objstore

import (
	"context"
	"io"
)

// ArtworkStore is the interface artwork storage backends implement.
type ArtworkStore interface {
	// Put stores a new artwork object. r is read exactly once; size is the
	// total byte count, or -1 if unknown.
	Put(ctx context.Context, id string, r io.Reader, size int64) error
	// Open returns a reader for the full artwork object.
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	// GetRange returns a reader for [offset, offset+length) bytes of the object.
	GetRange(ctx context.Context, id string, offset, length int64) (io.ReadCloser, error)
	// Delete removes an object. A non-existent id is not an error.
	Delete(ctx context.Context, id string) error
	// Exists reports whether the object with the given id is present.
	Exists(ctx context.Context, id string) (bool, error)
	// Size returns the byte length of the object.
	Size(ctx context.Context, id string) (int64, error)
}
