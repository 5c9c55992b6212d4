package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for accessing immutable artifact blobs.
//
// Engram artifacts are written once per configuration fingerprint and
// never modified, so the surface is deliberately small: whole-blob put,
// read handle, delete.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically. An existing blob with the same
	// name is replaced.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// Blob is a read-only handle to an artifact blob.
type Blob interface {
	io.ReaderAt
	io.Closer

	// Size returns the size of the blob in bytes.
	Size() int64

	// Bytes returns the blob contents. The slice is valid until the
	// blob is closed; mmap-backed implementations return it zero-copy.
	Bytes() ([]byte, error)
}
