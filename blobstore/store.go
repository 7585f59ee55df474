package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing immutable database files.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible
	// when the returned WritableBlob is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob in one call.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadAt follows io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// Size returns the size of the blob in bytes.
	Size() int64
	// ReadRange returns a reader over length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data to stable storage where supported.
	Sync() error
}

// Aborter is implemented by WritableBlobs that can discard a partial write.
// After Abort the blob is not created and Close is a no-op.
type Aborter interface {
	Abort() error
}

// Abort discards w if it supports Abort and closes it otherwise.
func Abort(w WritableBlob) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	// This is a zero-copy operation if supported.
	Bytes() ([]byte, error)
}

// ReadAllChunkSize is the range size ReadAll fetches per request.
const ReadAllChunkSize = 8 << 20

// ReadAll reads the whole blob into memory, fetching chunks of
// ReadAllChunkSize in parallel.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	size := b.Size()
	if size < 0 {
		return nil, fmt.Errorf("blobstore: invalid blob size %d", size)
	}
	buf := make([]byte, size)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for off := int64(0); off < size; off += ReadAllChunkSize {
		end := min(off+ReadAllChunkSize, size)
		g.Go(func() error {
			n, err := b.ReadAt(ctx, buf[off:end], off)
			if err != nil && !(errors.Is(err, io.EOF) && int64(n) == end-off) {
				return err
			}
			if int64(n) != end-off {
				return fmt.Errorf("blobstore: short read at %d: %d of %d bytes", off, n, end-off)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buf, nil
}

// ErrInvalidOffset is returned by ReadAt for a negative offset.
var ErrInvalidOffset = errors.New("blobstore: invalid offset")
