package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultBlockSize is the cache block size used when none is given.
const DefaultBlockSize = 64 << 10

type blockKey struct {
	name  string
	block int64
}

// CachingStore wraps a BlobStore and caches fixed-size blocks of blob data
// in an LRU. Concurrent misses on the same block share one backend read.
type CachingStore struct {
	inner     BlobStore
	cache     *lru.Cache[blockKey, []byte]
	group     singleflight.Group
	blockSize int64
}

// NewCachingStore creates a CachingStore holding up to maxBlocks blocks.
// blockSize defaults to DefaultBlockSize if <= 0.
func NewCachingStore(inner BlobStore, maxBlocks int, blockSize int64) (*CachingStore, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	c, err := lru.New[blockKey, []byte](maxBlocks)
	if err != nil {
		return nil, fmt.Errorf("blobstore: cache: %w", err)
	}
	return &CachingStore{
		inner:     inner,
		cache:     c,
		blockSize: blockSize,
	}, nil
}

// Len returns the number of cached blocks.
func (s *CachingStore) Len() int { return s.cache.Len() }

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{
		inner: b,
		store: s,
		name:  name,
	}, nil
}

// Create passes through; the blob is invalidated so readers of a replaced
// blob do not see stale blocks.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	for _, k := range s.cache.Keys() {
		if k.name == name {
			s.cache.Remove(k)
		}
	}
}

// CachingBlob wraps a Blob and uses the block cache for reads.
type CachingBlob struct {
	inner Blob
	store *CachingStore
	name  string
}

func (b *CachingBlob) Close() error {
	return b.inner.Close()
}

func (b *CachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *CachingBlob) key(blk int64) blockKey {
	return blockKey{name: b.name, block: blk}
}

func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}
	want := p
	if rest := size - off; int64(len(want)) > rest {
		want = want[:rest]
	}

	bs := b.store.blockSize
	startBlock := off / bs
	endBlock := (off + int64(len(want)) - 1) / bs

	if err := b.fillCache(ctx, startBlock, endBlock); err != nil {
		return 0, err
	}

	total := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		data, err := b.block(ctx, blk)
		if err != nil {
			return total, err
		}
		blkStart := blk * bs
		from := max(blkStart, off)
		to := min(blkStart+int64(len(data)), off+int64(len(want)))
		if to <= from {
			break
		}
		total += copy(want[from-off:to-off], data[from-blkStart:])
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fillCache loads the missing blocks of [startBlock, endBlock], fetching
// each contiguous run of misses with a single backend read.
func (b *CachingBlob) fillCache(ctx context.Context, startBlock, endBlock int64) error {
	type run struct{ start, count int64 }
	var runs []run

	for blk := startBlock; blk <= endBlock; blk++ {
		if b.store.cache.Contains(b.key(blk)) {
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].start+runs[n-1].count == blk {
			runs[n-1].count++
		} else {
			runs = append(runs, run{start: blk, count: 1})
		}
	}
	if len(runs) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	bs := b.store.blockSize
	size := b.Size()
	for _, r := range runs {
		g.Go(func() error {
			byteStart := r.start * bs
			byteEnd := min(byteStart+r.count*bs, size)
			if byteStart >= byteEnd {
				return nil
			}

			buf := make([]byte, byteEnd-byteStart)
			n, err := b.inner.ReadAt(ctx, buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]

			for i := int64(0); i < r.count; i++ {
				lo := i * bs
				if lo >= int64(len(buf)) {
					break
				}
				hi := min(lo+bs, int64(len(buf)))
				// Copy so one block does not pin the whole run.
				b.store.cache.Add(b.key(r.start+i), append([]byte(nil), buf[lo:hi]...))
			}
			return nil
		})
	}
	return g.Wait()
}

// block returns one block, from the cache or from the backend.
func (b *CachingBlob) block(ctx context.Context, blk int64) ([]byte, error) {
	key := b.key(blk)
	if data, ok := b.store.cache.Get(key); ok {
		return data, nil
	}

	v, err, _ := b.store.group.Do(fmt.Sprintf("%s#%d", b.name, blk), func() (any, error) {
		if data, ok := b.store.cache.Get(key); ok {
			return data, nil
		}
		bs := b.store.blockSize
		buf := make([]byte, bs)
		n, err := b.inner.ReadAt(ctx, buf, blk*bs)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		data := buf[:n]
		if n > 0 {
			b.store.cache.Add(key, data)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (b *CachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(&contextSectionReader{blob: b, ctx: ctx, off: off, limit: off + length}), nil
}

// contextSectionReader adapts a Blob range to io.Reader.
type contextSectionReader struct {
	blob  Blob
	ctx   context.Context
	off   int64
	limit int64
}

func (r *contextSectionReader) Read(p []byte) (n int, err error) {
	if r.off >= r.limit {
		return 0, io.EOF
	}
	if remaining := r.limit - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err = r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}
	return n, err
}
