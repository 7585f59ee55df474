package gisdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/internal/format"
	"github.com/hupe1980/gisdb/internal/fs"
	"github.com/hupe1980/gisdb/internal/kdtree"
	"github.com/hupe1980/gisdb/internal/keymap"
	"github.com/hupe1980/gisdb/internal/strtab"
)

// Builder accumulates items of one schema and serializes them into a
// database file. A Builder is not safe for concurrent use.
type Builder struct {
	schema Schema
	opts   options

	strs     *strtab.Builder
	records  []record
	payloads []byte
	byName   map[string]int
	live     int
	closed   bool
}

type record struct {
	hash    int32
	nameIdx int32
	ecef    geo.ECEF
	pos     geo.Position
	payload int
	dropped bool
}

// NewBuilder returns a Builder for items of schema.
func NewBuilder(schema Schema, opts ...Option) *Builder {
	b := &Builder{
		schema: schema,
		opts:   applyOptions(opts),
		strs:   strtab.NewBuilder(),
		byName: make(map[string]int),
	}
	// The schema identifier is always string 0.
	b.strs.Intern(schema.ID())
	return b
}

// Schema returns the builder's schema.
func (b *Builder) Schema() Schema { return b.schema }

// Len returns the number of items that Build would write.
func (b *Builder) Len() int { return b.live }

// AddItem appends it. The name hash is computed here; ECEF coordinates are
// derived from the position when it.Common().ECEF is zero.
//
// AddItem panics if the Builder was closed.
func (b *Builder) AddItem(it Item) error {
	if b.closed {
		panic("gisdb: AddItem on closed Builder")
	}
	if it == nil || it.Common() == nil {
		return &ErrItemType{Schema: b.schema.ID(), Item: it}
	}
	base := it.Common()

	prev, dup := b.byName[base.Name]
	if dup && b.opts.duplicates == DuplicateReject {
		return fmt.Errorf("%w: %q", ErrDuplicateName, base.Name)
	}

	start := len(b.payloads)
	b.payloads = append(b.payloads, make([]byte, b.schema.PayloadSize())...)
	if err := b.schema.EncodePayload(b.payloads[start:], it, b.strs); err != nil {
		b.payloads = b.payloads[:start]
		return err
	}

	if dup {
		b.records[prev].dropped = true
		b.live--
		b.opts.logger.LogDuplicate(context.Background(), base.Name)
	}

	ecef := base.ECEF
	if ecef.IsZero() {
		ecef = b.opts.transformer.ToECEF(base.Position)
	}

	b.byName[base.Name] = len(b.records)
	b.records = append(b.records, record{
		hash:    b.opts.nameHash(base.Name),
		nameIdx: b.strs.Intern(base.Name),
		ecef:    ecef,
		pos:     base.Position,
		payload: start,
	})
	b.live++
	return nil
}

// Close releases the accumulated items. Further AddItem calls panic.
func (b *Builder) Close() {
	b.closed = true
	b.records = nil
	b.payloads = nil
	b.byName = nil
	b.live = 0
}

// Build writes the database to path. The file is written to a temporary
// file in the same directory and renamed into place.
func (b *Builder) Build(path string) (err error) {
	ctx := context.Background()
	start := time.Now()
	var size int64
	defer func() {
		b.opts.metricsCollector.RecordBuild(b.live, size, time.Since(start), err)
		b.opts.logger.LogBuild(ctx, path, b.live, size, time.Since(start), err)
	}()

	data, err := b.encode()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(b.opts.fsys, path, data); err != nil {
		return fmt.Errorf("gisdb: write %s: %w", path, err)
	}
	size = int64(len(data))
	return nil
}

// BuildTo writes the database as blob name of store.
func (b *Builder) BuildTo(ctx context.Context, store blobstore.BlobStore, name string) (err error) {
	start := time.Now()
	var size int64
	defer func() {
		b.opts.metricsCollector.RecordBuild(b.live, size, time.Since(start), err)
		b.opts.logger.LogBuild(ctx, name, b.live, size, time.Since(start), err)
	}()

	data, err := b.encode()
	if err != nil {
		return err
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("gisdb: create blob %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		_ = blobstore.Abort(w)
		return fmt.Errorf("gisdb: write blob %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gisdb: close blob %s: %w", name, err)
	}
	size = int64(len(data))
	return nil
}

// WriteTo writes the database image to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	start := time.Now()
	data, err := b.encode()
	if err != nil {
		b.opts.metricsCollector.RecordBuild(b.live, 0, time.Since(start), err)
		return 0, err
	}
	n, err := io.Copy(w, bytes.NewReader(data))
	b.opts.metricsCollector.RecordBuild(b.live, n, time.Since(start), err)
	return n, err
}

// Bytes returns the database image.
func (b *Builder) Bytes() ([]byte, error) {
	return b.encode()
}

func (b *Builder) encode() ([]byte, error) {
	if b.live == 0 {
		return nil, ErrNoItems
	}
	return b.encodeImage()
}

// encodeImage serializes the live records. Unlike encode it accepts an empty
// builder and produces a valid empty database.
func (b *Builder) encodeImage() ([]byte, error) {
	live := make([]int, 0, b.live)
	for i := range b.records {
		if !b.records[i].dropped {
			live = append(live, i)
		}
	}
	n := int64(len(live))

	size, err := keymap.SizeFor(len(live))
	if err != nil {
		return nil, translateError(err)
	}

	itemSize := int64(format.HeaderSize + b.schema.PayloadSize())
	stringsEnd := 4 + b.strs.Size()
	itemsOff := stringsEnd + 8
	itemsEnd := itemsOff + n*itemSize
	nodesOff := itemsEnd + keymap.SectionSize(size.TableSize)
	total := nodesOff + n*format.NodeSize
	if total > math.MaxInt32 || !b.strs.Fits() {
		return nil, fmt.Errorf("%w: file of %d bytes exceeds int32 offsets", ErrCapacityExceeded, total)
	}

	itemOff := func(i int32) int32 { return int32(itemsOff + int64(i)*itemSize) }

	buf := make([]byte, 0, total)
	buf = format.AppendInt32(buf, format.Magic)
	buf = b.strs.AppendTo(buf)

	buf = format.AppendInt32(buf, int32(n))
	buf = format.AppendInt32(buf, int32(itemSize))

	entries := make([]keymap.Entry, len(live))
	points := make([]geo.ECEF, len(live))
	payloadSize := b.schema.PayloadSize()
	for i, ri := range live {
		r := &b.records[ri]
		buf = format.AppendInt32(buf, r.hash)
		buf = format.AppendFloat64(buf, r.ecef.X)
		buf = format.AppendFloat64(buf, r.ecef.Y)
		buf = format.AppendFloat64(buf, r.ecef.Z)
		buf = format.AppendFloat64(buf, r.pos.Lat)
		buf = format.AppendFloat64(buf, r.pos.Lon)
		buf = format.AppendFloat64(buf, r.pos.Alt)
		buf = format.AppendInt32(buf, r.nameIdx)
		buf = append(buf, b.payloads[r.payload:r.payload+payloadSize]...)

		entries[i] = keymap.Entry{Hash: r.hash, Offset: itemOff(int32(i))}
		points[i] = r.ecef
	}

	slots, err := keymap.Build(entries, size)
	if err != nil {
		return nil, translateError(err)
	}
	buf = keymap.AppendTo(buf, slots, size.Rehash)
	buf = kdtree.AppendTo(buf, kdtree.Build(points), itemOff, int32(nodesOff))

	if int64(len(buf)) != total {
		return nil, fmt.Errorf("gisdb: encoded %d bytes, expected %d", len(buf), total)
	}
	return buf, nil
}

func writeFileAtomic(fsys fs.FileSystem, path string, data []byte) (err error) {
	f, err := fsys.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	closed := false
	defer func() {
		if err != nil {
			if !closed {
				_ = f.Close()
			}
			_ = fsys.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	closed = true
	if err = f.Close(); err != nil {
		return err
	}
	if err = fsys.Chmod(tmp, 0o644); err != nil {
		return err
	}
	return fsys.Rename(tmp, path)
}
