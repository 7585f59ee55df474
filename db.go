package gisdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/internal/format"
	"github.com/hupe1980/gisdb/internal/kdtree"
	"github.com/hupe1980/gisdb/internal/keymap"
	"github.com/hupe1980/gisdb/internal/mmap"
	"github.com/hupe1980/gisdb/internal/strtab"
	"github.com/hupe1980/gisdb/pack"
)

// DB is an open, read-only database.
//
// Queries read the mapped file directly and are safe for concurrent use.
// Close must not run concurrently with queries.
type DB struct {
	data   []byte
	closer io.Closer
	source string

	layout  format.Layout
	schema  Schema
	strings []string
	keys    keymap.Table
	tree    kdtree.Tree

	opts   options
	closed atomic.Bool
}

// Open memory-maps the database at path. Packed files (see package pack) are
// decompressed into memory instead.
func Open(path string, opts ...Option) (*DB, error) {
	o := applyOptions(opts)
	start := time.Now()

	db, err := openPath(path, o)
	o.metricsCollector.RecordOpen(time.Since(start), err)
	o.logger.LogOpen(context.Background(), path, dbSize(db), dbStrings(db), err)
	return db, err
}

func openPath(path string, o options) (*DB, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gisdb: open %s: %w", path, err)
	}

	data := m.Bytes()
	if pack.IsPacked(data) {
		raw, err := pack.Decode(data)
		_ = m.Close()
		if err != nil {
			return nil, fmt.Errorf("gisdb: unpack %s: %w", path, err)
		}
		return newDB(raw, nil, path, o)
	}

	_ = m.Advise(mmap.AccessRandom)
	db, err := newDB(data, m, path, o)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return db, nil
}

// OpenBytes opens a database image held in memory. data must not be
// modified while the DB is open.
func OpenBytes(data []byte, opts ...Option) (*DB, error) {
	o := applyOptions(opts)
	start := time.Now()

	if pack.IsPacked(data) {
		raw, err := pack.Decode(data)
		if err != nil {
			o.metricsCollector.RecordOpen(time.Since(start), err)
			return nil, err
		}
		data = raw
	}

	db, err := newDB(data, nil, "memory", o)
	o.metricsCollector.RecordOpen(time.Since(start), err)
	o.logger.LogOpen(context.Background(), "memory", dbSize(db), dbStrings(db), err)
	return db, err
}

// OpenBlob opens a database stored in a blob store. Mappable blobs are used
// in place; other blobs are read fully into memory. The DB takes ownership
// of blob and closes it on Close.
func OpenBlob(ctx context.Context, blob blobstore.Blob, opts ...Option) (*DB, error) {
	o := applyOptions(opts)
	start := time.Now()

	db, err := openBlob(ctx, blob, o)
	o.metricsCollector.RecordOpen(time.Since(start), err)
	o.logger.LogOpen(ctx, "blob", dbSize(db), dbStrings(db), err)
	return db, err
}

func openBlob(ctx context.Context, blob blobstore.Blob, o options) (*DB, error) {
	var (
		data []byte
		err  error
	)
	if m, ok := blob.(blobstore.Mappable); ok {
		data, err = m.Bytes()
	} else {
		data, err = blobstore.ReadAll(ctx, blob)
	}
	if err != nil {
		_ = blob.Close()
		return nil, fmt.Errorf("gisdb: read blob: %w", err)
	}

	if pack.IsPacked(data) {
		raw, err := pack.Decode(data)
		_ = blob.Close()
		if err != nil {
			return nil, fmt.Errorf("gisdb: unpack blob: %w", err)
		}
		return newDB(raw, nil, "blob", o)
	}

	db, err := newDB(data, blob, "blob", o)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	return db, nil
}

func newDB(data []byte, closer io.Closer, source string, o options) (*DB, error) {
	l, err := format.Parse(data)
	if err != nil {
		return nil, err
	}
	strs, err := strtab.Decode(data, l)
	if err != nil {
		return nil, err
	}
	if len(strs) == 0 {
		return nil, format.Corrupt("string table", int64(l.EntriesOff), "missing schema identifier")
	}

	schema, ok := o.registry.Lookup(strs[0])
	if !ok {
		return nil, &ErrUnknownSchemaID{ID: strs[0]}
	}
	if want := int32(format.HeaderSize + schema.PayloadSize()); l.ItemSize != want {
		return nil, fmt.Errorf("%w: %s records are %d bytes, file has %d", ErrSchemaMismatch, schema.ID(), want, l.ItemSize)
	}

	return &DB{
		data:    data,
		closer:  closer,
		source:  source,
		layout:  l,
		schema:  schema,
		strings: strs,
		keys:    keymap.Open(data, l),
		tree:    kdtree.Open(data, l),
		opts:    o,
	}, nil
}

func dbSize(db *DB) int {
	if db == nil {
		return 0
	}
	return db.Size()
}

func dbStrings(db *DB) int {
	if db == nil {
		return 0
	}
	return len(db.strings)
}

// Close releases the mapping. It is idempotent.
func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return nil
	}
	if db.closer != nil {
		return db.closer.Close()
	}
	return nil
}

// Size returns the number of items.
func (db *DB) Size() int { return int(db.layout.NItems) }

// IsEmpty reports whether the database holds no items.
func (db *DB) IsEmpty() bool { return db.layout.NItems == 0 }

// Schema returns the schema resolved from the file.
func (db *DB) Schema() Schema { return db.schema }

// Strings returns the number of entries in the string table.
func (db *DB) Strings() int { return len(db.strings) }

// String implements StringReader.
func (db *DB) String(idx int32) (string, error) {
	if idx < 0 || int(idx) >= len(db.strings) {
		return "", format.Corrupt("string table", int64(db.layout.EntriesOff), "string index %d out of range", idx)
	}
	return db.strings[idx], nil
}

// GetItem returns the item named name. A missing name is not an error.
func (db *DB) GetItem(name string) (it Item, found bool, err error) {
	if db.closed.Load() {
		return nil, false, ErrClosed
	}
	start := time.Now()
	defer func() {
		db.opts.metricsCollector.RecordLookup(time.Since(start), found, err)
		db.logCorruption("get", err)
	}()

	h := db.opts.nameHash(name)
	off, ok, err := db.keys.Lookup(h, func(off int32) (bool, error) {
		if format.Int32(db.data, off+format.HashOff) != h {
			return false, nil
		}
		s, err := db.String(format.Int32(db.data, off+format.NameIdxOff))
		if err != nil {
			return false, err
		}
		return s == name, nil
	})
	if err != nil || !ok {
		return nil, false, err
	}

	it, err = db.decode(off)
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// Nearest returns the item closest to pos. found is false only for an
// empty database.
func (db *DB) Nearest(pos geo.Position) (Neighbor, bool, error) {
	return db.NearestPoint(geo.NewPoint(db.opts.transformer, pos))
}

// NearestPoint is Nearest for a target whose ECEF coordinates are known.
func (db *DB) NearestPoint(p geo.Point) (n Neighbor, found bool, err error) {
	if db.closed.Load() {
		return Neighbor{}, false, ErrClosed
	}
	start := time.Now()
	defer func() {
		returned := 0
		if found {
			returned = 1
		}
		db.opts.metricsCollector.RecordNearest(1, returned, time.Since(start), err)
		db.logCorruption("nearest", err)
	}()

	var buf [1]kdtree.Result
	res, err := db.tree.Search(p, 1, buf[:0])
	if err != nil || len(res) == 0 {
		return Neighbor{}, false, err
	}
	it, err := db.decode(res[0].Offset)
	if err != nil {
		return Neighbor{}, false, err
	}
	return Neighbor{Item: it, Distance: res[0].Meters()}, true, nil
}

// NNearest returns up to k items ordered by increasing distance from pos.
// Equidistant items are ordered by their position in the file.
func (db *DB) NNearest(pos geo.Position, k int) ([]Neighbor, error) {
	return db.NNearestPoint(geo.NewPoint(db.opts.transformer, pos), k)
}

// NNearestPoint is NNearest for a target whose ECEF coordinates are known.
func (db *DB) NNearestPoint(p geo.Point, k int) (out []Neighbor, err error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	start := time.Now()
	defer func() {
		db.opts.metricsCollector.RecordNearest(k, len(out), time.Since(start), err)
		db.logCorruption("nnearest", err)
	}()

	if n := db.Size(); k > n {
		k = n
	}
	res, err := db.tree.Search(p, k, make([]kdtree.Result, 0, k))
	if err != nil {
		return nil, err
	}

	out = make([]Neighbor, len(res))
	for i, r := range res {
		it, err := db.decode(r.Offset)
		if err != nil {
			return nil, err
		}
		out[i] = Neighbor{Item: it, Distance: r.Meters()}
	}
	return out, nil
}

// Items calls fn for every item in file order until fn returns false.
func (db *DB) Items(fn func(Item) bool) error {
	if db.closed.Load() {
		return ErrClosed
	}
	for i := int32(0); i < db.layout.NItems; i++ {
		it, err := db.decode(db.layout.ItemOffset(i))
		if err != nil {
			return err
		}
		if !fn(it) {
			return nil
		}
	}
	return nil
}

// Verify checks the structural invariants of the file: the kd-tree and the
// key map each reference every item exactly once, stored hashes match the
// names, and every name resolves to its own record.
func (db *DB) Verify() error {
	if db.closed.Load() {
		return ErrClosed
	}
	l := db.layout
	n := uint64(l.NItems)

	inTree := roaring.New()
	err := db.tree.Walk(func(nodeOff, itemOff int32) error {
		idx, _ := l.ItemIndex(itemOff)
		if !inTree.CheckedAdd(uint32(idx)) {
			return format.Corrupt("kd-tree", int64(nodeOff), "item %d referenced twice", idx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if c := inTree.GetCardinality(); c != n {
		return format.Corrupt("kd-tree", int64(l.NodesOff), "tree reaches %d of %d items", c, n)
	}

	inKeys := roaring.New()
	err = db.keys.Each(func(slot, itemOff int32) error {
		slotOff := int64(l.KeyMapOff) + int64(slot)*format.SlotSize
		idx, ok := l.ItemIndex(itemOff)
		if !ok {
			return format.Corrupt("key map", slotOff, "slot holds invalid item offset %d", itemOff)
		}
		if !inKeys.CheckedAdd(uint32(idx)) {
			return format.Corrupt("key map", slotOff, "item %d referenced twice", idx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if c := inKeys.GetCardinality(); c != n {
		return format.Corrupt("key map", int64(l.KeyMapOff), "table references %d of %d items", c, n)
	}

	for i := int32(0); i < l.NItems; i++ {
		off := l.ItemOffset(i)
		name, err := db.String(format.Int32(db.data, off+format.NameIdxOff))
		if err != nil {
			return err
		}
		if h := format.Int32(db.data, off+format.HashOff); h != db.opts.nameHash(name) {
			return format.Corrupt("item store", int64(off), "stored hash %#x does not match name %q", uint32(h), name)
		}
		got, ok, err := db.keys.Lookup(db.opts.nameHash(name), func(o int32) (bool, error) {
			s, err := db.String(format.Int32(db.data, o+format.NameIdxOff))
			return s == name, err
		})
		if err != nil {
			return err
		}
		if !ok || got != off {
			return format.Corrupt("key map", int64(off), "name %q does not resolve to its record", name)
		}
	}
	return nil
}

func (db *DB) decode(off int32) (Item, error) {
	d := db.data
	name, err := db.String(format.Int32(d, off+format.NameIdxOff))
	if err != nil {
		return nil, err
	}
	p := db.tree.Point(off)
	base := Base{
		Name:     name,
		Hash:     format.Int32(d, off+format.HashOff),
		ECEF:     p.ECEF,
		Position: p.Position,
	}
	payload := d[off+format.HeaderSize : off+db.layout.ItemSize]
	return db.schema.DecodeItem(base, payload, db)
}

func (db *DB) logCorruption(op string, err error) {
	if err != nil && errors.Is(err, ErrCorrupt) {
		db.opts.logger.LogCorruption(context.Background(), op, err)
	}
}
