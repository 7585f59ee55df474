// Package format defines the on-disk layout of a gisdb file.
//
// All integers are little-endian. String offsets are relative to the start
// of the string bytes; key map slots and kd-tree nodes hold absolute int32
// byte offsets from the start of the file.
//
//	i32 magic
//	i32 nStrings
//	nStrings × (i32 length, i32 offset into string bytes)
//	i32 nStringBytes
//	nStringBytes × byte
//	i32 nItems
//	i32 itemRecordSize
//	nItems × item record
//	i32 keyMapLength
//	i32 keyMapRehashPrime
//	keyMapLength × i32 slot
//	nItems × (i32 itemOffset, i32 leftNodeOffset, i32 rightNodeOffset)
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Magic identifies a gisdb file ("GIDB" as little-endian bytes).
const Magic int32 = 0x42444947

const (
	// EntrySize is the size of one string table entry.
	EntrySize = 8
	// NodeSize is the size of one kd-tree node.
	NodeSize = 12
	// SlotSize is the size of one key map slot.
	SlotSize = 4
	// Nil marks an empty key map slot or a missing child node.
	Nil int32 = -1
)

// Item record header. The schema payload follows at HeaderSize.
const (
	HashOff    = 0
	ECEFXOff   = 4
	ECEFYOff   = 12
	ECEFZOff   = 20
	LatOff     = 28
	LonOff     = 36
	AltOff     = 44
	NameIdxOff = 52
	HeaderSize = 56
)

// ErrCorrupt is wrapped by every structural error found while reading a file.
var ErrCorrupt = errors.New("gisdb: corrupt database")

// CorruptError describes a structural inconsistency found at a file offset.
type CorruptError struct {
	Section string
	Offset  int64
	Reason  string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("gisdb: corrupt %s at offset %d: %s", e.Section, e.Offset, e.Reason)
}

// Unwrap returns ErrCorrupt.
func (e *CorruptError) Unwrap() error { return ErrCorrupt }

// Corrupt returns a *CorruptError.
func Corrupt(section string, off int64, format string, args ...any) error {
	return &CorruptError{Section: section, Offset: off, Reason: fmt.Sprintf(format, args...)}
}

// Layout holds the section positions of a file. It is derived from the
// header integers alone.
type Layout struct {
	Size int64

	NStrings     int32
	EntriesOff   int32
	NStringBytes int32
	BytesOff     int32

	NItems   int32
	ItemSize int32
	ItemsOff int32

	KeyMapLen    int32
	KeyMapRehash int32
	KeyMapOff    int32

	NodesOff int32
}

// ItemOffset returns the absolute offset of item i.
func (l Layout) ItemOffset(i int32) int32 { return l.ItemsOff + i*l.ItemSize }

// ItemIndex maps an item offset back to its index, reporting whether off
// addresses the start of a record.
func (l Layout) ItemIndex(off int32) (int32, bool) {
	if off < l.ItemsOff || l.ItemSize <= 0 {
		return 0, false
	}
	rel := off - l.ItemsOff
	if rel%l.ItemSize != 0 {
		return 0, false
	}
	i := rel / l.ItemSize
	return i, i < l.NItems
}

// NodeOffset returns the absolute offset of kd node i.
func (l Layout) NodeOffset(i int32) int32 { return l.NodesOff + i*NodeSize }

// NodeIndex maps a node offset back to its index.
func (l Layout) NodeIndex(off int32) (int32, bool) {
	if off < l.NodesOff {
		return 0, false
	}
	rel := off - l.NodesOff
	if rel%NodeSize != 0 {
		return 0, false
	}
	i := rel / NodeSize
	return i, i < l.NItems
}

// Parse reads the header integers of data and computes the layout, checking
// every section against len(data).
func Parse(data []byte) (Layout, error) {
	l := Layout{Size: int64(len(data))}
	r := reader{data: data}

	magic, err := r.int32("header")
	if err != nil {
		return l, err
	}
	if magic != Magic {
		return l, Corrupt("header", 0, "bad magic %#x", uint32(magic))
	}

	if l.NStrings, err = r.count("string table"); err != nil {
		return l, err
	}
	l.EntriesOff = r.pos
	if err := r.skip("string table", int64(l.NStrings)*EntrySize); err != nil {
		return l, err
	}
	if l.NStringBytes, err = r.count("string table"); err != nil {
		return l, err
	}
	l.BytesOff = r.pos
	if err := r.skip("string table", int64(l.NStringBytes)); err != nil {
		return l, err
	}

	if l.NItems, err = r.count("item store"); err != nil {
		return l, err
	}
	if l.ItemSize, err = r.count("item store"); err != nil {
		return l, err
	}
	if l.ItemSize < HeaderSize {
		return l, Corrupt("item store", int64(r.pos-4), "record size %d below header size", l.ItemSize)
	}
	l.ItemsOff = r.pos
	if err := r.skip("item store", int64(l.NItems)*int64(l.ItemSize)); err != nil {
		return l, err
	}

	if l.KeyMapLen, err = r.count("key map"); err != nil {
		return l, err
	}
	if l.KeyMapRehash, err = r.count("key map"); err != nil {
		return l, err
	}
	if l.NItems > 0 && (l.KeyMapLen < l.NItems || l.KeyMapRehash <= 0) {
		return l, Corrupt("key map", int64(r.pos-8), "table size %d cannot hold %d items", l.KeyMapLen, l.NItems)
	}
	l.KeyMapOff = r.pos
	if err := r.skip("key map", int64(l.KeyMapLen)*SlotSize); err != nil {
		return l, err
	}

	l.NodesOff = r.pos
	if err := r.skip("kd-tree", int64(l.NItems)*NodeSize); err != nil {
		return l, err
	}

	return l, nil
}

type reader struct {
	data []byte
	pos  int32
}

func (r *reader) int32(section string) (int32, error) {
	if int64(r.pos)+4 > int64(len(r.data)) {
		return 0, Corrupt(section, int64(r.pos), "truncated")
	}
	v := Int32(r.data, r.pos)
	r.pos += 4
	return v, nil
}

func (r *reader) count(section string) (int32, error) {
	v, err := r.int32(section)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, Corrupt(section, int64(r.pos-4), "negative count %d", v)
	}
	return v, nil
}

func (r *reader) skip(section string, n int64) error {
	end := int64(r.pos) + n
	if end > int64(len(r.data)) || end > math.MaxInt32 {
		return Corrupt(section, int64(r.pos), "section of %d bytes exceeds file size %d", n, len(r.data))
	}
	r.pos = int32(end)
	return nil
}

// Int32 reads a little-endian int32 at off.
func Int32(b []byte, off int32) int32 {
	return int32(binary.LittleEndian.Uint32(b[off:]))
}

// Float64 reads a little-endian float64 at off.
func Float64(b []byte, off int32) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}

// PutInt32 writes v at b[0:4].
func PutInt32(b []byte, v int32) {
	binary.LittleEndian.PutUint32(b, uint32(v))
}

// PutFloat64 writes v at b[0:8].
func PutFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

// AppendInt32 appends v to dst.
func AppendInt32(dst []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(dst, uint32(v))
}

// AppendFloat64 appends v to dst.
func AppendFloat64(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}
