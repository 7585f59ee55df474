// Package keymap implements the name index: an open-addressing hash table
// with double hashing whose slots hold absolute item offsets.
//
// For a key hash h, a table of size L and rehash prime R the probe sequence is
//
//	slot0 = uint32(h) mod L
//	step  = 1 + uint32(h) mod R
//	slotN = (slot0 + N*step) mod L
//
// L is prime, so every step visits all slots.
package keymap

import (
	"errors"

	"github.com/hupe1980/gisdb/internal/format"
)

// ErrCapacity is returned when no table size can hold the requested count.
var ErrCapacity = errors.New("keymap: item count exceeds the largest table size")

// Size is one row of the size table.
type Size struct {
	Capacity  int32
	TableSize int32
	Rehash    int32
}

// sizes holds, per power-of-two capacity, the smallest twin prime pair
// (p-2, p) with p >= 1.3*capacity.
var sizes = []Size{
	{8, 13, 11},
	{16, 31, 29},
	{32, 43, 41},
	{64, 103, 101},
	{128, 181, 179},
	{256, 349, 347},
	{512, 811, 809},
	{1024, 1429, 1427},
	{2048, 2689, 2687},
	{4096, 5419, 5417},
	{8192, 10711, 10709},
	{16384, 21319, 21317},
	{32768, 42643, 42641},
	{65536, 85201, 85199},
	{131072, 170539, 170537},
	{262144, 340789, 340787},
	{524288, 681841, 681839},
	{1048576, 1363333, 1363331},
	{2097152, 2726389, 2726387},
	{4194304, 5452651, 5452649},
	{8388608, 10905511, 10905509},
	{16777216, 21810751, 21810749},
	{33554432, 43620781, 43620779},
	{67108864, 87241621, 87241619},
	{134217728, 174483301, 174483299},
	{268435456, 348966229, 348966227},
}

// MaxCapacity is the largest supported item count.
func MaxCapacity() int { return int(sizes[len(sizes)-1].Capacity) }

// SizeFor returns the smallest size whose capacity is at least n.
func SizeFor(n int) (Size, error) {
	for _, s := range sizes {
		if int64(s.Capacity) >= int64(n) {
			return s, nil
		}
	}
	return Size{}, ErrCapacity
}

// Probe returns the first slot and the step for hash h.
func Probe(h, tableSize, rehash int32) (slot, step uint32) {
	u := uint32(h)
	return u % uint32(tableSize), 1 + u%uint32(rehash)
}

func next(slot, step uint32, tableSize int32) uint32 {
	return uint32((uint64(slot) + uint64(step)) % uint64(tableSize))
}

// Entry is an item to be placed in the table.
type Entry struct {
	Hash   int32
	Offset int32
}

// Build places entries into a table of the given size and returns its slots.
// Entries are inserted in order.
func Build(entries []Entry, size Size) ([]int32, error) {
	if len(entries) > int(size.Capacity) {
		return nil, ErrCapacity
	}
	slots := make([]int32, size.TableSize)
	for i := range slots {
		slots[i] = format.Nil
	}
	for _, e := range entries {
		slot, step := Probe(e.Hash, size.TableSize, size.Rehash)
		for slots[slot] != format.Nil {
			slot = next(slot, step, size.TableSize)
		}
		slots[slot] = e.Offset
	}
	return slots, nil
}

// AppendTo appends the key map section (length, rehash, slots).
func AppendTo(dst []byte, slots []int32, rehash int32) []byte {
	dst = format.AppendInt32(dst, int32(len(slots)))
	dst = format.AppendInt32(dst, rehash)
	for _, s := range slots {
		dst = format.AppendInt32(dst, s)
	}
	return dst
}

// SectionSize returns the encoded size of a key map with tableSize slots.
func SectionSize(tableSize int32) int64 {
	return 8 + int64(tableSize)*format.SlotSize
}

// Table is a read-only view of a key map inside a mapped file.
type Table struct {
	data   []byte
	layout format.Layout
}

// Open returns the table described by l.
func Open(data []byte, l format.Layout) Table {
	return Table{data: data, layout: l}
}

// Matcher is called for each occupied slot on the probe path with the item
// offset stored there. It reports whether the item is the one sought.
type Matcher func(itemOff int32) (bool, error)

// Lookup probes for hash h. It stops at the first empty slot or the first
// slot for which match returns true. Visiting more occupied slots than the
// file has items means the probe chain never terminates, which is reported as
// corruption.
func (t Table) Lookup(h int32, match Matcher) (int32, bool, error) {
	l := t.layout
	if l.KeyMapLen == 0 || l.NItems == 0 {
		return 0, false, nil
	}

	slot, step := Probe(h, l.KeyMapLen, l.KeyMapRehash)
	for visited := int32(0); ; visited++ {
		if visited > l.NItems {
			return 0, false, format.Corrupt("key map", int64(t.slotOffset(slot)),
				"probe for hash %#x visited more than %d occupied slots", uint32(h), l.NItems)
		}

		off := format.Int32(t.data, t.slotOffset(slot))
		if off == format.Nil {
			return 0, false, nil
		}
		if _, ok := l.ItemIndex(off); !ok {
			return 0, false, format.Corrupt("key map", int64(t.slotOffset(slot)), "slot holds invalid item offset %d", off)
		}

		ok, err := match(off)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return off, true, nil
		}
		slot = next(slot, step, l.KeyMapLen)
	}
}

// Each calls fn for every occupied slot in slot order.
func (t Table) Each(fn func(slot int32, itemOff int32) error) error {
	for s := int32(0); s < t.layout.KeyMapLen; s++ {
		off := format.Int32(t.data, t.slotOffset(uint32(s)))
		if off == format.Nil {
			continue
		}
		if err := fn(s, off); err != nil {
			return err
		}
	}
	return nil
}

func (t Table) slotOffset(slot uint32) int32 {
	return t.layout.KeyMapOff + int32(slot)*format.SlotSize
}
