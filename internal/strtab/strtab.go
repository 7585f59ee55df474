// Package strtab implements the string table section: interned strings
// addressed by a dense int32 index.
package strtab

import (
	"math"
	"unicode/utf8"

	"github.com/hupe1980/gisdb/internal/format"
)

// Builder interns strings. The first occurrence of a string wins its index.
type Builder struct {
	index map[string]int32
	strs  []string
	bytes int64
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int32)}
}

// Intern returns the index of s, adding it if needed.
func (b *Builder) Intern(s string) int32 {
	if i, ok := b.index[s]; ok {
		return i
	}
	i := int32(len(b.strs))
	b.index[s] = i
	b.strs = append(b.strs, s)
	b.bytes += int64(len(s))
	return i
}

// Len returns the number of distinct strings.
func (b *Builder) Len() int { return len(b.strs) }

// Size returns the encoded size of the section in bytes.
func (b *Builder) Size() int64 {
	return 4 + int64(len(b.strs))*format.EntrySize + 4 + b.bytes
}

// AppendTo appends the section to dst. Entry offsets are relative to the
// start of the string bytes.
func (b *Builder) AppendTo(dst []byte) []byte {
	dst = format.AppendInt32(dst, int32(len(b.strs)))
	var off int32
	for _, s := range b.strs {
		dst = format.AppendInt32(dst, int32(len(s)))
		dst = format.AppendInt32(dst, off)
		off += int32(len(s))
	}
	dst = format.AppendInt32(dst, int32(b.bytes))
	for _, s := range b.strs {
		dst = append(dst, s...)
	}
	return dst
}

// Fits reports whether the section can be addressed with int32 offsets.
func (b *Builder) Fits() bool {
	return b.Size() <= math.MaxInt32 && len(b.strs) <= math.MaxInt32/format.EntrySize
}

// Decode reads all strings of the table described by l.
func Decode(data []byte, l format.Layout) ([]string, error) {
	strs := make([]string, l.NStrings)

	for i := int32(0); i < l.NStrings; i++ {
		pos := l.EntriesOff + i*format.EntrySize
		n := format.Int32(data, pos)
		off := format.Int32(data, pos+4)

		if n < 0 || off < 0 || int64(off)+int64(n) > int64(l.NStringBytes) {
			return nil, format.Corrupt("string table", int64(pos), "string %d spans [%d,+%d) outside byte section", i, off, n)
		}
		start := l.BytesOff + off
		s := data[start : start+n]
		if !utf8.Valid(s) {
			return nil, format.Corrupt("string table", int64(start), "string %d is not valid UTF-8", i)
		}
		strs[i] = string(s)
	}
	return strs, nil
}
