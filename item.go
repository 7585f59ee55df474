package gisdb

import "github.com/hupe1980/gisdb/geo"

// Base holds the fields every item carries. Schema item types embed it.
type Base struct {
	// Name is the unique lookup key.
	Name string `json:"name" msgpack:"name"`
	// Hash is the cached name hash. The builder computes it.
	Hash int32 `json:"-" msgpack:"-"`
	// ECEF is computed from Position when left zero.
	ECEF     geo.ECEF     `json:"-" msgpack:"-"`
	Position geo.Position `json:"position" msgpack:"position"`
}

// Common returns b. It lets any type embedding Base satisfy Item.
func (b *Base) Common() *Base { return b }

// Point returns both coordinate representations of the item.
func (b *Base) Point() geo.Point {
	return geo.Point{ECEF: b.ECEF, Position: b.Position}
}

// Item is a database record. Concrete types embed Base and add the fields
// their Schema stores in the record payload.
type Item interface {
	Common() *Base
}

// StringWriter interns a string and returns its string table index.
type StringWriter interface {
	Intern(s string) int32
}

// StringReader resolves a string table index.
type StringReader interface {
	String(idx int32) (string, error)
}

// Schema describes one item type: its identifier, stored in the file as
// string 0, and the fixed-size payload that follows the common record header.
type Schema interface {
	// ID identifies the schema in the file.
	ID() string

	// PayloadSize returns the number of payload bytes per record.
	PayloadSize() int

	// EncodePayload writes the payload of it into dst, which has length
	// PayloadSize. Strings are stored as indices obtained from strs.
	EncodePayload(dst []byte, it Item, strs StringWriter) error

	// DecodeItem builds an item from the common fields and its payload.
	DecodeItem(base Base, payload []byte, strs StringReader) (Item, error)
}

// Neighbor is a spatial query result.
type Neighbor struct {
	Item Item
	// Distance is in meters.
	Distance float64
}
