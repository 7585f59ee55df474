// Package aviation defines the item schemas of the aviation reference
// databases: airports, runways, navaids and fixes.
package aviation

import (
	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/internal/format"
)

const idPrefix = "gisdb/aviation."

// Schemas returns all aviation schemas.
func Schemas() []gisdb.Schema {
	return []gisdb.Schema{AirportSchema{}, RunwaySchema{}, NavaidSchema{}, FixSchema{}}
}

// Registry returns a registry holding all aviation schemas.
func Registry() *gisdb.Registry {
	return gisdb.NewRegistry(Schemas()...)
}

// Kinds lists the short kind names accepted by SchemaByKind.
func Kinds() []string {
	return []string{"airport", "runway", "navaid", "fix"}
}

// KindOf returns the short kind name of an aviation schema.
func KindOf(s gisdb.Schema) (string, bool) {
	switch s.(type) {
	case AirportSchema:
		return "airport", true
	case RunwaySchema:
		return "runway", true
	case NavaidSchema:
		return "navaid", true
	case FixSchema:
		return "fix", true
	default:
		return "", false
	}
}

// SchemaByKind returns the schema for a short kind name as used on the
// command line: "airport", "runway", "navaid" or "fix".
func SchemaByKind(kind string) (gisdb.Schema, bool) {
	switch kind {
	case "airport":
		return AirportSchema{}, true
	case "runway":
		return RunwaySchema{}, true
	case "navaid":
		return NavaidSchema{}, true
	case "fix":
		return FixSchema{}, true
	default:
		return nil, false
	}
}

// Airport is an aerodrome keyed by its identifier (e.g. "KJFK").
type Airport struct {
	gisdb.Base
	Title     string `json:"title" msgpack:"title"`
	Country   string `json:"country" msgpack:"country"`
	ARTCC     string `json:"artcc,omitempty" msgpack:"artcc,omitempty"`
	Elevation int32  `json:"elevation_ft" msgpack:"elevation_ft"`
	Runways   int32  `json:"runways" msgpack:"runways"`
}

// Runway is one runway end keyed by "<airport>/<ident>" (e.g. "KJFK/04L").
// Its position is the threshold.
type Runway struct {
	gisdb.Base
	Airport string  `json:"airport" msgpack:"airport"`
	Ident   string  `json:"ident" msgpack:"ident"`
	Heading float64 `json:"heading" msgpack:"heading"`
	// Elevation of the threshold in feet.
	Elevation int32 `json:"elevation_ft" msgpack:"elevation_ft"`
	// ThresholdCrossingHeight is relative to Elevation, in feet.
	ThresholdCrossingHeight int32 `json:"tch_ft,omitempty" msgpack:"tch_ft,omitempty"`
	// DisplacedThreshold is in nautical miles.
	DisplacedThreshold float64 `json:"displaced_nm,omitempty" msgpack:"displaced_nm,omitempty"`
}

// Navaid is a radio navigation aid keyed by its identifier.
type Navaid struct {
	gisdb.Base
	Type  string `json:"type" msgpack:"type"`
	Title string `json:"title" msgpack:"title"`
	// Frequency in kHz for NDBs, MHz otherwise.
	Frequency float64 `json:"frequency" msgpack:"frequency"`
}

// Fix is a named waypoint.
type Fix struct {
	gisdb.Base
	Region string `json:"region,omitempty" msgpack:"region,omitempty"`
}

// payload reads and writes fixed-width fields in order.
type payload struct {
	buf []byte
	pos int32
}

func (p *payload) putInt32(v int32) {
	format.PutInt32(p.buf[p.pos:], v)
	p.pos += 4
}

func (p *payload) putFloat64(v float64) {
	format.PutFloat64(p.buf[p.pos:], v)
	p.pos += 8
}

func (p *payload) putString(s string, strs gisdb.StringWriter) {
	p.putInt32(strs.Intern(s))
}

func (p *payload) int32() int32 {
	v := format.Int32(p.buf, p.pos)
	p.pos += 4
	return v
}

func (p *payload) float64() float64 {
	v := format.Float64(p.buf, p.pos)
	p.pos += 8
	return v
}

func (p *payload) string(strs gisdb.StringReader, err *error) string {
	idx := p.int32()
	if *err != nil {
		return ""
	}
	s, e := strs.String(idx)
	if e != nil {
		*err = e
	}
	return s
}
