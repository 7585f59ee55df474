package aviation

import "github.com/hupe1980/gisdb"

// AirportSchema stores Airport items.
type AirportSchema struct{}

func (AirportSchema) ID() string       { return idPrefix + "Airport" }
func (AirportSchema) PayloadSize() int { return 20 }

func (s AirportSchema) EncodePayload(dst []byte, it gisdb.Item, strs gisdb.StringWriter) error {
	a, ok := it.(*Airport)
	if !ok {
		return &gisdb.ErrItemType{Schema: s.ID(), Item: it}
	}
	p := payload{buf: dst}
	p.putString(a.Title, strs)
	p.putString(a.Country, strs)
	p.putString(a.ARTCC, strs)
	p.putInt32(a.Elevation)
	p.putInt32(a.Runways)
	return nil
}

func (AirportSchema) DecodeItem(base gisdb.Base, buf []byte, strs gisdb.StringReader) (gisdb.Item, error) {
	var err error
	p := payload{buf: buf}
	a := &Airport{Base: base}
	a.Title = p.string(strs, &err)
	a.Country = p.string(strs, &err)
	a.ARTCC = p.string(strs, &err)
	a.Elevation = p.int32()
	a.Runways = p.int32()
	if err != nil {
		return nil, err
	}
	return a, nil
}

// RunwaySchema stores Runway items.
type RunwaySchema struct{}

func (RunwaySchema) ID() string       { return idPrefix + "Runway" }
func (RunwaySchema) PayloadSize() int { return 32 }

func (s RunwaySchema) EncodePayload(dst []byte, it gisdb.Item, strs gisdb.StringWriter) error {
	r, ok := it.(*Runway)
	if !ok {
		return &gisdb.ErrItemType{Schema: s.ID(), Item: it}
	}
	p := payload{buf: dst}
	p.putString(r.Airport, strs)
	p.putString(r.Ident, strs)
	p.putFloat64(r.Heading)
	p.putInt32(r.Elevation)
	p.putInt32(r.ThresholdCrossingHeight)
	p.putFloat64(r.DisplacedThreshold)
	return nil
}

func (RunwaySchema) DecodeItem(base gisdb.Base, buf []byte, strs gisdb.StringReader) (gisdb.Item, error) {
	var err error
	p := payload{buf: buf}
	r := &Runway{Base: base}
	r.Airport = p.string(strs, &err)
	r.Ident = p.string(strs, &err)
	r.Heading = p.float64()
	r.Elevation = p.int32()
	r.ThresholdCrossingHeight = p.int32()
	r.DisplacedThreshold = p.float64()
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NavaidSchema stores Navaid items.
type NavaidSchema struct{}

func (NavaidSchema) ID() string       { return idPrefix + "Navaid" }
func (NavaidSchema) PayloadSize() int { return 16 }

func (s NavaidSchema) EncodePayload(dst []byte, it gisdb.Item, strs gisdb.StringWriter) error {
	n, ok := it.(*Navaid)
	if !ok {
		return &gisdb.ErrItemType{Schema: s.ID(), Item: it}
	}
	p := payload{buf: dst}
	p.putString(n.Type, strs)
	p.putString(n.Title, strs)
	p.putFloat64(n.Frequency)
	return nil
}

func (NavaidSchema) DecodeItem(base gisdb.Base, buf []byte, strs gisdb.StringReader) (gisdb.Item, error) {
	var err error
	p := payload{buf: buf}
	n := &Navaid{Base: base}
	n.Type = p.string(strs, &err)
	n.Title = p.string(strs, &err)
	n.Frequency = p.float64()
	if err != nil {
		return nil, err
	}
	return n, nil
}

// FixSchema stores Fix items.
type FixSchema struct{}

func (FixSchema) ID() string       { return idPrefix + "Fix" }
func (FixSchema) PayloadSize() int { return 4 }

func (s FixSchema) EncodePayload(dst []byte, it gisdb.Item, strs gisdb.StringWriter) error {
	f, ok := it.(*Fix)
	if !ok {
		return &gisdb.ErrItemType{Schema: s.ID(), Item: it}
	}
	p := payload{buf: dst}
	p.putString(f.Region, strs)
	return nil
}

func (FixSchema) DecodeItem(base gisdb.Base, buf []byte, strs gisdb.StringReader) (gisdb.Item, error) {
	var err error
	p := payload{buf: buf}
	f := &Fix{Base: base}
	f.Region = p.string(strs, &err)
	if err != nil {
		return nil, err
	}
	return f, nil
}
