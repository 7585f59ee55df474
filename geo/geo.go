// Package geo provides the coordinate types and the WGS84 transform used by gisdb.
//
// Positions are geodetic (degrees, meters above the ellipsoid). ECEF coordinates
// are Earth-Centered-Earth-Fixed Cartesian meters.
package geo

import "math"

const (
	// MeanEarthRadius is the IUGG mean Earth radius in meters.
	MeanEarthRadius = 6371008.8

	// SphericalThreshold is the squared ECEF distance (m²) above which the
	// ordering metric switches to the great-circle distance on the mean sphere.
	SphericalThreshold = 1e10

	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
	wgs84B  = wgs84A * (1 - wgs84F)
	degToRd = math.Pi / 180
	rdToDeg = 180 / math.Pi
)

// Position is a geodetic position.
type Position struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lon float64 `json:"lon" msgpack:"lon"`
	Alt float64 `json:"alt,omitempty" msgpack:"alt,omitempty"`
}

// ECEF is an Earth-Centered-Earth-Fixed coordinate in meters.
type ECEF struct {
	X, Y, Z float64
}

// Axis returns the coordinate on axis 0 (X), 1 (Y) or 2 (Z).
func (e ECEF) Axis(axis int) float64 {
	switch axis {
	case 0:
		return e.X
	case 1:
		return e.Y
	default:
		return e.Z
	}
}

// IsZero reports whether all coordinates are zero.
func (e ECEF) IsZero() bool {
	return e.X == 0 && e.Y == 0 && e.Z == 0
}

// Point carries both representations of one location. Spatial queries need
// the ECEF coordinates for the tree descent and the geodetic ones for the
// long-range metric.
type Point struct {
	ECEF     ECEF
	Position Position
}

// Transformer converts geodetic positions to ECEF.
type Transformer interface {
	ToECEF(p Position) ECEF
}

// WGS84 is the default Transformer.
type WGS84 struct{}

// ToECEF implements Transformer.
func (WGS84) ToECEF(p Position) ECEF {
	lat := p.Lat * degToRd
	lon := p.Lon * degToRd
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return ECEF{
		X: (n + p.Alt) * cosLat * cosLon,
		Y: (n + p.Alt) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + p.Alt) * sinLat,
	}
}

// ToPosition converts ECEF back to geodetic coordinates using Bowring's method.
func (WGS84) ToPosition(e ECEF) Position {
	p := math.Hypot(e.X, e.Y)
	if p == 0 {
		lat := 90.0
		if e.Z < 0 {
			lat = -90
		}
		return Position{Lat: lat, Alt: math.Abs(e.Z) - wgs84B}
	}

	ep2 := (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	theta := math.Atan2(e.Z*wgs84A, p*wgs84B)
	sinT, cosT := math.Sincos(theta)

	lat := math.Atan2(e.Z+ep2*wgs84B*sinT*sinT*sinT, p-wgs84E2*wgs84A*cosT*cosT*cosT)
	lon := math.Atan2(e.Y, e.X)

	sinLat := math.Sin(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	alt := p/math.Cos(lat) - n

	return Position{Lat: lat * rdToDeg, Lon: lon * rdToDeg, Alt: alt}
}

// NewPoint builds a Point from a position using t (WGS84 when nil).
func NewPoint(t Transformer, p Position) Point {
	if t == nil {
		t = WGS84{}
	}
	return Point{ECEF: t.ToECEF(p), Position: p}
}

// SquaredEuclidean returns the squared straight-line distance in m².
func SquaredEuclidean(a, b ECEF) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

// SphericalDistance returns the great-circle distance in meters on the mean
// Earth sphere using the spherical law of cosines. Altitude is ignored.
func SphericalDistance(a, b Position) float64 {
	lat1 := a.Lat * degToRd
	lat2 := b.Lat * degToRd
	dLon := (b.Lon - a.Lon) * degToRd

	c := math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(dLon)
	c = math.Max(-1, math.Min(1, c))

	return MeanEarthRadius * math.Acos(c)
}

// OrderDistance returns the squared distance used to rank items. Up to
// SphericalThreshold it is the squared ECEF distance; beyond that it is the
// squared great-circle distance.
func OrderDistance(a, b Point) float64 {
	d2 := SquaredEuclidean(a.ECEF, b.ECEF)
	if d2 <= SphericalThreshold {
		return d2
	}
	d := SphericalDistance(a.Position, b.Position)
	return d * d
}

// Distance returns OrderDistance in meters.
func Distance(a, b Point) float64 {
	return math.Sqrt(OrderDistance(a, b))
}
