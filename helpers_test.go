package gisdb

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/internal/format"
	"github.com/hupe1980/gisdb/testutil"
	"github.com/stretchr/testify/require"
)

type place struct {
	Base
	Kind string
	Rank int32
}

type placeSchema struct{}

func (placeSchema) ID() string       { return "gisdb/test.Place" }
func (placeSchema) PayloadSize() int { return 8 }

func (s placeSchema) EncodePayload(dst []byte, it Item, strs StringWriter) error {
	p, ok := it.(*place)
	if !ok {
		return &ErrItemType{Schema: s.ID(), Item: it}
	}
	format.PutInt32(dst, strs.Intern(p.Kind))
	format.PutInt32(dst[4:], p.Rank)
	return nil
}

func (placeSchema) DecodeItem(base Base, payload []byte, strs StringReader) (Item, error) {
	kind, err := strs.String(format.Int32(payload, 0))
	if err != nil {
		return nil, err
	}
	return &place{Base: base, Kind: kind, Rank: format.Int32(payload, 4)}, nil
}

func newPlace(name string, lat, lon, alt float64) *place {
	return &place{
		Base: Base{Name: name, Position: geo.Position{Lat: lat, Lon: lon, Alt: alt}},
		Kind: "town",
	}
}

func randomPlaces(rng *testutil.RNG, n int, box testutil.Box) []*place {
	names := rng.UniqueIdents(n)
	kinds := []string{"town", "city", "village", "hamlet"}
	out := make([]*place, n)
	for i, pos := range rng.Positions(n, box) {
		out[i] = &place{
			Base: Base{Name: names[i], Position: pos},
			Kind: kinds[rng.Intn(len(kinds))],
			Rank: int32(rng.Intn(1000)),
		}
	}
	return out
}

// buildDB builds places into a temp file and opens it.
func buildDB(t *testing.T, places []*place, opts ...Option) *DB {
	t.Helper()

	b := NewBuilder(placeSchema{}, opts...)
	for _, p := range places {
		require.NoError(t, b.AddItem(p))
	}
	path := filepath.Join(t.TempDir(), "places.gdb")
	require.NoError(t, b.Build(path))

	db, err := Open(path, append([]Option{WithSchemas(placeSchema{})}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func points(places []*place) []geo.Point {
	out := make([]geo.Point, len(places))
	for i, p := range places {
		out[i] = geo.NewPoint(nil, p.Position)
	}
	return out
}
