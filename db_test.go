package gisdb

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/internal/format"
	"github.com/hupe1980/gisdb/pack"
	"github.com/hupe1980/gisdb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_RoundTrip(t *testing.T) {
	rng := testutil.NewRNG(4711)
	places := randomPlaces(rng, 500, testutil.World)
	db := buildDB(t, places)

	assert.Equal(t, len(places), db.Size())
	assert.False(t, db.IsEmpty())
	assert.Equal(t, "gisdb/test.Place", db.Schema().ID())

	for _, want := range places {
		it, ok, err := db.GetItem(want.Name)
		require.NoError(t, err)
		require.True(t, ok, want.Name)

		got := it.(*place)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Position, got.Position)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Rank, got.Rank)
		assert.Equal(t, geo.WGS84{}.ToECEF(want.Position), got.ECEF)
		assert.NotZero(t, got.Hash)
	}

	_, ok, err := db.GetItem("NOT-THERE")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Verify())
}

func TestDB_GetItem_HashCollisions(t *testing.T) {
	collide := withNameHash(func(string) int32 { return 12345 })

	places := []*place{
		newPlace("ALPHA", 0, 0, 0),
		newPlace("BRAVO", 1, 1, 0),
		newPlace("CHARLIE", 2, 2, 0),
		newPlace("DELTA", 3, 3, 0),
		newPlace("ALPHA2", 4, 4, 0),
	}
	db := buildDB(t, places, collide)

	for _, p := range places {
		it, ok, err := db.GetItem(p.Name)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, p.Name, it.Common().Name)
		assert.Equal(t, p.Position, it.Common().Position)
	}

	_, ok, err := db.GetItem("ECHO")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Verify())
}

func TestDB_Nearest_MatchesBruteForce(t *testing.T) {
	boxes := map[string]testutil.Box{
		"World":    testutil.World,
		"Europe":   {MinLat: 35, MaxLat: 70, MinLon: -10, MaxLon: 30, MaxAlt: 2000},
		"Terminal": {MinLat: 40.5, MaxLat: 40.9, MinLon: -74.2, MaxLon: -73.6, MaxAlt: 100},
	}

	for name, box := range boxes {
		t.Run(name, func(t *testing.T) {
			rng := testutil.NewRNG(99)
			places := randomPlaces(rng, 1000, box)
			db := buildDB(t, places)
			pts := points(places)

			for _, q := range rng.Positions(200, box) {
				q.Alt = 0
				target := geo.NewPoint(nil, q)

				n, ok, err := db.Nearest(q)
				require.NoError(t, err)
				require.True(t, ok)

				want := testutil.NearestK(pts, target, 1)[0]
				assert.Equal(t, places[want.Index].Name, n.Item.Common().Name)
				assert.InDelta(t, math.Sqrt(want.Dist2), n.Distance, 1e-6)
			}
		})
	}
}

func TestDB_NNearest_MatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(7)
	places := randomPlaces(rng, 800, testutil.World)
	db := buildDB(t, places)
	pts := points(places)

	for _, q := range rng.Positions(100, testutil.World) {
		target := geo.NewPoint(nil, q)
		for _, k := range []int{1, 2, 10, 33} {
			got, err := db.NNearest(q, k)
			require.NoError(t, err)

			want := testutil.NearestK(pts, target, k)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, places[want[i].Index].Name, got[i].Item.Common().Name)
				assert.InDelta(t, math.Sqrt(want[i].Dist2), got[i].Distance, 1e-6)
				if i > 0 {
					assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
				}
			}
		}
	}
}

func TestDB_Boundaries(t *testing.T) {
	places := []*place{newPlace("A", 0, 0, 0), newPlace("B", 10, 10, 0)}
	db := buildDB(t, places)

	t.Run("KLargerThanSize", func(t *testing.T) {
		got, err := db.NNearest(geo.Position{}, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Item.Common().Name)
		assert.Equal(t, "B", got[1].Item.Common().Name)
	})

	t.Run("InvalidK", func(t *testing.T) {
		_, err := db.NNearest(geo.Position{}, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("Empty", func(t *testing.T) {
		data, err := NewBuilder(placeSchema{}).encodeImage()
		require.NoError(t, err)

		empty, err := OpenBytes(data, WithSchemas(placeSchema{}))
		require.NoError(t, err)
		defer empty.Close()

		assert.True(t, empty.IsEmpty())
		assert.Equal(t, 0, empty.Size())

		_, ok, err := empty.Nearest(geo.Position{Lat: 1, Lon: 1})
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := empty.NNearest(geo.Position{Lat: 1, Lon: 1}, 3)
		require.NoError(t, err)
		assert.Empty(t, got)

		_, ok, err = empty.GetItem("A")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, empty.Verify())
	})
}

func TestDB_ThreeItems(t *testing.T) {
	a := newPlace("A", 0, 0, 0)
	b := newPlace("B", 0, 1, 0)
	c := newPlace("C", 1, 0, 0)
	db := buildDB(t, []*place{a, b, c})

	q := geo.Position{Lat: 0.1, Lon: 0.1}
	target := geo.NewPoint(nil, q)

	n, ok, err := db.Nearest(q)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", n.Item.Common().Name)
	assert.InDelta(t, geo.Distance(target, geo.NewPoint(nil, a.Position)), n.Distance, 1e-9)

	second := "B"
	if geo.Distance(target, geo.NewPoint(nil, c.Position)) < geo.Distance(target, geo.NewPoint(nil, b.Position)) {
		second = "C"
	}

	got, err := db.NNearest(q, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Item.Common().Name)
	assert.Equal(t, second, got[1].Item.Common().Name)
	assert.Less(t, got[0].Distance, got[1].Distance)
}

func TestDB_InsertionOrderIndependence(t *testing.T) {
	rng := testutil.NewRNG(2024)
	places := randomPlaces(rng, 400, testutil.World)

	shuffled := append([]*place(nil), places...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	db1 := buildDB(t, places)
	db2 := buildDB(t, shuffled)

	for _, p := range places {
		it1, ok1, err := db1.GetItem(p.Name)
		require.NoError(t, err)
		it2, ok2, err := db2.GetItem(p.Name)
		require.NoError(t, err)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, it1, it2)
	}

	for _, q := range rng.Positions(100, testutil.World) {
		n1, err := db1.NNearest(q, 5)
		require.NoError(t, err)
		n2, err := db2.NNearest(q, 5)
		require.NoError(t, err)
		assert.Equal(t, n1, n2)
	}
}

func TestDB_Items(t *testing.T) {
	places := []*place{newPlace("A", 0, 0, 0), newPlace("B", 1, 1, 0), newPlace("C", 2, 2, 0)}
	db := buildDB(t, places)

	var names []string
	require.NoError(t, db.Items(func(it Item) bool {
		names = append(names, it.Common().Name)
		return true
	}))
	assert.Equal(t, []string{"A", "B", "C"}, names)

	names = names[:0]
	require.NoError(t, db.Items(func(it Item) bool {
		names = append(names, it.Common().Name)
		return false
	}))
	assert.Equal(t, []string{"A"}, names)
}

func TestDB_ConcurrentQueries(t *testing.T) {
	rng := testutil.NewRNG(5)
	places := randomPlaces(rng, 300, testutil.World)
	db := buildDB(t, places)
	queries := rng.Positions(50, testutil.World)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, q := range queries {
				_, ok, err := db.GetItem(places[i].Name)
				assert.NoError(t, err)
				assert.True(t, ok)
				_, err = db.NNearest(q, 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestDB_Close(t *testing.T) {
	db := buildDB(t, []*place{newPlace("A", 0, 0, 0)})
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, _, err := db.GetItem("A")
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = db.Nearest(geo.Position{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.NNearest(geo.Position{}, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "missing.gdb"), WithSchemas(placeSchema{}))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("UnknownSchema", func(t *testing.T) {
		db := buildDB(t, []*place{newPlace("A", 0, 0, 0)})
		_, err := OpenBytes(db.data)
		assert.ErrorIs(t, err, ErrUnknownSchema)

		var e *ErrUnknownSchemaID
		require.True(t, errors.As(err, &e))
		assert.Equal(t, "gisdb/test.Place", e.ID)
	})

	t.Run("Truncated", func(t *testing.T) {
		db := buildDB(t, []*place{newPlace("A", 0, 0, 0), newPlace("B", 1, 0, 0)})
		path := filepath.Join(dir, "truncated.gdb")
		require.NoError(t, os.WriteFile(path, db.data[:len(db.data)-5], 0o644))

		_, err := Open(path, WithSchemas(placeSchema{}))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("RecordSizeMismatch", func(t *testing.T) {
		b := NewBuilder(placeSchema{})
		require.NoError(t, b.AddItem(newPlace("A", 0, 0, 0)))
		data, err := b.Bytes()
		require.NoError(t, err)

		_, err = OpenBytes(data, WithSchemas(widePlaceSchema{}))
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})
}

// widePlaceSchema shares placeSchema's ID but declares a larger payload.
type widePlaceSchema struct{ placeSchema }

func (widePlaceSchema) PayloadSize() int { return 16 }

func TestDB_CorruptKeyMap(t *testing.T) {
	db := buildDB(t, []*place{newPlace("A", 0, 0, 0), newPlace("B", 1, 1, 0)})
	data := append([]byte(nil), db.data...)
	l := db.layout

	// Fill every slot with the first item so no probe chain terminates.
	for s := int32(0); s < l.KeyMapLen; s++ {
		format.PutInt32(data[l.KeyMapOff+s*format.SlotSize:], l.ItemsOff)
	}

	bad, err := OpenBytes(data, WithSchemas(placeSchema{}))
	require.NoError(t, err)

	_, _, err = bad.GetItem("NOT-THERE")
	require.Error(t, err)
	var ce *CorruptError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "key map", ce.Section)

	assert.ErrorIs(t, bad.Verify(), ErrCorrupt)
}

func TestDB_CorruptTree(t *testing.T) {
	db := buildDB(t, []*place{newPlace("A", 0, 0, 0), newPlace("B", 1, 1, 0), newPlace("C", 2, 2, 0)})
	data := append([]byte(nil), db.data...)
	l := db.layout

	// Make every node reference the first item.
	for i := int32(0); i < l.NItems; i++ {
		format.PutInt32(data[l.NodeOffset(i):], l.ItemsOff)
	}

	bad, err := OpenBytes(data, WithSchemas(placeSchema{}))
	require.NoError(t, err)
	assert.ErrorIs(t, bad.Verify(), ErrCorrupt)
}

func TestOpenBytes_Packed(t *testing.T) {
	rng := testutil.NewRNG(11)
	places := randomPlaces(rng, 50, testutil.World)
	db := buildDB(t, places)

	for _, c := range []pack.Codec{pack.Zstd, pack.LZ4} {
		packed, err := pack.Encode(db.data, c)
		require.NoError(t, err)

		p, err := OpenBytes(packed, WithSchemas(placeSchema{}))
		require.NoError(t, err)
		assert.Equal(t, 50, p.Size())

		it, ok, err := p.GetItem(places[7].Name)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, places[7].Position, it.Common().Position)
		require.NoError(t, p.Close())
	}
}

func TestOpenBlob(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(12)
	places := randomPlaces(rng, 40, testutil.World)

	b := NewBuilder(placeSchema{})
	for _, p := range places {
		require.NoError(t, b.AddItem(p))
	}

	stores := map[string]blobstore.BlobStore{
		"Memory": blobstore.NewMemoryStore(),
		"Local":  blobstore.NewLocalStore(t.TempDir()),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.BuildTo(ctx, store, "places.gdb"))

			blob, err := store.Open(ctx, "places.gdb")
			require.NoError(t, err)

			db, err := OpenBlob(ctx, blob, WithSchemas(placeSchema{}))
			require.NoError(t, err)
			defer db.Close()

			assert.Equal(t, len(places), db.Size())
			require.NoError(t, db.Verify())

			n, ok, err := db.Nearest(places[3].Position)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, places[3].Name, n.Item.Common().Name)
		})
	}
}

func TestDB_Metrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	db := buildDB(t, []*place{newPlace("A", 0, 0, 0), newPlace("B", 1, 1, 0)}, WithMetricsCollector(mc))

	_, _, _ = db.GetItem("A")
	_, _, _ = db.GetItem("Z")
	_, _, _ = db.Nearest(geo.Position{})
	_, _ = db.NNearest(geo.Position{}, 2)

	s := mc.GetStats()
	assert.Equal(t, int64(1), s.Builds)
	assert.Equal(t, int64(1), s.Opens)
	assert.Equal(t, int64(2), s.Lookups)
	assert.Equal(t, int64(1), s.LookupHits)
	assert.Equal(t, int64(2), s.Nearest)
	assert.Equal(t, int64(3), s.NearestResults)
	assert.Equal(t, int64(0), s.Errors)
}
