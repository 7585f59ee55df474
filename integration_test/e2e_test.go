package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/pack"
	"github.com/hupe1980/gisdb/source"
	"github.com/hupe1980/gisdb/testutil"
)

func randomNavaids(rng *testutil.RNG, n int) []gisdb.Item {
	types := []string{"VOR", "VORTAC", "NDB", "DME", "TACAN"}
	names := rng.UniqueIdents(n)
	out := make([]gisdb.Item, n)
	for i, pos := range rng.Positions(n, testutil.World) {
		out[i] = &aviation.Navaid{
			Base:      gisdb.Base{Name: names[i], Position: pos},
			Type:      types[rng.Intn(len(types))],
			Title:     "NAVAID " + names[i],
			Frequency: 108 + float64(rng.Intn(100))/10,
		}
	}
	return out
}

// TestEndToEnd takes a source file through build, pack, publish and a
// cached remote open, then checks every query against the source items.
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(99)
	items := randomNavaids(rng, 2000)

	// source file
	src := filepath.Join(t.TempDir(), "navaids.msgpack.zst")
	require.NoError(t, source.Write(src, "navaid", items))
	set, err := source.Load(src)
	require.NoError(t, err)
	require.Len(t, set.Items, len(items))

	// build and pack
	b := gisdb.NewBuilder(set.Schema)
	for _, it := range set.Items {
		require.NoError(t, b.AddItem(it))
	}
	raw, err := b.Bytes()
	require.NoError(t, err)
	packed, err := pack.Encode(raw, pack.Zstd)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(raw))

	// publish and open through a small block cache
	remote := blobstore.NewMemoryStore()
	require.NoError(t, remote.Put(ctx, "navdata/navaids.gdb", packed))
	cache, err := blobstore.NewCachingStore(remote, 8, 4096)
	require.NoError(t, err)

	blob, err := cache.Open(ctx, "navdata/navaids.gdb")
	require.NoError(t, err)
	db, err := gisdb.OpenBlob(ctx, blob, gisdb.WithRegistry(aviation.Registry()))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Verify())
	require.Equal(t, len(items), db.Size())
	assert.Equal(t, aviation.NavaidSchema{}.ID(), db.Schema().ID())

	for _, want := range items {
		w := want.(*aviation.Navaid)
		got, ok, err := db.GetItem(w.Name)
		require.NoError(t, err)
		require.True(t, ok, w.Name)
		n := got.(*aviation.Navaid)
		assert.Equal(t, w.Type, n.Type)
		assert.Equal(t, w.Title, n.Title)
		assert.InDelta(t, w.Frequency, n.Frequency, 0)
		assert.InDelta(t, w.Position.Lat, n.Position.Lat, 0)
	}

	points := make([]geo.Point, len(items))
	for i, it := range items {
		points[i] = geo.NewPoint(nil, it.Common().Position)
	}
	for _, q := range rng.Positions(100, testutil.World) {
		truth := testutil.NearestK(points, geo.NewPoint(nil, q), 5)
		res, err := db.NNearest(q, 5)
		require.NoError(t, err)
		require.Len(t, res, 5)
		for i := range res {
			want := geo.Distance(geo.NewPoint(nil, q), points[truth[i].Index])
			assert.InDelta(t, want, res[i].Distance, 1e-6)
		}
	}
}

// TestEndToEnd_LocalStore builds straight into a local store and reopens the
// mapped blob.
func TestEndToEnd_LocalStore(t *testing.T) {
	ctx := context.Background()
	items := randomNavaids(testutil.NewRNG(5), 300)

	b := gisdb.NewBuilder(aviation.NavaidSchema{})
	for _, it := range items {
		require.NoError(t, b.AddItem(it))
	}
	store := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, b.BuildTo(ctx, store, "2026/navaids.gdb"))

	names, err := store.List(ctx, "2026/")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026/navaids.gdb"}, names)

	blob, err := store.Open(ctx, "2026/navaids.gdb")
	require.NoError(t, err)
	db, err := gisdb.OpenBlob(ctx, blob, gisdb.WithRegistry(aviation.Registry()))
	require.NoError(t, err)

	var seen int
	require.NoError(t, db.Items(func(gisdb.Item) bool {
		seen++
		return true
	}))
	assert.Equal(t, len(items), seen)
	require.NoError(t, db.Close())
}
