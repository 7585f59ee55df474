package s3_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/blobstore/s3"
	"github.com/hupe1980/gisdb/geo"
)

// newTestStore opens a store in S3_BUCKET under a fresh prefix. Credentials
// come from the default AWS chain.
func newTestStore(t *testing.T) *s3.Store {
	t.Helper()

	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}
	store, err := s3.New(context.Background(), bucket,
		s3.WithPrefix(fmt.Sprintf("test-gisdb-%d/", time.Now().UnixNano())))
	require.NoError(t, err)
	return store
}

func TestIntegration_BuildTo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fixes := []*aviation.Fix{
		{Base: gisdb.Base{Name: "MERIT", Position: geo.Position{Lat: 41.3819, Lon: -73.1371}}},
		{Base: gisdb.Base{Name: "GREKI", Position: geo.Position{Lat: 41.4800, Lon: -73.3137}}},
		{Base: gisdb.Base{Name: "BETTE", Position: geo.Position{Lat: 40.5594, Lon: -72.2733}}},
	}
	b := gisdb.NewBuilder(aviation.FixSchema{})
	for _, f := range fixes {
		require.NoError(t, b.AddItem(f))
	}
	require.NoError(t, b.BuildTo(ctx, store, "fixes.gdb"))
	t.Cleanup(func() { _ = store.Delete(context.Background(), "fixes.gdb") })

	blob, err := store.Open(ctx, "fixes.gdb")
	require.NoError(t, err)
	db, err := gisdb.OpenBlob(ctx, blob, gisdb.WithRegistry(aviation.Registry()))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Verify())

	it, ok, err := db.GetItem("GREKI")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 41.48, it.Common().Position.Lat, 1e-9)

	ns, err := db.NNearest(geo.Position{Lat: 41.40, Lon: -73.15}, 2)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "MERIT", ns[0].Item.Common().Name)
	assert.Equal(t, "GREKI", ns[1].Item.Common().Name)
}

func TestIntegration_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "missing.gdb")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestIntegration_Abort(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, "partial.gdb")
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 4096))
	require.NoError(t, err)
	require.NoError(t, blobstore.Abort(w))

	_, err = store.Open(ctx, "partial.gdb")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
