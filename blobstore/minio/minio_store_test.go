package minio_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/blobstore"
	"github.com/hupe1980/gisdb/blobstore/minio"
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/pack"
)

func airports() []*aviation.Airport {
	mk := func(ident, title string, lat, lon float64) *aviation.Airport {
		return &aviation.Airport{
			Base:    gisdb.Base{Name: ident, Position: geo.Position{Lat: lat, Lon: lon}},
			Title:   title,
			Country: "US",
		}
	}
	return []*aviation.Airport{
		mk("KJFK", "John F Kennedy Intl", 40.6398, -73.7789),
		mk("KLGA", "La Guardia", 40.7769, -73.8740),
		mk("KEWR", "Newark Liberty Intl", 40.6925, -74.1687),
		mk("KBOS", "General Edward Lawrence Logan Intl", 42.3643, -71.0052),
	}
}

// newTestStore connects to the MinIO instance at MINIO_ENDPOINT (default
// localhost:9000) and skips when none is reachable.
func newTestStore(t *testing.T) *minio.Store {
	t.Helper()

	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	const bucket = "test-gisdb"

	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	if err != nil {
		t.Skipf("minio client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio not available: %v", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}))
	}

	store, err := minio.New(minio.Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    bucket,
		Prefix:    fmt.Sprintf("run-%d/", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	return store
}

func TestStore_BuildAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := gisdb.NewBuilder(aviation.AirportSchema{})
	for _, a := range airports() {
		require.NoError(t, b.AddItem(a))
	}
	require.NoError(t, b.BuildTo(ctx, store, "airports.gdb"))
	t.Cleanup(func() { _ = store.Delete(context.Background(), "airports.gdb") })

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "airports.gdb")

	blob, err := store.Open(ctx, "airports.gdb")
	require.NoError(t, err)
	db, err := gisdb.OpenBlob(ctx, blob, gisdb.WithRegistry(aviation.Registry()))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Verify())
	assert.Equal(t, 4, db.Size())

	it, ok, err := db.GetItem("KEWR")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Newark Liberty Intl", it.(*aviation.Airport).Title)

	_, ok, err = db.GetItem("KSFO")
	require.NoError(t, err)
	assert.False(t, ok)

	// Central Park
	n, ok, err := db.Nearest(geo.Position{Lat: 40.7812, Lon: -73.9665})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "KLGA", n.Item.Common().Name)
}

func TestStore_PackedImage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := gisdb.NewBuilder(aviation.AirportSchema{})
	for _, a := range airports() {
		require.NoError(t, b.AddItem(a))
	}
	data, err := b.Bytes()
	require.NoError(t, err)
	packed, err := pack.Encode(data, pack.Zstd)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "airports.gdb.zst", packed))
	t.Cleanup(func() { _ = store.Delete(context.Background(), "airports.gdb.zst") })

	blob, err := store.Open(ctx, "airports.gdb.zst")
	require.NoError(t, err)
	db, err := gisdb.OpenBlob(ctx, blob, gisdb.WithRegistry(aviation.Registry()))
	require.NoError(t, err)
	defer db.Close()

	ns, err := db.NNearest(geo.Position{Lat: 40.7, Lon: -73.9}, 10)
	require.NoError(t, err)
	assert.Len(t, ns, 4)
	assert.Equal(t, "KBOS", ns[3].Item.Common().Name)
}

func TestStore_AbortLeavesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, "partial.gdb")
	require.NoError(t, err)
	_, err = w.Write([]byte("GIDB partial image"))
	require.NoError(t, err)
	require.NoError(t, blobstore.Abort(w))

	_, err = store.Open(ctx, "partial.gdb")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
