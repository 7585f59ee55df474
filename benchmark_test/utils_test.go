package benchmark_test

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/testutil"
)

const (
	sizeSmall  = 10_000
	sizeMedium = 100_000
	sizeLarge  = 500_000
)

const benchSeed = 4711

// makeFixes returns n fixes with unique names spread over the world.
func makeFixes(n int) []*aviation.Fix {
	rng := testutil.NewRNG(benchSeed)
	names := rng.UniqueIdents(n)
	regions := []string{"K1", "K2", "K3", "K4", "K5", "K6", "K7", "PA", "PH"}
	out := make([]*aviation.Fix, n)
	for i, pos := range rng.Positions(n, testutil.World) {
		out[i] = &aviation.Fix{
			Base:   gisdb.Base{Name: names[i], Position: pos},
			Region: regions[i%len(regions)],
		}
	}
	return out
}

func newFixBuilder(tb testing.TB, fixes []*aviation.Fix) *gisdb.Builder {
	tb.Helper()
	b := gisdb.NewBuilder(aviation.FixSchema{})
	for _, f := range fixes {
		if err := b.AddItem(f); err != nil {
			tb.Fatal(err)
		}
	}
	return b
}

// openBenchDB builds n fixes into a temp file and opens it.
func openBenchDB(tb testing.TB, n int) (*gisdb.DB, []*aviation.Fix) {
	tb.Helper()
	fixes := makeFixes(n)
	b := newFixBuilder(tb, fixes)
	defer b.Close()

	path := filepath.Join(tb.TempDir(), "fixes.gdb")
	if err := b.Build(path); err != nil {
		tb.Fatal(err)
	}
	db, err := gisdb.Open(path, gisdb.WithRegistry(aviation.Registry()))
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db, fixes
}

func makeQueries(n int) []geo.Position {
	return testutil.NewRNG(benchSeed+1).Positions(n, testutil.World)
}

func fixPoints(fixes []*aviation.Fix) []geo.Point {
	out := make([]geo.Point, len(fixes))
	for i, f := range fixes {
		out[i] = geo.NewPoint(nil, f.Position)
	}
	return out
}
