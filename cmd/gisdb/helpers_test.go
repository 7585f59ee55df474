package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/source"
)

func testAirports() []gisdb.Item {
	ap := func(ident, title string, lat, lon float64) gisdb.Item {
		return &aviation.Airport{
			Base:    gisdb.Base{Name: ident, Position: geo.Position{Lat: lat, Lon: lon}},
			Title:   title,
			Country: "US",
		}
	}
	return []gisdb.Item{
		ap("KJFK", "John F Kennedy Intl", 40.6398, -73.7789),
		ap("KLGA", "La Guardia", 40.7769, -73.8740),
		ap("KEWR", "Newark Liberty Intl", 40.6925, -74.1687),
		ap("KBOS", "General Edward Lawrence Logan Intl", 42.3643, -71.0052),
	}
}

// writeSource writes the test airports as a source file in dir.
func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, source.Write(path, "airport", testAirports()))
	return path
}

func testEnv(t *testing.T) (*env, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cfg, err := loadConfig(func(string) string { return "" })
	require.NoError(t, err)
	var stdout, stderr bytes.Buffer
	return &env{cfg: cfg, log: gisdb.NoopLogger(), stdout: &stdout, stderr: &stderr}, &stdout, &stderr
}

// buildTestDB builds the test airports and returns the database path.
func buildTestDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := writeSource(t, dir, "airports.json")
	e, _, stderr := testEnv(t)
	require.Equal(t, 0, run(context.Background(), e, []string{"build", "-out", dir, src}), stderr.String())
	return filepath.Join(dir, "airports.gdb")
}
