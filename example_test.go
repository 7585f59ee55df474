package gisdb_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/gisdb"
	"github.com/hupe1980/gisdb/aviation"
	"github.com/hupe1980/gisdb/geo"
)

func airport(ident, title string, lat, lon float64, elev int32) *aviation.Airport {
	return &aviation.Airport{
		Base:      gisdb.Base{Name: ident, Position: geo.Position{Lat: lat, Lon: lon, Alt: float64(elev) * 0.3048}},
		Title:     title,
		Country:   "US",
		ARTCC:     "ZNY",
		Elevation: elev,
	}
}

// Example builds a small airport database and queries it by name and by
// proximity.
func Example() {
	dir, err := os.MkdirTemp("", "gisdb-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "airports.gdb")

	b := gisdb.NewBuilder(aviation.AirportSchema{})
	for _, a := range []*aviation.Airport{
		airport("KJFK", "John F Kennedy Intl", 40.6398, -73.7789, 13),
		airport("KLGA", "La Guardia", 40.7769, -73.8740, 21),
		airport("KEWR", "Newark Liberty Intl", 40.6925, -74.1687, 18),
	} {
		if err := b.AddItem(a); err != nil {
			log.Fatal(err)
		}
	}
	if err := b.Build(path); err != nil {
		log.Fatal(err)
	}

	db, err := gisdb.Open(path, gisdb.WithRegistry(aviation.Registry()))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	it, ok, err := db.GetItem("KEWR")
	if err != nil || !ok {
		log.Fatal("KEWR not found")
	}
	fmt.Println(it.(*aviation.Airport).Title)

	// Central Park
	n, ok, err := db.Nearest(geo.Position{Lat: 40.7812, Lon: -73.9665})
	if err != nil || !ok {
		log.Fatal("no neighbor")
	}
	fmt.Printf("%s %.0f km\n", n.Item.Common().Name, n.Distance/1000)

	// Output:
	// Newark Liberty Intl
	// KLGA 8 km
}
