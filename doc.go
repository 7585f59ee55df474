// Package gisdb is a read-only, memory-mapped database of geo-referenced
// items with name lookup and nearest-neighbor queries.
//
// A database file is built once, offline, from a set of items of one
// Schema and then opened by any number of readers. Queries run directly
// against the mapped bytes: a lookup by name probes a double-hashing key map,
// a proximity query descends a 3-d tree over ECEF coordinates. Only the
// records in the answer are decoded.
//
// # Building
//
//	b := gisdb.NewBuilder(aviation.AirportSchema{})
//	for _, a := range airports {
//	    if err := b.AddItem(a); err != nil { ... }
//	}
//	if err := b.Build("airports.gdb"); err != nil { ... }
//
// Names must be unique. By default AddItem rejects a repeated name with
// ErrDuplicateName; WithDuplicatePolicy(DuplicateReplace) keeps the last
// item instead and logs a warning.
//
// # Querying
//
//	db, err := gisdb.Open("airports.gdb", gisdb.WithRegistry(aviation.Registry()))
//	if err != nil { ... }
//	defer db.Close()
//
//	it, ok, err := db.GetItem("KJFK")
//	n, ok, err := db.Nearest(geo.Position{Lat: 40.7, Lon: -73.9})
//	ns, err := db.NNearest(geo.Position{Lat: 40.7, Lon: -73.9}, 5)
//
// Distances are in meters. Up to 100 km they are straight-line ECEF
// distances; beyond that they are great-circle distances on the mean Earth
// sphere.
//
// # Storage
//
// Databases can live on local disk (Open), in memory (OpenBytes) or in any
// blobstore.BlobStore such as S3 or MinIO (OpenBlob, Builder.BuildTo).
// Files compressed with package pack are detected and decompressed
// transparently.
//
// # Errors
//
// Not-found is reported through the boolean result, never as an error. A
// file that violates the format's structural invariants yields an error
// matching ErrCorrupt; the query is aborted rather than answered from
// inconsistent data. Verify checks a whole file up front.
package gisdb
