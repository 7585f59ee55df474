// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("navdata/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	blob, err := store.Open(ctx, "airports.gdb")
//	db, err := gisdb.OpenBlob(ctx, blob, gisdb.WithRegistry(aviation.Registry()))
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large files, CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix and endpoint
package s3
