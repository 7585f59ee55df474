// Package fs abstracts the file operations of an atomic file write so tests
// can inject I/O failures.
//
// Production code uses [Default], which is [LocalFS]. Tests wrap it in a
// [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 1024})
//
// Remote storage goes through package blobstore instead.
package fs
