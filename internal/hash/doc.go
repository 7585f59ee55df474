// Package hash provides the hashing used by gisdb.
//
// # Name hash
//
// Item names are keyed by a 32-bit hash stored in every item record and used
// to address the key map. It is the 64-bit xxHash of the UTF-8 name folded to
// 32 bits:
//
//	h := hash.Name("KJFK")
//
// The fold is part of the file format. Changing it makes existing files
// unreadable by name.
//
// # CRC32-Castagnoli (CRC32C)
//
// Packed files carry a CRC32C of their uncompressed image, and uploads to S3
// send the same checksum for server-side validation:
//
//	checksum := hash.CRC32C(data)
//
// Go's crc32 package uses SSE4.2 or the ARM CRC extension when available.
package hash
