package hash

import "github.com/cespare/xxhash/v2"

// Name returns the 32-bit key hash of an item name.
func Name(name string) int32 {
	h := xxhash.Sum64String(name)
	return int32(uint32(h) ^ uint32(h>>32))
}
