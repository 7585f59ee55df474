// Package testutil provides helpers for tests: a seeded, thread-safe random
// source for positions and names, and brute-force nearest-neighbor ground
// truth.
//
//	rng := testutil.NewRNG(4711)
//	positions := rng.Positions(1000, testutil.World)
//	want := testutil.NearestK(points, target, 5)
package testutil
