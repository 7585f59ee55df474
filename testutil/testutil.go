package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/gisdb/geo"
)

// RNG wraps math/rand with a fixed seed. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0,1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Shuffle permutes n elements using swap.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(n, swap)
}

// Box bounds generated positions.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	MaxAlt         float64
}

// World covers the globe except the polar caps.
var World = Box{MinLat: -85, MaxLat: 85, MinLon: -180, MaxLon: 180, MaxAlt: 3000}

// Position returns a uniform position inside b.
func (r *RNG) Position(b Box) geo.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return geo.Position{
		Lat: b.MinLat + r.rand.Float64()*(b.MaxLat-b.MinLat),
		Lon: b.MinLon + r.rand.Float64()*(b.MaxLon-b.MinLon),
		Alt: r.rand.Float64() * b.MaxAlt,
	}
}

// Positions returns n positions inside b.
func (r *RNG) Positions(n int, b Box) []geo.Position {
	out := make([]geo.Position, n)
	for i := range out {
		out[i] = r.Position(b)
	}
	return out
}

const identAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Ident returns a random upper-case identifier of length n.
func (r *RNG) Ident(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = identAlphabet[r.rand.Intn(len(identAlphabet))]
	}
	return string(b)
}

// UniqueIdents returns n distinct identifiers of length 5.
func (r *RNG) UniqueIdents(n int) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		id := r.Ident(5)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Ranked is a brute-force result: an index into the scanned points and its
// ordering distance in m².
type Ranked struct {
	Index int
	Dist2 float64
}

// NearestK returns the k points closest to target by geo.OrderDistance,
// ordered by distance and then index.
func NearestK(points []geo.Point, target geo.Point, k int) []Ranked {
	all := make([]Ranked, len(points))
	for i, p := range points {
		all[i] = Ranked{Index: i, Dist2: geo.OrderDistance(target, p)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Dist2 != all[j].Dist2 {
			return all[i].Dist2 < all[j].Dist2
		}
		return all[i].Index < all[j].Index
	})
	if k < len(all) {
		all = all[:k]
	}
	return all
}
