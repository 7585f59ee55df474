package kdtree

import (
	"math"

	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/internal/format"
)

// boundSlack scales box lower bounds in the spherical range of the metric.
// The mean-sphere arc between two items can be slightly shorter than their
// ECEF chord (ellipsoid flattening, altitude), and the bound must never
// exceed the true distance.
const boundSlack = 0.95

// Result is a candidate item with its ordering distance in m².
type Result struct {
	Offset int32
	Dist2  float64
}

// Meters returns the distance in meters.
func (r Result) Meters() float64 { return math.Sqrt(r.Dist2) }

func better(d2 float64, off int32, than Result) bool {
	if d2 != than.Dist2 {
		return d2 < than.Dist2
	}
	return off < than.Offset
}

// Tree is a read-only view of the node section of a mapped file.
type Tree struct {
	data   []byte
	layout format.Layout
}

// Open returns the tree described by l.
func Open(data []byte, l format.Layout) Tree {
	return Tree{data: data, layout: l}
}

// Root returns the offset of the root node, or format.Nil for an empty tree.
func (t Tree) Root() int32 {
	if t.layout.NItems == 0 {
		return format.Nil
	}
	return t.layout.NodeOffset(t.layout.NItems - 1)
}

// Point decodes the coordinates of the item at off.
func (t Tree) Point(off int32) geo.Point {
	d := t.data
	return geo.Point{
		ECEF: geo.ECEF{
			X: format.Float64(d, off+format.ECEFXOff),
			Y: format.Float64(d, off+format.ECEFYOff),
			Z: format.Float64(d, off+format.ECEFZOff),
		},
		Position: geo.Position{
			Lat: format.Float64(d, off+format.LatOff),
			Lon: format.Float64(d, off+format.LonOff),
			Alt: format.Float64(d, off+format.AltOff),
		},
	}
}

// Search appends to dst[:0] the k items closest to target, ordered by
// (distance, offset). Fewer than k are returned only if the tree is smaller.
func (t Tree) Search(target geo.Point, k int, dst []Result) ([]Result, error) {
	root := t.Root()
	if k <= 0 || root == format.Nil {
		return dst[:0], nil
	}
	s := searcher{
		tree:   t,
		target: target,
		k:      k,
		res:    dst[:0],
	}
	for a := 0; a < 3; a++ {
		s.lo[a] = math.Inf(-1)
		s.hi[a] = math.Inf(1)
	}
	if err := s.visit(root, 0); err != nil {
		return dst[:0], err
	}
	return s.res, nil
}

type searcher struct {
	tree   Tree
	target geo.Point
	k      int
	res    []Result
	lo, hi [3]float64
}

func (s *searcher) worst() float64 {
	if len(s.res) < s.k {
		return math.Inf(1)
	}
	return s.res[len(s.res)-1].Dist2
}

func (s *searcher) offer(off int32, d2 float64) {
	if len(s.res) == s.k {
		if !better(d2, off, s.res[s.k-1]) {
			return
		}
		s.res = s.res[:s.k-1]
	}
	i := len(s.res)
	s.res = append(s.res, Result{})
	for i > 0 && better(d2, off, s.res[i-1]) {
		s.res[i] = s.res[i-1]
		i--
	}
	s.res[i] = Result{Offset: off, Dist2: d2}
}

// lowerBound returns a value no larger than the ordering distance from the
// target to any point inside the current box.
func (s *searcher) lowerBound() float64 {
	var d2 float64
	for a := 0; a < 3; a++ {
		q := s.target.ECEF.Axis(a)
		switch {
		case q < s.lo[a]:
			d := s.lo[a] - q
			d2 += d * d
		case q > s.hi[a]:
			d := q - s.hi[a]
			d2 += d * d
		}
	}
	if d2 > boundSlack*geo.SphericalThreshold {
		d2 *= boundSlack
	}
	return d2
}

func (s *searcher) visit(nodeOff int32, depth int) error {
	item, left, right, err := s.tree.node(nodeOff)
	if err != nil {
		return err
	}

	p := s.tree.Point(item)
	s.offer(item, geo.OrderDistance(s.target, p))

	axis := depth % 3
	split := p.ECEF.Axis(axis)

	near, far := left, right
	nearLeft := s.target.ECEF.Axis(axis) < split
	if !nearLeft {
		near, far = right, left
	}

	if near != format.Nil {
		saved := s.narrow(axis, split, nearLeft)
		err := s.visit(near, depth+1)
		s.restore(axis, saved)
		if err != nil {
			return err
		}
	}

	if far != format.Nil {
		saved := s.narrow(axis, split, !nearLeft)
		var err error
		if s.lowerBound() <= s.worst() {
			err = s.visit(far, depth+1)
		}
		s.restore(axis, saved)
		if err != nil {
			return err
		}
	}
	return nil
}

// narrow restricts the box to one side of split and returns the previous
// bounds on axis.
func (s *searcher) narrow(axis int, split float64, left bool) [2]float64 {
	saved := [2]float64{s.lo[axis], s.hi[axis]}
	if left {
		s.hi[axis] = split
	} else {
		s.lo[axis] = split
	}
	return saved
}

func (s *searcher) restore(axis int, saved [2]float64) {
	s.lo[axis], s.hi[axis] = saved[0], saved[1]
}

// node reads and validates the node at off. Children must precede their
// parent, which rules out cycles in a damaged file.
func (t Tree) node(off int32) (item, left, right int32, err error) {
	l := t.layout
	idx, ok := l.NodeIndex(off)
	if !ok {
		return 0, 0, 0, format.Corrupt("kd-tree", int64(off), "invalid node offset")
	}
	item = format.Int32(t.data, off)
	left = format.Int32(t.data, off+4)
	right = format.Int32(t.data, off+8)

	if _, ok := l.ItemIndex(item); !ok {
		return 0, 0, 0, format.Corrupt("kd-tree", int64(off), "node references invalid item offset %d", item)
	}
	for _, c := range [2]int32{left, right} {
		if c == format.Nil {
			continue
		}
		ci, ok := l.NodeIndex(c)
		if !ok || ci >= idx {
			return 0, 0, 0, format.Corrupt("kd-tree", int64(off), "invalid child offset %d", c)
		}
	}
	return item, left, right, nil
}

// Walk calls fn for every node reachable from the root, parents first.
func (t Tree) Walk(fn func(nodeOff, itemOff int32) error) error {
	root := t.Root()
	if root == format.Nil {
		return nil
	}
	stack := []int32{root}
	for len(stack) > 0 {
		off := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		item, left, right, err := t.node(off)
		if err != nil {
			return err
		}
		if err := fn(off, item); err != nil {
			return err
		}
		if right != format.Nil {
			stack = append(stack, right)
		}
		if left != format.Nil {
			stack = append(stack, left)
		}
	}
	return nil
}
