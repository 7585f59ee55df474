// Package kdtree implements the spatial index: a 3-d tree over ECEF
// coordinates stored as a flat array of nodes in post-order, so the root is
// the last node and every child precedes its parent.
package kdtree

import (
	"github.com/hupe1980/gisdb/geo"
	"github.com/hupe1980/gisdb/internal/format"
)

// Node references items and child nodes by index.
type Node struct {
	Item  int32
	Left  int32
	Right int32
}

// Build returns the nodes of a balanced tree over points. The split axis is
// depth%3 and each node holds the exact median of its range, with ties broken
// by point index so the result depends only on the input order.
func Build(points []geo.ECEF) []Node {
	b := builder{
		points: points,
		idx:    make([]int32, len(points)),
		nodes:  make([]Node, 0, len(points)),
	}
	for i := range b.idx {
		b.idx[i] = int32(i)
	}
	b.build(0, len(points), 0)
	return b.nodes
}

type builder struct {
	points []geo.ECEF
	idx    []int32
	nodes  []Node
}

func (b *builder) build(lo, hi, depth int) int32 {
	if lo >= hi {
		return format.Nil
	}
	axis := depth % 3
	mid := lo + (hi-lo)/2
	b.selectNth(lo, hi-1, mid, axis)

	left := b.build(lo, mid, depth+1)
	right := b.build(mid+1, hi, depth+1)

	b.nodes = append(b.nodes, Node{Item: b.idx[mid], Left: left, Right: right})
	return int32(len(b.nodes) - 1)
}

func (b *builder) less(x, y int32, axis int) bool {
	cx, cy := b.points[x].Axis(axis), b.points[y].Axis(axis)
	if cx != cy {
		return cx < cy
	}
	return x < y
}

// selectNth reorders idx[lo..hi] so idx[n] holds the element of rank n.
func (b *builder) selectNth(lo, hi, n, axis int) {
	for lo < hi {
		p := b.partition(lo, hi, lo+(hi-lo)/2, axis)
		switch {
		case p == n:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func (b *builder) partition(lo, hi, pivot, axis int) int {
	a := b.idx
	pv := a[pivot]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if b.less(a[j], pv, axis) {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

// AppendTo appends the node section. itemOff maps an item index to its
// absolute offset and nodesOff is the absolute offset of the first node.
func AppendTo(dst []byte, nodes []Node, itemOff func(int32) int32, nodesOff int32) []byte {
	nodeOff := func(i int32) int32 {
		if i == format.Nil {
			return format.Nil
		}
		return nodesOff + i*format.NodeSize
	}
	for _, n := range nodes {
		dst = format.AppendInt32(dst, itemOff(n.Item))
		dst = format.AppendInt32(dst, nodeOff(n.Left))
		dst = format.AppendInt32(dst, nodeOff(n.Right))
	}
	return dst
}
