// Package kdtree implements a static 2-D tree over lon/lat records answering
// nearest-neighbour queries by haversine distance.
//
// The tree alternates between splitting on longitude and latitude at the
// median of the records in each branch. Every node also knows the lon/lat
// region it covers, and a branch is only skipped when the exact geodesic
// distance from the query point to that region is larger than the best
// distance found so far. The search therefore stays correct for query points
// near the poles and across the antimeridian, where lon/lat differences say
// little about distance.
package kdtree

import (
	"cmp"
	"math"
	"slices"

	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/models"
)

// DefaultMaxDepth is the depth limit used by NewDefault.
const DefaultMaxDepth = 20

// searchSlack lets branches whose lower bound equals the best distance up to
// rounding be searched, so tied records are never missed.
const searchSlack = 1e-9

type axis int

const (
	lonAxis axis = iota
	latAxis
)

func (a axis) coord(r models.Record) float64 {
	if a == lonAxis {
		return r.Lon
	}
	return r.Lat
}

type node struct {
	region geo.Rectangle

	// leaf
	records []models.Record

	// internal
	axis        axis
	value       float64
	left, right *node
}

func (n *node) isLeaf() bool { return n.left == nil }

// KDTree is immutable after construction and safe for concurrent queries.
type KDTree struct {
	root     *node
	size     int
	maxDepth int
}

// New builds a tree from records. The slice is copied; the caller keeps
// ownership of it. A negative maxDepth is treated as zero, producing a
// single leaf.
func New(records []models.Record, maxDepth int) *KDTree {
	if maxDepth < 0 {
		maxDepth = 0
	}
	t := &KDTree{size: len(records), maxDepth: maxDepth}
	if len(records) > 0 {
		t.root = build(slices.Clone(records), geo.Globe, 0, maxDepth)
	}
	return t
}

// NewDefault builds a tree with DefaultMaxDepth.
func NewDefault(records []models.Record) *KDTree {
	return New(records, DefaultMaxDepth)
}

func build(records []models.Record, region geo.Rectangle, depth, maxDepth int) *node {
	n := &node{region: region}
	if depth >= maxDepth || len(records) < 2 {
		n.records = records
		return n
	}

	n.axis = axis(depth % 2)
	slices.SortFunc(records, func(a, b models.Record) int {
		return cmp.Compare(n.axis.coord(a), n.axis.coord(b))
	})

	// equal coordinates all go left so that left holds exactly the records
	// with coord <= value
	split := len(records) / 2
	n.value = n.axis.coord(records[split-1])
	for split < len(records) && n.axis.coord(records[split]) == n.value {
		split++
	}

	leftRegion, rightRegion := region, region
	if n.axis == lonAxis {
		leftRegion.East = n.value
		rightRegion.West = n.value
	} else {
		leftRegion.North = n.value
		rightRegion.South = n.value
	}
	n.left = build(records[:split], leftRegion, depth+1, maxDepth)
	n.right = build(records[split:], rightRegion, depth+1, maxDepth)
	return n
}

// Len returns the number of records in the tree.
func (t *KDTree) Len() int { return t.size }

// MaxDepth returns the depth limit the tree was built with.
func (t *KDTree) MaxDepth() int { return t.maxDepth }

// Query returns the records nearest to r together with their distance in km.
// All records tied at the minimum distance are returned. An empty tree
// returns nil and +Inf.
func (t *KDTree) Query(r models.Record) ([]models.Record, float64) {
	s := search{target: r, best: math.Inf(1)}
	if t.root != nil {
		s.visit(t.root)
	}
	return s.found, s.best
}

// Nearest returns one record nearest to r. ok is false for an empty tree.
func (t *KDTree) Nearest(r models.Record) (nearest models.Record, dist float64, ok bool) {
	found, dist := t.Query(r)
	if len(found) == 0 {
		return models.Record{}, dist, false
	}
	return found[0], dist, true
}

type search struct {
	target models.Record
	best   float64
	found  []models.Record
}

func (s *search) visit(n *node) {
	if n.isLeaf() {
		for _, c := range n.records {
			d := geo.Distance(s.target, c)
			switch {
			case d < s.best:
				s.best = d
				s.found = append(s.found[:0], c)
			case d == s.best:
				s.found = append(s.found, c)
			}
		}
		return
	}

	near, far := n.left, n.right
	if n.axis.coord(s.target) > n.value {
		near, far = far, near
	}
	s.visit(near)
	if far.region.MinDistance(s.target) <= s.best+searchSlack {
		s.visit(far)
	}
}
