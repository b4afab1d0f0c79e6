// Package spatial implements the capacity-triggered subdivision tree shared
// by the QuadTree and the OctTree.
//
// A Node is a leaf holding records until an insert would exceed its
// capacity, at which point it splits into the children returned by its
// boundary's Subdivide (4 for a Rectangle, 8 for a SpaceTimeRectangle),
// pushes every held record down and becomes internal for good. Nodes at the
// maximum depth never split and may overflow.
//
// Node is not safe for concurrent mutation. Concurrent read-only searches of
// a tree that is not being modified are safe.
package spatial

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/models"
)

// Boundary is the region capability a Node needs from its boundary type.
type Boundary[B any] interface {
	Contains(models.Record) bool
	Subdivide() []B
}

const (
	// DefaultCapacity is the number of records a leaf holds before splitting.
	DefaultCapacity = 5
	// DefaultMaxDepth bounds the depth of the tree.
	DefaultMaxDepth = 20
)

// Config holds construction-time tree settings.
type Config struct {
	// Capacity is the maximum number of records per leaf before a split is
	// attempted.
	Capacity int `yaml:"capacity" json:"capacity"`
	// MaxDepth is the depth at which splitting stops; leaves at this depth
	// hold any number of records.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
}

// DefaultConfig returns the default tree settings.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity, MaxDepth: DefaultMaxDepth}
}

// Validate returns a configuration error for unusable settings.
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be at least 1, got %d", geo.ErrConfiguration, c.Capacity)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth must not be negative, got %d", geo.ErrConfiguration, c.MaxDepth)
	}
	return nil
}

// Node is one cell of the tree. It is a leaf while children is nil.
type Node[B Boundary[B]] struct {
	boundary B
	capacity int
	maxDepth int
	depth    int
	records  []models.Record
	children []*Node[B]
}

// NewRoot creates an empty root node.
func NewRoot[B Boundary[B]](boundary B, cfg Config) (*Node[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Node[B]{
		boundary: boundary,
		capacity: cfg.Capacity,
		maxDepth: cfg.MaxDepth,
	}, nil
}

// Boundary returns the region covered by the node.
func (n *Node[B]) Boundary() B { return n.boundary }

// Depth returns the depth of the node; the root is at depth 0.
func (n *Node[B]) Depth() int { return n.depth }

// Capacity returns the leaf capacity.
func (n *Node[B]) Capacity() int { return n.capacity }

// MaxDepth returns the depth at which splitting stops.
func (n *Node[B]) MaxDepth() int { return n.maxDepth }

// IsLeaf reports whether the node holds records rather than children.
func (n *Node[B]) IsLeaf() bool { return n.children == nil }

// Records returns the records held directly by the node. Internal nodes hold
// none. The slice must not be modified.
func (n *Node[B]) Records() []models.Record { return n.records }

// Children returns the child nodes, or nil for a leaf.
func (n *Node[B]) Children() []*Node[B] { return n.children }

// Insert adds the record to the subtree. It returns false, leaving the tree
// unchanged, when the record lies outside the node boundary.
func (n *Node[B]) Insert(r models.Record) bool {
	if !n.boundary.Contains(r) {
		return false
	}
	n.insert(r)
	return true
}

func (n *Node[B]) insert(r models.Record) {
	for !n.IsLeaf() {
		n = n.route(r)
	}
	if len(n.records) < n.capacity || n.depth >= n.maxDepth {
		n.records = append(n.records, r)
		return
	}
	n.split()
	n.route(r).insert(r)
}

// split turns a full leaf into an internal node and moves its records into
// the children.
func (n *Node[B]) split() {
	bounds := n.boundary.Subdivide()
	n.children = make([]*Node[B], len(bounds))
	for i, b := range bounds {
		n.children[i] = &Node[B]{
			boundary: b,
			capacity: n.capacity,
			maxDepth: n.maxDepth,
			depth:    n.depth + 1,
		}
	}
	held := n.records
	n.records = nil
	for _, r := range held {
		n.route(r).insert(r)
	}
}

// route returns the lowest-indexed child containing r. The children tile the
// boundary, so a record inside the node that no child contains means
// Subdivide is broken.
func (n *Node[B]) route(r models.Record) *Node[B] {
	for _, c := range n.children {
		if c.boundary.Contains(r) {
			return c
		}
	}
	panic(fmt.Sprintf("spatial: %s lies in %v but in none of its children", r, n.boundary))
}

// Remove deletes the first record equal to r from the leaf that r routes to.
// It reports whether a record was removed. The structure of the tree is
// never changed.
func (n *Node[B]) Remove(r models.Record) bool {
	if !n.boundary.Contains(r) {
		return false
	}
	for !n.IsLeaf() {
		n = n.route(r)
	}
	i := slices.IndexFunc(n.records, r.Equal)
	if i < 0 {
		return false
	}
	n.records = slices.Delete(n.records, i, i+1)
	return true
}

// Search collects the records accepted by match from every leaf reachable
// through nodes whose boundary passes visit.
func (n *Node[B]) Search(visit func(B) bool, match func(models.Record) bool) []models.Record {
	var out []models.Record
	n.search(visit, match, &out)
	return out
}

func (n *Node[B]) search(visit func(B) bool, match func(models.Record) bool, out *[]models.Record) {
	if !visit(n.boundary) {
		return
	}
	for _, r := range n.records {
		if match(r) {
			*out = append(*out, r)
		}
	}
	for _, c := range n.children {
		c.search(visit, match, out)
	}
}

// Walk calls fn for every node of the subtree in pre-order.
func (n *Node[B]) Walk(fn func(*Node[B])) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Len returns the number of records in the subtree.
func (n *Node[B]) Len() int {
	count := 0
	n.Walk(func(node *Node[B]) { count += len(node.records) })
	return count
}

// All returns every record of the subtree.
func (n *Node[B]) All() []models.Record {
	out := make([]models.Record, 0, n.Len())
	n.Walk(func(node *Node[B]) { out = append(out, node.records...) })
	return out
}

// Format writes an indented description of the subtree, labelled with name.
func (n *Node[B]) Format(sb *strings.Builder, name string) {
	indent := strings.Repeat("    ", n.depth)
	fmt.Fprintf(sb, "%s%s:\n", indent, name)
	fmt.Fprintf(sb, "%s- boundary: %v\n", indent, n.boundary)
	fmt.Fprintf(sb, "%s- capacity: %d\n", indent, n.capacity)
	fmt.Fprintf(sb, "%s- depth: %d\n", indent, n.depth)
	fmt.Fprintf(sb, "%s- max_depth: %d\n", indent, n.maxDepth)
	if len(n.records) > 0 {
		fmt.Fprintf(sb, "%s- contents:\n", indent)
		fmt.Fprintf(sb, "%s- number of elements: %d\n", indent, len(n.records))
		for _, r := range n.records {
			fmt.Fprintf(sb, "%s  * %s\n", indent, r)
		}
	}
	if !n.IsLeaf() {
		fmt.Fprintf(sb, "%s- with children:\n", indent)
		for _, c := range n.children {
			c.Format(sb, name)
		}
	}
}
