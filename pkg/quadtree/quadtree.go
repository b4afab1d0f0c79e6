// Package quadtree implements a dynamic spatial index over lon/lat records.
//
// Leaves split into four quadrants when they exceed their capacity. The
// boundary may wrap through the antimeridian and all proximity queries use
// haversine distances, so results stay correct at the poles and across the
// ±180° seam.
package quadtree

import (
	"fmt"
	"strings"

	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/kass/go-geospatial/pkg/spatial"
)

// QuadTree is a 4-way subdivision tree. It is not safe for concurrent
// writes; read-only queries may run concurrently.
type QuadTree struct {
	root *spatial.Node[geo.Rectangle]
}

// New creates an empty QuadTree covering boundary.
func New(boundary geo.Rectangle, cfg spatial.Config) (*QuadTree, error) {
	if err := boundary.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quadtree boundary: %w", err)
	}
	root, err := spatial.NewRoot(boundary, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid quadtree config: %w", err)
	}
	return &QuadTree{root: root}, nil
}

// NewGlobal creates an empty QuadTree covering the whole globe with the
// default configuration.
func NewGlobal() *QuadTree {
	root, _ := spatial.NewRoot(geo.Globe, spatial.DefaultConfig())
	return &QuadTree{root: root}
}

// Boundary returns the region covered by the tree.
func (q *QuadTree) Boundary() geo.Rectangle { return q.root.Boundary() }

// Insert adds a record. It returns false without modifying the tree when the
// record lies outside the boundary.
func (q *QuadTree) Insert(r models.Record) bool {
	return q.root.Insert(r)
}

// InsertAll inserts the records in order and returns how many were accepted.
func (q *QuadTree) InsertAll(records []models.Record) int {
	n := 0
	for _, r := range records {
		if q.root.Insert(r) {
			n++
		}
	}
	return n
}

// Remove deletes the first stored record equal to r. It returns false when
// no such record exists.
func (q *QuadTree) Remove(r models.Record) bool {
	return q.root.Remove(r)
}

// Query returns every record inside rect.
func (q *QuadTree) Query(rect geo.Rectangle) []models.Record {
	return q.root.Search(rect.Intersects, rect.Contains)
}

// NearbyPoints returns every record within dist km of r, including r itself
// if it is stored.
func (q *QuadTree) NearbyPoints(r models.Record, dist float64) ([]models.Record, error) {
	return q.nearby(r, dist, false)
}

// NearbyPointsExcluding is NearbyPoints without the records equal to r.
func (q *QuadTree) NearbyPointsExcluding(r models.Record, dist float64) ([]models.Record, error) {
	return q.nearby(r, dist, true)
}

func (q *QuadTree) nearby(r models.Record, dist float64, excludeSelf bool) ([]models.Record, error) {
	if !(dist >= 0) {
		return nil, fmt.Errorf("%w: distance must not be negative, got %g", geo.ErrValidation, dist)
	}
	visit := func(b geo.Rectangle) bool { return b.Nearby(r, dist) }
	match := func(c models.Record) bool {
		if excludeSelf && c.Equal(r) {
			return false
		}
		return geo.Distance(r, c) <= dist
	}
	return q.root.Search(visit, match), nil
}

// QueryEllipse returns every record inside the geodesic ellipse.
func (q *QuadTree) QueryEllipse(e geo.Ellipse) ([]models.Record, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return q.root.Search(e.MayIntersect, e.Contains), nil
}

// Len returns the number of stored records.
func (q *QuadTree) Len() int { return q.root.Len() }

// Records returns every stored record.
func (q *QuadTree) Records() []models.Record { return q.root.All() }

// Walk calls fn for every node in pre-order.
func (q *QuadTree) Walk(fn func(*spatial.Node[geo.Rectangle])) {
	q.root.Walk(fn)
}

func (q *QuadTree) String() string {
	var sb strings.Builder
	q.root.Format(&sb, "QuadTree")
	return sb.String()
}
