// Package octtree implements a dynamic spatio-temporal index over records
// that carry a timestamp.
//
// Leaves split into eight children, the four spatial quadrants over each
// half of the node's time range. Longitude wraps through the antimeridian;
// time is linear.
package octtree

import (
	"fmt"
	"strings"
	"time"

	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/kass/go-geospatial/pkg/spatial"
)

// OctTree is an 8-way subdivision tree. It is not safe for concurrent
// writes; read-only queries may run concurrently.
type OctTree struct {
	root *spatial.Node[geo.SpaceTimeRectangle]
}

// New creates an empty OctTree covering boundary.
func New(boundary geo.SpaceTimeRectangle, cfg spatial.Config) (*OctTree, error) {
	if err := boundary.Validate(); err != nil {
		return nil, fmt.Errorf("invalid octtree boundary: %w", err)
	}
	root, err := spatial.NewRoot(boundary, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid octtree config: %w", err)
	}
	return &OctTree{root: root}, nil
}

// Boundary returns the region covered by the tree.
func (o *OctTree) Boundary() geo.SpaceTimeRectangle { return o.root.Boundary() }

// Insert adds a record. It returns false without modifying the tree when the
// record has no time or lies outside the boundary.
func (o *OctTree) Insert(r models.Record) bool {
	return o.root.Insert(r)
}

// InsertAll inserts the records in order and returns how many were accepted.
func (o *OctTree) InsertAll(records []models.Record) int {
	n := 0
	for _, r := range records {
		if o.root.Insert(r) {
			n++
		}
	}
	return n
}

// Remove deletes the first stored record equal to r.
func (o *OctTree) Remove(r models.Record) bool {
	return o.root.Remove(r)
}

// Query returns every record inside rect.
func (o *OctTree) Query(rect geo.SpaceTimeRectangle) []models.Record {
	return o.root.Search(rect.Intersects, rect.Contains)
}

// NearbyPoints returns every record within dist km of r whose time is
// within tDist of r's time, both bounds inclusive.
func (o *OctTree) NearbyPoints(r models.Record, dist float64, tDist time.Duration) ([]models.Record, error) {
	return o.nearby(r, dist, tDist, false)
}

// NearbyPointsExcluding is NearbyPoints without the records equal to r.
func (o *OctTree) NearbyPointsExcluding(r models.Record, dist float64, tDist time.Duration) ([]models.Record, error) {
	return o.nearby(r, dist, tDist, true)
}

func (o *OctTree) nearby(r models.Record, dist float64, tDist time.Duration, excludeSelf bool) ([]models.Record, error) {
	switch {
	case !(dist >= 0):
		return nil, fmt.Errorf("%w: distance must not be negative, got %g", geo.ErrValidation, dist)
	case tDist < 0:
		return nil, fmt.Errorf("%w: time distance must not be negative, got %s", geo.ErrValidation, tDist)
	case !r.HasTime():
		return nil, fmt.Errorf("%w: query record has no time: %s", geo.ErrValidation, r)
	}
	from, to := r.Time.Add(-tDist), r.Time.Add(tDist)
	visit := func(b geo.SpaceTimeRectangle) bool { return b.Nearby(r, dist, tDist) }
	match := func(c models.Record) bool {
		if excludeSelf && c.Equal(r) {
			return false
		}
		if c.Time.Before(from) || c.Time.After(to) {
			return false
		}
		return geo.Distance(r, c) <= dist
	}
	return o.root.Search(visit, match), nil
}

// QueryEllipse returns every record inside the space-time ellipse.
func (o *OctTree) QueryEllipse(e geo.SpaceTimeEllipse) ([]models.Record, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.HalfWidth < 0 {
		return nil, fmt.Errorf("%w: negative time half-width %s", geo.ErrValidation, e.HalfWidth)
	}
	if !e.Center.HasTime() {
		return nil, fmt.Errorf("%w: space-time ellipse centre has no time", geo.ErrValidation)
	}
	return o.root.Search(e.MayIntersect, e.Contains), nil
}

// Len returns the number of stored records.
func (o *OctTree) Len() int { return o.root.Len() }

// Records returns every stored record.
func (o *OctTree) Records() []models.Record { return o.root.All() }

// Walk calls fn for every node in pre-order.
func (o *OctTree) Walk(fn func(*spatial.Node[geo.SpaceTimeRectangle])) {
	o.root.Walk(fn)
}

func (o *OctTree) String() string {
	var sb strings.Builder
	o.root.Format(&sb, "OctTree")
	return sb.String()
}
