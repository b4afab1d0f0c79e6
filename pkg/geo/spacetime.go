package geo

import (
	"fmt"
	"time"

	"github.com/kass/go-geospatial/pkg/models"
)

// SpaceTimeRectangle is a Rectangle with a closed time range [Start, End].
// It follows the same antimeridian wrapping rule as Rectangle.
type SpaceTimeRectangle struct {
	Rectangle
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// NewSpaceTimeRectangle returns a validated SpaceTimeRectangle. In addition
// to the Rectangle rules, start must be strictly before end.
func NewSpaceTimeRectangle(west, east, south, north float64, start, end time.Time) (SpaceTimeRectangle, error) {
	rect, err := NewRectangle(west, east, south, north)
	if err != nil {
		return SpaceTimeRectangle{}, err
	}
	r := SpaceTimeRectangle{Rectangle: rect, Start: start, End: end}
	if err := r.Validate(); err != nil {
		return SpaceTimeRectangle{}, err
	}
	return r, nil
}

// Validate checks the rectangle invariants, including start < end.
func (r SpaceTimeRectangle) Validate() error {
	if err := r.Rectangle.Validate(); err != nil {
		return err
	}
	if !r.Start.Before(r.End) {
		return fmt.Errorf("%w: start must be before end (start = %s, end = %s)",
			ErrConfiguration, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Duration returns the length of the time range.
func (r SpaceTimeRectangle) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// MidTime returns the temporal midpoint.
func (r SpaceTimeRectangle) MidTime() time.Time {
	return r.Start.Add(r.Duration() / 2)
}

func (r SpaceTimeRectangle) containsTime(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// overlapsWindow reports whether [from, to] meets the time range.
func (r SpaceTimeRectangle) overlapsWindow(from, to time.Time) bool {
	return !from.After(r.End) && !to.Before(r.Start)
}

// Contains reports whether the record lies inside the rectangle in space and
// time. Records without a timestamp are never contained.
func (r SpaceTimeRectangle) Contains(p models.Record) bool {
	return p.HasTime() && r.containsTime(p.Time) && r.Rectangle.Contains(p)
}

// Intersects reports whether two space-time rectangles overlap in both space
// and time.
func (r SpaceTimeRectangle) Intersects(other SpaceTimeRectangle) bool {
	return r.overlapsWindow(other.Start, other.End) && r.Rectangle.Intersects(other.Rectangle)
}

// Subdivide splits the rectangle into eight children: the four spatial
// quadrants (north-west, north-east, south-west, south-east) over the first
// half of the time range, followed by the same quadrants over the second
// half.
func (r SpaceTimeRectangle) Subdivide() []SpaceTimeRectangle {
	mid := r.MidTime()
	quads := r.Rectangle.Subdivide()
	children := make([]SpaceTimeRectangle, 0, 2*len(quads))
	for _, q := range quads {
		children = append(children, SpaceTimeRectangle{Rectangle: q, Start: r.Start, End: mid})
	}
	for _, q := range quads {
		children = append(children, SpaceTimeRectangle{Rectangle: q, Start: mid, End: r.End})
	}
	return children
}

// Nearby reports whether any point of the rectangle can be within dist km
// of p and within tDist of p's timestamp.
func (r SpaceTimeRectangle) Nearby(p models.Record, dist float64, tDist time.Duration) bool {
	if !r.overlapsWindow(p.Time.Add(-tDist), p.Time.Add(tDist)) {
		return false
	}
	return r.MinDistance(p) <= dist+distanceSlack
}

func (r SpaceTimeRectangle) String() string {
	return fmt.Sprintf("SpaceTimeRectangle(west = %g, east = %g, south = %g, north = %g, start = %s, end = %s)",
		r.West, r.East, r.South, r.North, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
