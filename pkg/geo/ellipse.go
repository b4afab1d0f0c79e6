package geo

import (
	"fmt"
	"math"
	"time"

	"github.com/kass/go-geospatial/pkg/models"
)

// Ellipse is an ellipse on the surface of the sphere, defined by distance
// and azimuth from its centre rather than in lon/lat coordinates.
type Ellipse struct {
	Center models.Record
	// A and B are the semi-major and semi-minor axis lengths in km.
	A, B float64
	// Theta is the angle of the semi-major axis in radians, anticlockwise
	// from east.
	Theta float64
}

// NewEllipse returns an Ellipse centred on center. Both axis lengths must be
// positive.
func NewEllipse(center models.Record, a, b, theta float64) (Ellipse, error) {
	if err := (Ellipse{A: a, B: b}).Validate(); err != nil {
		return Ellipse{}, err
	}
	if !center.Valid() {
		return Ellipse{}, fmt.Errorf("%w: ellipse centre out of range: %s", ErrValidation, center)
	}
	return Ellipse{
		Center: center,
		A:      a,
		B:      b,
		Theta:  theta,
	}, nil
}

// Validate reports a validation error for zero-length axes, which also
// catches a zero Ellipse value.
func (e Ellipse) Validate() error {
	if !(e.A > 0) || !(e.B > 0) {
		return fmt.Errorf("%w: ellipse axes must be positive (a = %g, b = %g)",
			ErrValidation, e.A, e.B)
	}
	return nil
}

// Bearing returns the direction of the semi-major axis in degrees
// clockwise from north.
func (e Ellipse) Bearing() float64 {
	return math.Mod(math.Mod(90-e.Theta*radToDeg, 360)+360, 360)
}

// Foci returns the two focal points, c = sqrt(|A²-B²|) km either side of
// the centre along the major axis.
func (e Ellipse) Foci() (models.Record, models.Record) {
	c := math.Sqrt(math.Abs(e.A*e.A - e.B*e.B))
	bearing := e.Bearing()
	if e.B > e.A {
		bearing += 90
	}
	lat1, lon1 := Destination(e.Center.Lat, e.Center.Lon, bearing, c)
	lat2, lon2 := Destination(e.Center.Lat, e.Center.Lon, bearing+180, c)
	return models.Record{Lon: lon1, Lat: lat1}, models.Record{Lon: lon2, Lat: lat2}
}

// radius returns the normalised distance of p from the centre: the geodesic
// distance divided by the ellipse radius in p's direction.
func (e Ellipse) radius(p models.Record) float64 {
	d := Distance(e.Center, p)
	if d == 0 {
		return 0
	}
	psi := (Bearing(e.Center.Lat, e.Center.Lon, p.Lat, p.Lon) - e.Bearing()) * degToRad
	x := math.Cos(psi) / e.A
	y := math.Sin(psi) / e.B
	return d * math.Sqrt(x*x+y*y)
}

// Contains reports whether p lies inside or on the ellipse.
func (e Ellipse) Contains(p models.Record) bool {
	return p.Valid() && e.radius(p) <= 1
}

// MayIntersect reports whether the rectangle can hold points of the
// ellipse. It is false only when the rectangle is farther from the centre
// than the longer axis.
func (e Ellipse) MayIntersect(r Rectangle) bool {
	return r.Nearby(e.Center, math.Max(e.A, e.B))
}

func (e Ellipse) String() string {
	return fmt.Sprintf("Ellipse(lon = %g, lat = %g, a = %g, b = %g, theta = %g)",
		e.Center.Lon, e.Center.Lat, e.A, e.B, e.Theta)
}

// SpaceTimeEllipse is an Ellipse that also spans the closed time window
// [Center.Time - HalfWidth, Center.Time + HalfWidth].
type SpaceTimeEllipse struct {
	Ellipse
	HalfWidth time.Duration
}

// NewSpaceTimeEllipse returns a SpaceTimeEllipse. The centre must carry a
// timestamp and the half-width must not be negative.
func NewSpaceTimeEllipse(center models.Record, a, b, theta float64, halfWidth time.Duration) (SpaceTimeEllipse, error) {
	if !center.HasTime() {
		return SpaceTimeEllipse{}, fmt.Errorf("%w: space-time ellipse centre has no time", ErrValidation)
	}
	if halfWidth < 0 {
		return SpaceTimeEllipse{}, fmt.Errorf("%w: negative time half-width %s", ErrValidation, halfWidth)
	}
	e, err := NewEllipse(center, a, b, theta)
	if err != nil {
		return SpaceTimeEllipse{}, err
	}
	return SpaceTimeEllipse{Ellipse: e, HalfWidth: halfWidth}, nil
}

// Start returns the beginning of the time window.
func (e SpaceTimeEllipse) Start() time.Time {
	return e.Center.Time.Add(-e.HalfWidth)
}

// End returns the end of the time window.
func (e SpaceTimeEllipse) End() time.Time {
	return e.Center.Time.Add(e.HalfWidth)
}

// Contains reports whether p lies inside the ellipse and its time window.
func (e SpaceTimeEllipse) Contains(p models.Record) bool {
	if !p.HasTime() || p.Time.Before(e.Start()) || p.Time.After(e.End()) {
		return false
	}
	return e.Ellipse.Contains(p)
}

// MayIntersect reports whether the space-time rectangle can hold points of
// the ellipse.
func (e SpaceTimeEllipse) MayIntersect(r SpaceTimeRectangle) bool {
	return r.overlapsWindow(e.Start(), e.End()) && e.Ellipse.MayIntersect(r.Rectangle)
}
