package geo

import (
	"fmt"
	"math"

	"github.com/kass/go-geospatial/pkg/models"
)

// Rectangle is a lon/lat box on the surface of the Earth. When West is
// greater than East the box wraps through the antimeridian and covers
// [West, 180] and [-180, East].
type Rectangle struct {
	West  float64 `json:"west" yaml:"west"`
	East  float64 `json:"east" yaml:"east"`
	South float64 `json:"south" yaml:"south"`
	North float64 `json:"north" yaml:"north"`
}

// Globe covers the whole surface of the Earth.
var Globe = Rectangle{West: -180, East: 180, South: -90, North: 90}

// NewRectangle returns a validated Rectangle. Longitudes outside
// [-180, 180] are normalised; latitude bounds must satisfy
// -90 <= south < north <= 90.
func NewRectangle(west, east, south, north float64) (Rectangle, error) {
	r := Rectangle{
		West:  NormalizeLon(west),
		East:  NormalizeLon(east),
		South: south,
		North: north,
	}
	if err := r.Validate(); err != nil {
		return Rectangle{}, err
	}
	return r, nil
}

// Validate checks the rectangle invariants. It is useful for rectangles
// built as struct literals or decoded from configuration.
func (r Rectangle) Validate() error {
	if math.IsNaN(r.West) || math.IsNaN(r.East) || r.West < -180 || r.West > 180 || r.East < -180 || r.East > 180 {
		return fmt.Errorf("%w: longitude bounds out of range (west = %g, east = %g)",
			ErrConfiguration, r.West, r.East)
	}
	return checkLatitudes(r.South, r.North)
}

func checkLatitudes(south, north float64) error {
	if math.IsNaN(south) || math.IsNaN(north) || south < -90 || north > 90 {
		return fmt.Errorf("%w: latitude bounds out of range (south = %g, north = %g)",
			ErrConfiguration, south, north)
	}
	if south >= north {
		return fmt.Errorf("%w: south must be below north (south = %g, north = %g)",
			ErrConfiguration, south, north)
	}
	return nil
}

// Wraps reports whether the rectangle crosses the antimeridian.
func (r Rectangle) Wraps() bool {
	return r.West > r.East
}

// LonRange returns the longitudinal extent in degrees, in [0, 360].
func (r Rectangle) LonRange() float64 {
	if r.Wraps() {
		return r.East - r.West + 360
	}
	return r.East - r.West
}

// LatRange returns the latitudinal extent in degrees.
func (r Rectangle) LatRange() float64 {
	return r.North - r.South
}

// Center returns the centre of the rectangle as (lon, lat). The centre
// longitude is taken on the circle, so wrapping rectangles are centred
// on the seam side.
func (r Rectangle) Center() (float64, float64) {
	return r.midLon(), r.South + r.LatRange()/2
}

func (r Rectangle) midLon() float64 {
	return NormalizeLon(r.West + r.LonRange()/2)
}

// EdgeDist returns the largest distance in km from the centre of the
// rectangle to its corners (or to the equator on its eastern edge when the
// rectangle straddles the equator).
func (r Rectangle) EdgeDist() float64 {
	lon, lat := r.Center()
	d := math.Max(
		Haversine(lat, lon, r.North, r.East),
		Haversine(lat, lon, r.South, r.East),
	)
	if r.North*r.South < 0 {
		d = math.Max(d, Haversine(lat, lon, 0, r.East))
	}
	return d
}

// containsLon tests the longitude against the closed arc [West, East].
func (r Rectangle) containsLon(lon float64) bool {
	width := r.LonRange()
	if width >= 360 {
		return true
	}
	return lonOffset(r.West, lon) <= width
}

func (r Rectangle) containsLat(lat float64) bool {
	return lat >= r.South && lat <= r.North
}

// Contains reports whether the record lies inside the rectangle. Edges are
// included. Records outside the valid lon/lat domain are never contained.
func (r Rectangle) Contains(p models.Record) bool {
	return p.Valid() && r.containsLat(p.Lat) && r.containsLon(p.Lon)
}

// Intersects reports whether two rectangles share at least one point.
func (r Rectangle) Intersects(other Rectangle) bool {
	if other.South > r.North || other.North < r.South {
		return false
	}
	// two closed arcs overlap iff one contains the start of the other
	return r.containsLon(other.West) || other.containsLon(r.West)
}

// Subdivide splits the rectangle into four quadrants ordered north-west,
// north-east, south-west, south-east. Children share their edges with each
// other and tile the parent exactly; the longitude split is taken at the
// circular midpoint so wrapping rectangles split correctly.
func (r Rectangle) Subdivide() []Rectangle {
	midLon := r.midLon()
	midLat := r.South + r.LatRange()/2
	return []Rectangle{
		{West: r.West, East: midLon, South: midLat, North: r.North},
		{West: midLon, East: r.East, South: midLat, North: r.North},
		{West: r.West, East: midLon, South: r.South, North: midLat},
		{West: midLon, East: r.East, South: r.South, North: midLat},
	}
}

// MinDistance returns the smallest haversine distance in km from the record
// to any point of the rectangle, or 0 when the record is inside it.
//
// The bound is exact: if the record longitude lies inside the box the
// nearest point is on the same meridian; otherwise it lies on one of the two
// bounding meridians, where the along-meridian distance is unimodal and the
// foot of the perpendicular can be clamped to the latitude range.
func (r Rectangle) MinDistance(p models.Record) float64 {
	if r.containsLon(p.Lon) {
		switch {
		case p.Lat > r.North:
			return (p.Lat - r.North) * degToRad * EarthRadius
		case p.Lat < r.South:
			return (r.South - p.Lat) * degToRad * EarthRadius
		}
		return 0
	}
	return math.Min(
		r.meridianDistance(p, r.West),
		r.meridianDistance(p, r.East),
	)
}

// meridianDistance is the distance from p to the segment of meridian lon
// between South and North.
func (r Rectangle) meridianDistance(p models.Record, lon float64) float64 {
	dLon := lonDelta(p.Lon, lon) * degToRad
	latRad := p.Lat * degToRad

	if math.Cos(dLon) <= 0 {
		// the meridian half lies on the far side and the distance along it
		// has a maximum inside, so the minimum is at one of the ends
		return math.Min(
			Haversine(p.Lat, p.Lon, r.South, lon),
			Haversine(p.Lat, p.Lon, r.North, lon),
		)
	}
	foot := math.Atan2(math.Sin(latRad), math.Cos(latRad)*math.Cos(dLon)) * radToDeg
	foot = math.Min(math.Max(foot, r.South), r.North)
	return Haversine(p.Lat, p.Lon, foot, lon)
}

// distanceSlack absorbs floating point error in pruning comparisons, so a
// record exactly dist away is never pruned with its node.
const distanceSlack = 1e-9

// Nearby reports whether any point of the rectangle can be within dist km
// of p.
func (r Rectangle) Nearby(p models.Record, dist float64) bool {
	return r.MinDistance(p) <= dist+distanceSlack
}

func (r Rectangle) String() string {
	return fmt.Sprintf("Rectangle(west = %g, east = %g, south = %g, north = %g)",
		r.West, r.East, r.South, r.North)
}
