package geo

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/kass/go-geospatial/pkg/models"
)

// planeTolerance is the cross product norm below which two great circles
// are treated as lying in the same plane.
const planeTolerance = 1e-12

// GreatCircle is the great circle through two points on the sphere.
type GreatCircle struct {
	From, To models.Record
	// Dist is the haversine distance between From and To in km.
	Dist float64

	normal r3.Vector
}

// NewGreatCircle returns the great circle through (lon0, lat0) and
// (lon1, lat1). Antipodal or identical points do not define a unique circle;
// the normal is then zero and IdenticalPlane reports true for any circle.
func NewGreatCircle(lon0, lat0, lon1, lat1 float64) GreatCircle {
	from := models.Record{Lon: lon0, Lat: lat0}
	to := models.Record{Lon: lon1, Lat: lat1}
	normal := toVector(from).Cross(toVector(to))
	if normal.Norm() > planeTolerance {
		normal = normal.Normalize()
	}
	return GreatCircle{
		From:   from,
		To:     to,
		Dist:   Distance(from, to),
		normal: normal,
	}
}

func toVector(p models.Record) r3.Vector {
	lat := p.Lat * degToRad
	lon := p.Lon * degToRad
	return r3.Vector{
		X: math.Cos(lat) * math.Cos(lon),
		Y: math.Cos(lat) * math.Sin(lon),
		Z: math.Sin(lat),
	}
}

func fromVector(v r3.Vector) (lon, lat float64) {
	v = v.Normalize()
	lat = math.Asin(math.Max(-1, math.Min(1, v.Z))) * radToDeg
	lon = math.Atan2(v.Y, v.X) * radToDeg
	return lon, lat
}

// DistFromPoint returns the cross-track distance in km from the point to
// the great circle.
func (g GreatCircle) DistFromPoint(lon, lat float64) float64 {
	s := g.normal.Dot(toVector(models.Record{Lon: lon, Lat: lat}))
	return math.Abs(math.Asin(math.Max(-1, math.Min(1, s)))) * EarthRadius
}

// IdenticalPlane reports whether both great circles are the same circle.
func (g GreatCircle) IdenticalPlane(other GreatCircle) bool {
	return g.normal.Cross(other.normal).Norm() <= planeTolerance
}

// Intersection returns the intersection point of the two great circles
// closest to the midpoint of g's defining segment. ok is false when the
// circles are identical and have no unique intersection.
func (g GreatCircle) Intersection(other GreatCircle) (lon, lat float64, ok bool) {
	v := g.normal.Cross(other.normal)
	if v.Norm() <= planeTolerance {
		return 0, 0, false
	}
	v = v.Normalize()
	mid := toVector(g.From).Add(toVector(g.To))
	if mid.Dot(v) < 0 {
		v = v.Mul(-1)
	}
	lon, lat = fromVector(v)
	return lon, lat, true
}

// IntersectionAngle returns the angle in degrees, in [0, 90], between the
// planes of the two great circles.
func (g GreatCircle) IntersectionAngle(other GreatCircle) float64 {
	sin := g.normal.Cross(other.normal).Norm()
	cos := math.Abs(g.normal.Dot(other.normal))
	return math.Atan2(sin, cos) * radToDeg
}
