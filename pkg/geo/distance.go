// Package geo provides the spherical geometry used by the spatial indexes:
// haversine distances, antimeridian-aware rectangles and geodesic ellipses.
//
// All distances are in kilometres on a sphere of radius EarthRadius.
package geo

import (
	"math"

	"github.com/kass/go-geospatial/pkg/models"
)

// EarthRadius is the mean radius of the Earth in km.
const EarthRadius = 6371.0

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Distance returns the haversine distance between two records in km.
func Distance(a, b models.Record) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Haversine calculates the great-circle distance between two lat/lon points in kilometers
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * degToRad
	lat2Rad := lat2 * degToRad

	dLat := lat2Rad - lat1Rad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push a just outside [0, 1] for antipodal points
	a = math.Min(math.Max(a, 0), 1)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// Bearing returns the initial bearing in degrees, clockwise from north in
// [0, 360), of the great circle from point 1 to point 2.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * degToRad
	lat2Rad := lat2 * degToRad
	lonDiff := (lon2 - lon1) * degToRad

	y := math.Sin(lonDiff) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lonDiff)

	bearing := math.Atan2(y, x) * radToDeg
	return math.Mod(bearing+360, 360)
}

// Destination returns the point reached by travelling dist km from
// (lat, lon) along the given bearing (degrees clockwise from north).
func Destination(lat, lon, bearing, dist float64) (float64, float64) {
	d := dist / EarthRadius

	latRad := lat * degToRad
	lonRad := lon * degToRad
	bearingRad := bearing * degToRad

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(d) +
		math.Cos(latRad)*math.Sin(d)*math.Cos(bearingRad))
	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(d)*math.Cos(latRad),
		math.Cos(d)-math.Sin(latRad)*math.Sin(lat2))

	return lat2 * radToDeg, NormalizeLon(lon2 * radToDeg)
}

// NormalizeLon maps a longitude outside [-180, 180] back into that range.
// Values already inside the range, including both ±180, are returned as is.
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// lonDelta returns the signed shortest longitude difference to - from,
// in [-180, 180].
func lonDelta(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return d
}

// lonOffset returns the eastward arc length from west to lon in [0, 360).
func lonOffset(west, lon float64) float64 {
	d := math.Mod(lon-west, 360)
	if d < 0 {
		d += 360
	}
	return d
}
