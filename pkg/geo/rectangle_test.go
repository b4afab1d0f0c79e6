package geo

import (
	"math/rand"
	"testing"

	"github.com/kass/go-geospatial/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRectangle(t *testing.T) {
	testCases := []struct {
		name                     string
		west, east, south, north float64
		wantErr                  bool
	}{
		{"plain", -10, 10, -5, 5, false},
		{"globe", -180, 180, -90, 90, false},
		{"wrapping", 170, -170, -10, 10, false},
		{"beyond the pole", 0, 10, 95, 100, true},
		{"below the pole", 0, 10, -100, 0, true},
		{"inverted latitudes", 0, 10, 20, 10, true},
		{"zero height", 0, 10, 5, 5, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRectangle(tc.west, tc.east, tc.south, tc.north)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewRectangleNormalizesLongitudes(t *testing.T) {
	r, err := NewRectangle(190, 200, 0, 10)
	require.NoError(t, err)
	assert.InDelta(t, -170, r.West, 1e-9)
	assert.InDelta(t, -160, r.East, 1e-9)
}

func TestRectangleContains(t *testing.T) {
	rect := Rectangle{West: 0, East: 20, South: 0, North: 10}
	points := []models.Record{
		{Lon: 0, Lat: 0},
		{Lon: 20, Lat: 10},
		{Lon: 10, Lat: 5},
		{Lon: 12.8, Lat: 2.1},
		{Lon: -2, Lat: -9.2},
		{Lon: 20.01, Lat: 5},
		{Lon: 10, Lat: 95},
	}
	expected := []bool{true, true, true, true, false, false, false}
	for i, p := range points {
		assert.Equal(t, expected[i], rect.Contains(p), "%s", p)
	}
}

func TestRectangleContainsWrapping(t *testing.T) {
	rect := Rectangle{West: 170, East: -170, South: -10, North: 10}
	assert.True(t, rect.Wraps())
	assert.InDelta(t, 20, rect.LonRange(), 1e-9)

	for _, lon := range []float64{170, 175, 180, -180, -175, -170} {
		assert.True(t, rect.Contains(models.Record{Lon: lon, Lat: 0}), "lon %g", lon)
	}
	for _, lon := range []float64{169, 0, -169, 90} {
		assert.False(t, rect.Contains(models.Record{Lon: lon, Lat: 0}), "lon %g", lon)
	}
	assert.False(t, rect.Contains(models.Record{Lon: 200, Lat: 0}))
}

func TestRectangleCenter(t *testing.T) {
	lon, lat := Rectangle{West: 170, East: -170, South: -10, North: 30}.Center()
	assert.InDelta(t, 180, lon, 1e-9)
	assert.InDelta(t, 10, lat, 1e-9)

	lon, lat = Globe.Center()
	assert.InDelta(t, 0, lon, 1e-9)
	assert.InDelta(t, 0, lat, 1e-9)
}

func TestRectangleIntersects(t *testing.T) {
	rect := Rectangle{West: 0, East: 20, South: 0, North: 10}
	testCases := []struct {
		name     string
		other    Rectangle
		expected bool
	}{
		{"inside", Rectangle{West: 1, East: 19, South: 1, North: 9}, true},
		{"overlap", Rectangle{West: 15, East: 30, South: 5, North: 15}, true},
		{"shared edge", Rectangle{West: 20, East: 30, South: 0, North: 10}, true},
		{"disjoint in lon", Rectangle{West: 21, East: 30, South: 0, North: 10}, false},
		{"disjoint in lat", Rectangle{West: 0, East: 20, South: 11, North: 12}, false},
		{"enclosing", Globe, true},
		{"wrapping through", Rectangle{West: 10, East: 5, South: 0, North: 10}, true},
		{"wrapping away", Rectangle{West: 170, East: -170, South: 0, North: 10}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, rect.Intersects(tc.other))
			assert.Equal(t, tc.expected, tc.other.Intersects(rect))
		})
	}
}

func TestRectangleSubdivide(t *testing.T) {
	rect := Rectangle{West: -10, East: 10, South: 0, North: 20}
	children := rect.Subdivide()
	require.Len(t, children, 4)

	assert.Equal(t, Rectangle{West: -10, East: 0, South: 10, North: 20}, children[0])
	assert.Equal(t, Rectangle{West: 0, East: 10, South: 10, North: 20}, children[1])
	assert.Equal(t, Rectangle{West: -10, East: 0, South: 0, North: 10}, children[2])
	assert.Equal(t, Rectangle{West: 0, East: 10, South: 0, North: 10}, children[3])
}

func TestRectangleSubdivideWrapping(t *testing.T) {
	rect := Rectangle{West: 160, East: -170, South: -10, North: 10}
	children := rect.Subdivide()
	require.Len(t, children, 4)

	assert.InDelta(t, 175, children[0].East, 1e-9)
	assert.InDelta(t, 175, children[1].West, 1e-9)
	for _, c := range children {
		assert.InDelta(t, rect.LonRange()/2, c.LonRange(), 1e-9)
	}
}

func TestRectangleSubdivideTiles(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	parents := []Rectangle{
		Globe,
		{West: 170, East: -170, South: -10, North: 10},
		{West: 0, East: 180, South: 0, North: 90},
		{West: -180, East: 0, South: -90, North: 0},
		{West: 90, East: 80, South: -45, North: 45},
	}

	for _, parent := range parents {
		children := parent.Subdivide()
		for range 2000 {
			p := randomIn(rng, parent)
			require.True(t, parent.Contains(p), "%s not in %s", p, parent)

			owners := 0
			for _, c := range children {
				if c.Contains(p) {
					owners++
				}
			}
			assert.GreaterOrEqual(t, owners, 1, "%s lost by %s", p, parent)
		}
	}
}

func TestRectangleSubdivideEdges(t *testing.T) {
	children := Globe.Subdivide()
	// the shared centre belongs to all four children, routing picks the first
	centre := models.Record{Lon: 0, Lat: 0}
	for _, c := range children {
		assert.True(t, c.Contains(centre))
	}
	// ±180 are the same meridian
	for _, lon := range []float64{-180, 180} {
		p := models.Record{Lon: lon, Lat: 45}
		assert.True(t, children[0].Contains(p))
		assert.True(t, children[1].Contains(p))
	}
}

func TestRectangleMinDistance(t *testing.T) {
	testCases := []struct {
		name     string
		rect     Rectangle
		point    models.Record
		expected float64
	}{
		{
			name:     "inside",
			rect:     Rectangle{West: 0, East: 10, South: 0, North: 10},
			point:    models.Record{Lon: 5, Lat: 5},
			expected: 0,
		},
		{
			name:     "north of the box",
			rect:     Rectangle{West: 0, East: 10, South: 0, North: 10},
			point:    models.Record{Lon: 5, Lat: 12},
			expected: Haversine(12, 5, 10, 5),
		},
		{
			name:     "east on the equator",
			rect:     Rectangle{West: 0, East: 10, South: -5, North: 5},
			point:    models.Record{Lon: 12, Lat: 0},
			expected: Haversine(0, 12, 0, 10),
		},
		{
			name:     "across the antimeridian",
			rect:     Rectangle{West: -179, East: -170, South: -5, North: 5},
			point:    models.Record{Lon: 179, Lat: 0},
			expected: Haversine(0, 179, 0, -179),
		},
		{
			name:     "wrapping box",
			rect:     Rectangle{West: 170, East: -170, South: -5, North: 5},
			point:    models.Record{Lon: -165, Lat: 0},
			expected: Haversine(0, -165, 0, -170),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, tc.rect.MinDistance(tc.point), 1e-6)
		})
	}
}

func TestRectangleMinDistanceIsLowerBound(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for range 200 {
		rect := randomRectangle(rng)
		p := models.Record{Lon: rng.Float64()*360 - 180, Lat: rng.Float64()*180 - 90}
		bound := rect.MinDistance(p)

		for range 300 {
			q := randomIn(rng, rect)
			assert.LessOrEqual(t, bound, Distance(p, q)+1e-6, "%s to %s", p, rect)
		}
		if rect.Contains(p) {
			assert.Zero(t, bound)
		}
	}
}

func TestRectangleNearby(t *testing.T) {
	rect := Rectangle{West: -179, East: -170, South: -5, North: 5}
	p := models.Record{Lon: 179, Lat: 0}
	d := Haversine(0, 179, 0, -179)
	assert.True(t, rect.Nearby(p, d))
	assert.True(t, rect.Nearby(p, d+1))
	assert.False(t, rect.Nearby(p, d-1))
}

func randomRectangle(rng *rand.Rand) Rectangle {
	south := rng.Float64()*170 - 90
	north := south + rng.Float64()*(90-south)
	if north <= south {
		north = south + 1e-3
	}
	return Rectangle{
		West:  rng.Float64()*360 - 180,
		East:  rng.Float64()*360 - 180,
		South: south,
		North: north,
	}
}

func randomIn(rng *rand.Rand, r Rectangle) models.Record {
	return models.Record{
		Lon: NormalizeLon(r.West + rng.Float64()*r.LonRange()),
		Lat: r.South + rng.Float64()*r.LatRange(),
	}
}
