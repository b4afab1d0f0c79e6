// Package rtree is a planar R-tree baseline over lon/lat records, built on
// rtreego. Records are spread over longitude bands, one R-tree per band, and
// queries fan out to the bands they touch in parallel. Query boxes that
// cross the antimeridian are split into planar halves and radius queries
// are filtered by haversine distance, so results agree with the spherical
// trees while the index structure itself stays Euclidean.
package rtree

import (
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/log"
	"github.com/kass/go-geospatial/pkg/models"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// entry wraps a record to implement rtreego.Spatial
type entry struct {
	models.Record
	rect *rtreego.Rect
}

func (e *entry) Bounds() *rtreego.Rect {
	return e.rect
}

// span is a planar box with west <= east. The spans of one rectangle are
// disjoint in longitude so no record is reported twice.
type span struct {
	west, east, south, north float64
}

func (s span) contains(lon float64) bool {
	return lon >= s.west && lon <= s.east
}

// Index is a thread-safe partitioned R-tree.
type Index struct {
	partitions []*rtreego.Rtree
	width      float64
	mu         sync.RWMutex
	count      atomic.Int64
	log        *log.Logger
}

// New creates an index with the given number of longitude bands. A
// non-positive count uses one band per CPU.
func New(partitions int, lg *log.Logger) *Index {
	if partitions <= 0 {
		partitions = runtime.NumCPU()
	}
	ix := &Index{
		partitions: make([]*rtreego.Rtree, partitions),
		width:      360.0 / float64(partitions),
		log:        lg,
	}
	for i := range ix.partitions {
		ix.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	return ix
}

// Partitions returns the number of longitude bands.
func (ix *Index) Partitions() int { return len(ix.partitions) }

func (ix *Index) partition(lon float64) int {
	i := int((lon + 180) / ix.width)
	return max(0, min(i, len(ix.partitions)-1))
}

// Load inserts records, one goroutine per band. Records outside the lon/lat
// domain are skipped; the number inserted is returned.
func (ix *Index) Load(records []models.Record) int {
	grouped := make([][]*entry, len(ix.partitions))
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		p := rtreego.Point{r.Lon, r.Lat}
		i := ix.partition(r.Lon)
		grouped[i] = append(grouped[i], &entry{Record: r, rect: p.ToRect(tolerance)})
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var wg sync.WaitGroup
	var inserted atomic.Int64
	for i, items := range grouped {
		if len(items) == 0 {
			continue
		}
		wg.Add(1)
		go func(tree *rtreego.Rtree, items []*entry) {
			defer wg.Done()
			for _, item := range items {
				tree.Insert(item)
			}
			inserted.Add(int64(len(items)))
		}(ix.partitions[i], items)
	}
	wg.Wait()

	n := inserted.Load()
	ix.count.Add(n)
	ix.log.Debug("loaded rtree baseline", "records", n, "partitions", len(ix.partitions))
	return int(n)
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return int(ix.count.Load())
}

// Clear removes all records.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i := range ix.partitions {
		ix.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	ix.count.Store(0)
}

// spans splits a rectangle into planar longitude intervals.
func spans(r geo.Rectangle) []span {
	switch {
	case r.LonRange() >= 360:
		return []span{{-180, 180, r.South, r.North}}
	case r.Wraps():
		return []span{{r.West, 180, r.South, r.North}, {-180, r.East, r.South, r.North}}
	default:
		return []span{{r.West, r.East, r.South, r.North}}
	}
}

// search runs the planar candidate search for rect on every band it
// touches and keeps the candidates accepted by match.
func (ix *Index) search(rect geo.Rectangle, match func(models.Record) bool) []models.Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type job struct {
		tree *rtreego.Rtree
		box  *rtreego.Rect
		span span
	}
	var jobs []job
	for _, s := range spans(rect) {
		box, err := rtreego.NewRect(rtreego.Point{s.west, s.south},
			[]float64{math.Max(s.east-s.west, tolerance), math.Max(s.north-s.south, tolerance)})
		if err != nil {
			ix.log.Warn("invalid rtree search box", "error", err)
			continue
		}
		for i := ix.partition(s.west); i <= ix.partition(s.east); i++ {
			jobs = append(jobs, job{ix.partitions[i], box, s})
		}
	}

	results := make(chan []models.Record, len(jobs))
	for _, j := range jobs {
		go func(j job) {
			var found []models.Record
			for _, s := range j.tree.SearchIntersect(j.box) {
				e, ok := s.(*entry)
				if ok && j.span.contains(e.Lon) && match(e.Record) {
					found = append(found, e.Record)
				}
			}
			results <- found
		}(j)
	}

	var all []models.Record
	for range jobs {
		all = append(all, <-results...)
	}
	return all
}

// QueryBox returns every record inside rect.
func (ix *Index) QueryBox(rect geo.Rectangle) []models.Record {
	return ix.search(rect, rect.Contains)
}

// QueryRadius returns every record within dist km of center.
func (ix *Index) QueryRadius(center models.Record, dist float64) ([]models.Record, error) {
	if !(dist >= 0) {
		return nil, fmt.Errorf("%w: distance must be non-negative, got %g", geo.ErrValidation, dist)
	}
	return ix.search(RadiusBounds(center, dist), func(r models.Record) bool {
		return geo.Distance(center, r) <= dist
	}), nil
}

// Nearest returns up to n records ordered by increasing distance from
// center. The search radius doubles until n candidates are in range, which
// guarantees the n nearest are among them.
func (ix *Index) Nearest(center models.Record, n int) []models.Record {
	if n <= 0 || ix.Len() == 0 {
		return nil
	}
	maxDist := math.Pi * geo.EarthRadius
	var found []models.Record
	for radius := 10.0; ; radius *= 2 {
		found, _ = ix.QueryRadius(center, radius)
		if len(found) >= n || radius >= maxDist {
			break
		}
	}
	slices.SortStableFunc(found, func(a, b models.Record) int {
		da, db := geo.Distance(center, a), geo.Distance(center, b)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
	if len(found) > n {
		found = found[:n]
	}
	return found
}

// RadiusBounds returns a rectangle containing the spherical cap of radius
// dist km around center. Caps over a pole span every longitude.
func RadiusBounds(center models.Record, dist float64) geo.Rectangle {
	angular := dist / geo.EarthRadius
	deg := angular * 180 / math.Pi
	south, north := center.Lat-deg, center.Lat+deg
	if south <= -90 || north >= 90 {
		return geo.Rectangle{West: -180, East: 180, South: math.Max(south, -90), North: math.Min(north, 90)}
	}
	dLon := math.Asin(math.Sin(angular)/math.Cos(center.Lat*math.Pi/180)) * 180 / math.Pi
	return geo.Rectangle{
		West:  geo.NormalizeLon(center.Lon - dLon),
		East:  geo.NormalizeLon(center.Lon + dLon),
		South: south,
		North: north,
	}
}
