package main

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/kdtree"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/kass/go-geospatial/pkg/rtree"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type benchOptions struct {
	queries    int
	radius     float64
	workers    int
	seed       int64
	bruteForce bool
}

// BenchmarkResult summarises one engine run.
type BenchmarkResult struct {
	Name          string
	TotalQueries  int64
	TotalDuration time.Duration
	TotalResults  int64
	Mismatches    int64
}

func (r BenchmarkResult) QueriesPerSec() float64 {
	if r.TotalDuration <= 0 {
		return 0
	}
	return float64(r.TotalQueries) / r.TotalDuration.Seconds()
}

func (r BenchmarkResult) AvgDuration() time.Duration {
	if r.TotalQueries == 0 {
		return 0
	}
	return r.TotalDuration / time.Duration(r.TotalQueries)
}

func newBenchCmd(a *app) *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time radius and nearest queries on every index",
		Long: `Run the same random radius queries on the QuadTree, the R-tree baseline and
optionally a brute force scan, plus nearest queries on the KDTree. Queries are
spread over concurrent read-only workers. Result counts that differ from the
QuadTree are reported as mismatches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords()
			if err != nil {
				return err
			}
			results, err := a.runBench(cmd.Context(), records, opts)
			if err != nil {
				return err
			}

			printTitle(a.out, fmt.Sprintf("Benchmark: %d records, %d queries, %d workers", len(records), opts.queries, opts.workers))
			for _, r := range results {
				fmt.Fprintln(a.out)
				printStat(a.out, "Engine", r.Name)
				printStat(a.out, "Total time", r.TotalDuration.Round(time.Microsecond))
				printStat(a.out, "Queries per second", fmt.Sprintf("%.0f", r.QueriesPerSec()))
				printStat(a.out, "Average query time", r.AvgDuration())
				printStat(a.out, "Results", r.TotalResults)
				if r.Mismatches > 0 {
					printStat(a.out, "Mismatches", r.Mismatches)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&opts.queries, "queries", "q", 1000, "Number of queries per engine")
	f.Float64VarP(&opts.radius, "radius", "r", 50, "Search radius in km")
	f.IntVarP(&opts.workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	f.Int64Var(&opts.seed, "seed", 1, "Random seed for query centres")
	f.BoolVar(&opts.bruteForce, "brute-force", false, "Also time a linear scan")
	return cmd
}

// engine runs query i and returns its result count. Engines with check set
// are compared against the quadtree counts.
type engine struct {
	name  string
	check bool
	query func(i int, c models.Record) (int, error)
}

func (a *app) runBench(ctx context.Context, records []models.Record, opts benchOptions) ([]BenchmarkResult, error) {
	if opts.queries <= 0 {
		return nil, fmt.Errorf("--queries must be positive, got %d", opts.queries)
	}
	rng := rand.New(rand.NewSource(opts.seed))
	centers := make([]models.Record, opts.queries)
	for i := range centers {
		lon, lat := randomPosition(rng, false)
		centers[i] = models.NewRecord(lon, lat, "")
	}

	quad, err := a.buildQuadTree(records)
	if err != nil {
		return nil, err
	}
	base := rtree.New(opts.workers, a.log)
	base.Load(records)
	kd := kdtree.New(records, a.cfg.Tree.MaxDepth)

	// reference counts from the quadtree
	expected := make([]int, len(centers))

	engines := []engine{
		{"quadtree radius", false, func(i int, c models.Record) (int, error) {
			found, err := quad.NearbyPoints(c, opts.radius)
			expected[i] = len(found)
			return len(found), err
		}},
		{"rtree radius", true, func(_ int, c models.Record) (int, error) {
			found, err := base.QueryRadius(c, opts.radius)
			return len(found), err
		}},
		{"kdtree nearest", false, func(_ int, c models.Record) (int, error) {
			found, _ := kd.Query(c)
			return len(found), nil
		}},
	}
	if opts.bruteForce {
		engines = append(engines, engine{"brute force radius", true, func(_ int, c models.Record) (int, error) {
			n := 0
			for _, r := range records {
				if geo.Distance(c, r) <= opts.radius {
					n++
				}
			}
			return n, nil
		}})
	}

	results := make([]BenchmarkResult, 0, len(engines))
	for _, e := range engines {
		var total, mismatches atomic.Int64
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(max(opts.workers, 1))

		start := time.Now()
		per := (len(centers) + max(opts.workers, 1) - 1) / max(opts.workers, 1)
		for from := 0; from < len(centers); from += per {
			to := min(from+per, len(centers))
			eg.Go(func() error {
				for i := from; i < to; i++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					n, err := e.query(i, centers[i])
					if err != nil {
						return fmt.Errorf("%s query %d: %w", e.name, i, err)
					}
					total.Add(int64(n))
					if e.check && n != expected[i] {
						mismatches.Add(1)
					}
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		res := BenchmarkResult{
			Name:          e.name,
			TotalQueries:  int64(len(centers)),
			TotalDuration: time.Since(start),
			TotalResults:  total.Load(),
			Mismatches:    mismatches.Load(),
		}
		a.log.Info("benchmark finished", "engine", res.Name, "elapsed", res.TotalDuration, "results", res.TotalResults)
		results = append(results, res)
	}
	return results, nil
}
