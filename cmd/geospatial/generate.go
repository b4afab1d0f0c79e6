package main

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/kass/go-geospatial/pkg/models"
	"github.com/kass/go-geospatial/pkg/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// chunk is the number of records drawn from one random source, so output
// depends only on the seed and not on the worker count.
const chunk = 10000

type generateOptions struct {
	count   int
	seed    int64
	start   string
	span    time.Duration
	uniform bool
	workers int
}

func newGenerateCmd(a *app) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write random records to a snapshot",
		Long: `Generate random records, concentrated around population centres unless
--uniform is given, and save them to the snapshot file. With --span every
record also gets a timestamp drawn from [--start, --start + --span).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var start time.Time
			if opts.span > 0 {
				var err error
				if start, err = time.Parse(time.RFC3339, opts.start); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
			}

			begin := time.Now()
			records, err := generateRecords(cmd.Context(), opts, start)
			if err != nil {
				return err
			}
			elapsed := time.Since(begin)

			if err := store.SaveToFile(a.cfg.Snapshot.Path, records, a.storeOptions(), a.log); err != nil {
				return err
			}

			printTitle(a.out, "Generated records")
			printStat(a.out, "Records", len(records))
			printStat(a.out, "Time", elapsed.Round(time.Millisecond))
			printSuccess(a.out, "saved to "+a.cfg.Snapshot.Path)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.count, "points", "n", 100000, "Number of records to generate")
	f.Int64Var(&opts.seed, "seed", 1, "Random seed")
	f.StringVar(&opts.start, "start", "2023-01-01T00:00:00Z", "Start of the time range (RFC 3339)")
	f.DurationVar(&opts.span, "span", 0, "Length of the time range; zero generates records without time")
	f.BoolVar(&opts.uniform, "uniform", false, "Draw positions uniformly over the globe")
	f.IntVarP(&opts.workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	return cmd
}

func generateRecords(ctx context.Context, opts generateOptions, start time.Time) ([]models.Record, error) {
	if opts.count < 0 {
		return nil, fmt.Errorf("--points must be non-negative, got %d", opts.count)
	}
	records := make([]models.Record, opts.count)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(opts.workers, 1))
	for from := 0; from < opts.count; from += chunk {
		to := min(from+chunk, opts.count)
		rng := rand.New(rand.NewSource(opts.seed + int64(from/chunk)))
		eg.Go(func() error {
			for i := from; i < to; i++ {
				if i%chunk == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				lon, lat := randomPosition(rng, opts.uniform)
				r := models.NewRecord(lon, lat, fmt.Sprintf("point_%d", i))
				if opts.span > 0 {
					r.Time = start.Add(time.Duration(rng.Int63n(int64(opts.span))))
				}
				records[i] = r
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// randomPosition returns (lon, lat).
func randomPosition(rng *rand.Rand, uniform bool) (float64, float64) {
	if uniform {
		return rng.Float64()*360 - 180, rng.Float64()*180 - 90
	}
	switch rng.Intn(5) {
	case 0: // North America
		return rng.Float64()*60 - 120, rng.Float64()*30 + 30
	case 1: // Europe
		return rng.Float64()*40 - 10, rng.Float64()*20 + 40
	case 2: // Asia
		return rng.Float64()*80 + 60, rng.Float64()*40 + 20
	case 3: // South America
		return rng.Float64()*30 - 80, rng.Float64()*40 - 50
	default:
		return rng.Float64()*360 - 180, rng.Float64()*180 - 90
	}
}
