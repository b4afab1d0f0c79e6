package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/kass/go-geospatial/pkg/kdtree"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/kass/go-geospatial/pkg/neighbours"
	"github.com/kass/go-geospatial/pkg/rtree"
	"github.com/spf13/cobra"
)

func newNearestCmd(a *app) *cobra.Command {
	var (
		lon, lat float64
		k        int
		at       string
		out      outputOptions
	)
	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Nearest records to (--lon, --lat)",
		Long: `Nearest records to (--lon, --lat). By default a KDTree reports every record
at the minimum distance. With -k the k nearest come from the R-tree
baseline, and with --at the record closest in time is reported instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords()
			if err != nil {
				return err
			}

			switch {
			case at != "":
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				return printRecords(a.out, nearestInTime(records, t), out)

			case k > 0:
				index := rtree.New(0, a.log)
				index.Load(records)
				start := time.Now()
				found := index.Nearest(models.NewRecord(lon, lat, ""), k)
				a.log.Timed("rtree nearest", start, "k", k)
				return printRecords(a.out, found, out)

			default:
				start := time.Now()
				tree := kdtree.New(records, a.cfg.Tree.MaxDepth)
				a.log.Timed("built kdtree", start, "records", tree.Len(), "max_depth", tree.MaxDepth())

				found, dist := tree.Query(models.NewRecord(lon, lat, ""))
				if !out.json {
					printStat(a.out, "Distance (km)", fmt.Sprintf("%.3f", dist))
				}
				return printRecords(a.out, found, out)
			}
		},
	}
	f := cmd.Flags()
	f.Float64Var(&lon, "lon", 0, "Query longitude")
	f.Float64Var(&lat, "lat", 0, "Query latitude")
	f.IntVarP(&k, "count", "k", 0, "Return the k nearest records")
	f.StringVar(&at, "at", "", "Report the record closest to this time (RFC 3339)")
	f.BoolVar(&out.json, "json", false, "Output results as JSON")
	f.IntVar(&out.limit, "limit", 100, "Maximum number of results to display")
	return cmd
}

// nearestInTime returns the timed record closest to t, if any.
func nearestInTime(records []models.Record, t time.Time) []models.Record {
	timed := slices.DeleteFunc(slices.Clone(records), func(r models.Record) bool { return !r.HasTime() })
	slices.SortStableFunc(timed, func(a, b models.Record) int { return a.Time.Compare(b.Time) })

	times := make([]time.Time, len(timed))
	for i, r := range timed {
		times[i] = r.Time
	}
	i := neighbours.FindNearestTime(times, t)
	if i < 0 {
		return nil
	}
	return timed[i : i+1]
}
