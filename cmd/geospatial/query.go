package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/kass/go-geospatial/pkg/octtree"
	"github.com/kass/go-geospatial/pkg/quadtree"
	"github.com/spf13/cobra"
)

type outputOptions struct {
	json  bool
	limit int
}

func newQueryCmd(a *app) *cobra.Command {
	var out outputOptions
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query a snapshot by radius, box or ellipse",
	}
	cmd.PersistentFlags().BoolVar(&out.json, "json", false, "Output results as JSON")
	cmd.PersistentFlags().IntVar(&out.limit, "limit", 100, "Maximum number of results to display")

	cmd.AddCommand(newRadiusCmd(a, &out), newBoxCmd(a, &out), newEllipseCmd(a, &out))
	return cmd
}

func newRadiusCmd(a *app, out *outputOptions) *cobra.Command {
	var (
		lon, lat, radius float64
		at               string
		window           time.Duration
		excludeSelf      bool
	)
	cmd := &cobra.Command{
		Use:   "radius",
		Short: "Records within --radius km of (--lon, --lat)",
		Long: `Records within --radius km of (--lon, --lat). With --at the search also
bounds time to [--at - --window, --at + --window] and runs on an OctTree.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords()
			if err != nil {
				return err
			}
			center := models.NewRecord(lon, lat, "")

			var start time.Time
			var found []models.Record
			if at == "" {
				tree, err := a.buildQuadTree(records)
				if err != nil {
					return err
				}
				start = time.Now()
				if excludeSelf {
					found, err = tree.NearbyPointsExcluding(center, radius)
				} else {
					found, err = tree.NearbyPoints(center, radius)
				}
				if err != nil {
					return err
				}
			} else {
				if center.Time, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				tree, err := a.buildOctTree(records)
				if err != nil {
					return err
				}
				start = time.Now()
				if excludeSelf {
					found, err = tree.NearbyPointsExcluding(center, radius, window)
				} else {
					found, err = tree.NearbyPoints(center, radius, window)
				}
				if err != nil {
					return err
				}
			}
			a.log.Timed("radius query", start, "results", len(found))
			return printRecords(a.out, found, *out)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&lon, "lon", 0, "Centre longitude")
	f.Float64Var(&lat, "lat", 0, "Centre latitude")
	f.Float64VarP(&radius, "radius", "r", 10, "Radius in km")
	f.StringVar(&at, "at", "", "Centre time (RFC 3339); enables the time window")
	f.DurationVar(&window, "window", time.Hour, "Half width of the time window")
	f.BoolVar(&excludeSelf, "exclude-self", false, "Leave out records equal to the centre")
	return cmd
}

func newBoxCmd(a *app, out *outputOptions) *cobra.Command {
	var west, east, south, north float64
	cmd := &cobra.Command{
		Use:   "box",
		Short: "Records inside a lon/lat box; west > east crosses the antimeridian",
		RunE: func(cmd *cobra.Command, args []string) error {
			rect, err := geo.NewRectangle(west, east, south, north)
			if err != nil {
				return err
			}
			records, err := a.loadRecords()
			if err != nil {
				return err
			}
			tree, err := a.buildQuadTree(records)
			if err != nil {
				return err
			}
			start := time.Now()
			found := tree.Query(rect)
			a.log.Timed("box query", start, "box", rect.String(), "results", len(found))
			return printRecords(a.out, found, *out)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&west, "west", -180, "West edge")
	f.Float64Var(&east, "east", 180, "East edge")
	f.Float64Var(&south, "south", -90, "South edge")
	f.Float64Var(&north, "north", 90, "North edge")
	return cmd
}

func newEllipseCmd(a *app, out *outputOptions) *cobra.Command {
	var lon, lat, semiMajor, semiMinor, theta float64
	cmd := &cobra.Command{
		Use:   "ellipse",
		Short: "Records inside a geodesic ellipse",
		Long: `Records inside the ellipse centred on (--lon, --lat) with semi-axes --a and
--b in km. --theta is the angle of the major axis in degrees counterclockwise
from east.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := geo.NewEllipse(models.NewRecord(lon, lat, ""), semiMajor, semiMinor, theta*math.Pi/180)
			if err != nil {
				return err
			}
			records, err := a.loadRecords()
			if err != nil {
				return err
			}
			tree, err := a.buildQuadTree(records)
			if err != nil {
				return err
			}
			start := time.Now()
			found, err := tree.QueryEllipse(e)
			if err != nil {
				return err
			}
			a.log.Timed("ellipse query", start, "ellipse", e.String(), "results", len(found))
			return printRecords(a.out, found, *out)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&lon, "lon", 0, "Centre longitude")
	f.Float64Var(&lat, "lat", 0, "Centre latitude")
	f.Float64Var(&semiMajor, "a", 100, "Semi-major axis in km")
	f.Float64Var(&semiMinor, "b", 50, "Semi-minor axis in km")
	f.Float64Var(&theta, "theta", 0, "Major axis angle in degrees")
	return cmd
}

func (a *app) buildQuadTree(records []models.Record) (*quadtree.QuadTree, error) {
	start := time.Now()
	tree, err := quadtree.New(geo.Globe, a.cfg.Tree)
	if err != nil {
		return nil, err
	}
	if n := tree.InsertAll(records); n != len(records) {
		a.log.Warn("records outside the lon/lat domain were skipped", "skipped", len(records)-n)
	}
	a.log.Timed("built quadtree", start, "records", tree.Len(), "capacity", a.cfg.Tree.Capacity)
	return tree, nil
}

// buildOctTree sizes the time axis to the records' time range.
func (a *app) buildOctTree(records []models.Record) (*octtree.OctTree, error) {
	start := time.Now()
	var first, last time.Time
	for _, r := range records {
		if !r.HasTime() {
			continue
		}
		if first.IsZero() || r.Time.Before(first) {
			first = r.Time
		}
		if last.IsZero() || r.Time.After(last) {
			last = r.Time
		}
	}
	if first.IsZero() {
		return nil, fmt.Errorf("%w: no record carries a time", geo.ErrValidation)
	}

	boundary, err := geo.NewSpaceTimeRectangle(-180, 180, -90, 90, first, last.Add(time.Second))
	if err != nil {
		return nil, err
	}
	tree, err := octtree.New(boundary, a.cfg.Tree)
	if err != nil {
		return nil, err
	}
	if n := tree.InsertAll(records); n != len(records) {
		a.log.Warn("records without time or position were skipped", "skipped", len(records)-n)
	}
	a.log.Timed("built octtree", start, "records", tree.Len(), "boundary", boundary.String())
	return tree, nil
}

func printRecords(w io.Writer, records []models.Record, opts outputOptions) error {
	shown := records
	if opts.limit >= 0 && len(shown) > opts.limit {
		shown = shown[:opts.limit]
	}

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Count   int             `json:"count"`
			Records []models.Record `json:"records"`
		}{len(records), shown}); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		return nil
	}

	printTitle(w, fmt.Sprintf("%d records", len(records)))
	for _, r := range shown {
		fmt.Fprintf(w, "  %s\n", r)
	}
	if len(shown) < len(records) {
		fmt.Fprintf(w, "  ... %d more\n", len(records)-len(shown))
	}
	return nil
}
