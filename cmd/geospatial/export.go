package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kass/go-geospatial/pkg/export"
	"github.com/kass/go-geospatial/pkg/postgis"
	"github.com/kass/go-geospatial/pkg/store"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the loaded records to GeoJSON, a snapshot or PostGIS",
	}
	cmd.AddCommand(newExportGeoJSONCmd(a), newExportSnapshotCmd(a), newExportPostGISCmd(a))
	return cmd
}

func newExportGeoJSONCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "geojson",
		Short: "Write records as a GeoJSON feature collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords()
			if err != nil {
				return err
			}

			var w io.Writer = a.out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := export.WriteGeoJSON(w, records); err != nil {
				return err
			}
			a.log.Info("exported geojson", "records", len(records), "output", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file; stdout when empty")
	return cmd
}

func newExportSnapshotCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Rewrite records to a snapshot with the configured codec",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			records, err := a.loadRecords()
			if err != nil {
				return err
			}
			if err := store.SaveToFile(output, records, a.storeOptions(), a.log); err != nil {
				return err
			}
			printSuccess(a.out, fmt.Sprintf("wrote %d records to %s", len(records), output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output snapshot file")
	return cmd
}

func newExportPostGISCmd(a *app) *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "postgis",
		Short: "Load records into the configured PostGIS table",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := postgis.Open(ctx, a.cfg.PostGIS, a.log)
			if err != nil {
				return err
			}
			defer db.Close()

			if !keep {
				if err := db.InitSchema(ctx); err != nil {
					return err
				}
			}
			start := time.Now()
			if err := db.BulkInsert(ctx, records); err != nil {
				return err
			}
			if err := db.CreateSpatialIndex(ctx); err != nil {
				return err
			}
			stats, err := db.Stats(ctx)
			if err != nil {
				return err
			}

			printTitle(a.out, "PostGIS export")
			printStat(a.out, "Table", db.Table())
			printStat(a.out, "Inserted", len(records))
			printStat(a.out, "Time", time.Since(start).Round(time.Millisecond))
			for _, k := range []string{"row_count", "table_size", "index_size"} {
				printStat(a.out, k, stats[k])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "append", false, "Append to the existing table instead of recreating it")
	return cmd
}
