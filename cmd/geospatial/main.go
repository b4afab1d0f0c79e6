// Command geospatial generates record snapshots and runs proximity queries
// over them with the spherical trees, the planar R-tree baseline and
// PostGIS.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kass/go-geospatial/pkg/config"
	"github.com/kass/go-geospatial/pkg/export"
	"github.com/kass/go-geospatial/pkg/log"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/kass/go-geospatial/pkg/store"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	cfg        config.Config
	log        *log.Logger
	out        io.Writer

	snapshot string
	codec    string
	compress bool
	logLevel string
	logFile  string
	capacity int
	maxDepth int
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:           "geospatial",
		Short:         "Spherical proximity search over lon/lat records",
		Long:          `Build KD, quad and oct trees over records on the sphere and query them by radius, box, ellipse and nearest neighbour.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.SetOut(out)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "config.yaml", "Config file path")
	pf.StringVarP(&a.snapshot, "file", "f", "", "Snapshot file path (.geojson files are read as GeoJSON)")
	pf.StringVar(&a.codec, "codec", "", "Snapshot codec: gob or msgpack")
	pf.BoolVar(&a.compress, "compress", false, "Compress written snapshots with zstd")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&a.logFile, "log-file", "", "Write logs to a rotating file")
	pf.IntVar(&a.capacity, "capacity", 0, "Records per tree node before it splits")
	pf.IntVar(&a.maxDepth, "max-depth", 0, "Maximum tree depth")

	rootCmd.AddCommand(
		newGenerateCmd(a),
		newQueryCmd(a),
		newNearestCmd(a),
		newBenchCmd(a),
		newExportCmd(a),
	)
	return rootCmd
}

// setup loads the configuration and applies the flags that were set.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Read(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.Snapshot.Path = a.snapshot
	}
	if flags.Changed("codec") {
		cfg.Snapshot.Codec = a.codec
	}
	if flags.Changed("compress") {
		cfg.Snapshot.Compress = a.compress
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = a.logFile
	}
	if flags.Changed("capacity") {
		cfg.Tree.Capacity = a.capacity
	}
	if flags.Changed("max-depth") {
		cfg.Tree.MaxDepth = a.maxDepth
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log.New(cfg.Log)
	a.log.Debug("configuration loaded", "config", a.configPath, "snapshot", cfg.Snapshot.Path,
		"capacity", cfg.Tree.Capacity, "max_depth", cfg.Tree.MaxDepth)
	return nil
}

func (a *app) storeOptions() store.Options {
	return store.Options{Codec: store.Codec(a.cfg.Snapshot.Codec), Compress: a.cfg.Snapshot.Compress}
}

// loadRecords reads the configured snapshot, or a GeoJSON file when the
// path says so.
func (a *app) loadRecords() ([]models.Record, error) {
	path := a.cfg.Snapshot.Path
	if isGeoJSON(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		records, err := export.ReadGeoJSON(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		a.log.Info("loaded geojson", "file", path, "records", len(records))
		return records, nil
	}
	return store.LoadFromFile(path, store.Codec(a.cfg.Snapshot.Codec), a.log)
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}
