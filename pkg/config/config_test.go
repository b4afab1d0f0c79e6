package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, spatial.DefaultConfig(), cfg.Tree)
	assert.Equal(t, "msgpack", cfg.Snapshot.Codec)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
tree:
  capacity: 12
  max_depth: 8
log:
  level: debug
snapshot:
  path: points.snap
  codec: gob
  compress: true
postgis:
  host: db
  port: 5433
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, spatial.Config{Capacity: 12, MaxDepth: 8}, cfg.Tree)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, Snapshot{Path: "points.snap", Codec: "gob", Compress: true}, cfg.Snapshot)
	assert.Equal(t, "db", cfg.PostGIS.Host)
	assert.Equal(t, 5433, cfg.PostGIS.Port)
	assert.Equal(t, "geodb", cfg.PostGIS.Database, "unset keys keep their defaults")
}

func TestLoadInvalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"zero capacity", "tree:\n  capacity: 0\n"},
		{"negative depth", "tree:\n  max_depth: -2\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad codec", "snapshot:\n  codec: xml\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.body))
			assert.ErrorIs(t, err, geo.ErrConfiguration)
		})
	}

	_, err := Load(writeFile(t, "tree: [1, 2"))
	assert.Error(t, err)
}

func TestReadSkipsValidation(t *testing.T) {
	cfg, err := Read(writeFile(t, "tree:\n  capacity: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Tree.Capacity)
	assert.ErrorIs(t, cfg.Validate(), geo.ErrConfiguration)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEOSPATIAL_CAPACITY", "9")
	t.Setenv("GEOSPATIAL_LOG_LEVEL", "warn")
	t.Setenv("GEOSPATIAL_PG_PORT", "6000")
	t.Setenv("GEOSPATIAL_SNAPSHOT_COMPRESS", "true")

	cfg, err := Load(writeFile(t, "tree:\n  capacity: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Tree.Capacity)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 6000, cfg.PostGIS.Port)
	assert.True(t, cfg.Snapshot.Compress)
}

func TestEnvOverrideErrors(t *testing.T) {
	env := map[string]string{"GEOSPATIAL_MAX_DEPTH": "deep"}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.ErrorIs(t, err, geo.ErrConfiguration)

	env = map[string]string{"GEOSPATIAL_SNAPSHOT_COMPRESS": "maybe"}
	assert.ErrorIs(t, cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }), geo.ErrConfiguration)
}

func TestDSN(t *testing.T) {
	p := PostGIS{Host: "h", Port: 1, User: "u", Password: "p", Database: "d"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", p.DSN())
	p.ConnectionTimeout = 4
	assert.Contains(t, p.DSN(), "connect_timeout=4")
}
