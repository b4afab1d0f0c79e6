// Package config loads the geospatial command configuration from a YAML
// file, a .env file and GEOSPATIAL_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/log"
	"github.com/kass/go-geospatial/pkg/spatial"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GEOSPATIAL_"

type Config struct {
	Tree     spatial.Config `yaml:"tree"`
	Log      log.Options    `yaml:"log"`
	Snapshot Snapshot       `yaml:"snapshot"`
	PostGIS  PostGIS        `yaml:"postgis"`
}

// Snapshot names the record file shared by the subcommands.
type Snapshot struct {
	Path     string `yaml:"path"`
	Codec    string `yaml:"codec"`
	Compress bool   `yaml:"compress"`
}

type PostGIS struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	Database          string `yaml:"database"`
	Table             string `yaml:"table"`
	MaxConnections    int    `yaml:"max_connections"`
	ConnectionTimeout int    `yaml:"connection_timeout"`
}

// DSN returns the lib/pq connection string.
func (p PostGIS) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.Database)
	if p.ConnectionTimeout > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", p.ConnectionTimeout)
	}
	return dsn
}

func Default() Config {
	return Config{
		Tree: spatial.DefaultConfig(),
		Log:  log.Options{Level: "info"},
		Snapshot: Snapshot{
			Path:  "records.snap",
			Codec: "msgpack",
		},
		PostGIS: PostGIS{
			Host:              "localhost",
			Port:              5432,
			User:              "postgres",
			Database:          "geodb",
			Table:             "geo_records",
			MaxConnections:    25,
			ConnectionTimeout: 10,
		},
	}
}

// Load reads the configuration with Read and validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read reads path over the defaults without validating the result, so that
// callers can apply further overrides first. A missing file is not an
// error. The .env file in the working directory, if any, is loaded before
// environment overrides are applied.
func Read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	_ = godotenv.Load(".env")
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not an integer", geo.ErrConfiguration, envPrefix, name, v)
		}
		*dst = n
		return nil
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("LOG_FORMAT", &c.Log.Format)
	str("SNAPSHOT", &c.Snapshot.Path)
	str("SNAPSHOT_CODEC", &c.Snapshot.Codec)
	if v, ok := lookup(envPrefix + "SNAPSHOT_COMPRESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sSNAPSHOT_COMPRESS=%q is not a boolean", geo.ErrConfiguration, envPrefix, v)
		}
		c.Snapshot.Compress = b
	}
	str("PG_HOST", &c.PostGIS.Host)
	str("PG_USER", &c.PostGIS.User)
	str("PG_PASSWORD", &c.PostGIS.Password)
	str("PG_DATABASE", &c.PostGIS.Database)
	str("PG_TABLE", &c.PostGIS.Table)

	for name, dst := range map[string]*int{
		"CAPACITY":  &c.Tree.Capacity,
		"MAX_DEPTH": &c.Tree.MaxDepth,
		"PG_PORT":   &c.PostGIS.Port,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the tree settings and the log level.
func (c Config) Validate() error {
	if err := c.Tree.Validate(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", geo.ErrConfiguration, err)
	}
	switch c.Snapshot.Codec {
	case "gob", "msgpack":
	default:
		return fmt.Errorf("%w: unknown snapshot codec %q", geo.ErrConfiguration, c.Snapshot.Codec)
	}
	return nil
}
