// Package postgis writes records to a PostGIS table and runs the radius and
// box queries there, as a cross-check for the in-memory trees.
package postgis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/kass/go-geospatial/pkg/config"
	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/log"
	"github.com/kass/go-geospatial/pkg/models"
	_ "github.com/lib/pq"
)

const batchSize = 10000

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Index struct {
	db    *sql.DB
	table string
	log   *log.Logger
}

// Open connects to the database described by cfg.
func Open(ctx context.Context, cfg config.PostGIS, lg *log.Logger) (*Index, error) {
	if !identifier.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", geo.ErrConfiguration, cfg.Table)
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conns := max(cfg.MaxConnections, 1)
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(5 * time.Minute)

	lg.Info("connected to postgis", "host", cfg.Host, "database", cfg.Database, "table", cfg.Table)
	return &Index{db: db, table: cfg.Table, log: lg}, nil
}

// InitSchema recreates the record table.
func (p *Index) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, p.table),
		fmt.Sprintf(`CREATE TABLE %s (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT,
			observed_at TIMESTAMPTZ,
			attrs JSONB,
			location GEOMETRY(POINT, 4326)
		);`, p.table),
	}
	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// CreateSpatialIndex creates a GIST index on the location column.
func (p *Index) CreateSpatialIndex(ctx context.Context) error {
	start := time.Now()
	query := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_location ON %[1]s USING GIST(location);`, p.table)
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create spatial index: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("ANALYZE %s;", p.table)); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}
	p.log.Timed("created spatial index", start, "table", p.table)
	return nil
}

// row holds the column values written for one record.
type row struct {
	id    sql.NullString
	time  sql.NullTime
	attrs sql.NullString
	lon   float64
	lat   float64
}

func toRow(r models.Record) (row, error) {
	out := row{
		id:  sql.NullString{String: r.ID, Valid: r.ID != ""},
		lon: r.Lon,
		lat: r.Lat,
	}
	if r.HasTime() {
		out.time = sql.NullTime{Time: r.Time, Valid: true}
	}
	if len(r.Attrs) > 0 {
		data, err := json.Marshal(r.Attrs)
		if err != nil {
			return out, fmt.Errorf("failed to encode attributes of %s: %w", r, err)
		}
		out.attrs = sql.NullString{String: string(data), Valid: true}
	}
	return out, nil
}

func fromRow(id sql.NullString, t sql.NullTime, attrs []byte, lon, lat float64) (models.Record, error) {
	r := models.NewRecord(lon, lat, id.String)
	if t.Valid {
		r.Time = t.Time
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &r.Attrs); err != nil {
			return r, fmt.Errorf("failed to decode attributes: %w", err)
		}
	}
	return r, nil
}

// BulkInsert inserts records, committing every batchSize rows.
func (p *Index) BulkInsert(ctx context.Context, records []models.Record) error {
	start := time.Now()
	stmt, err := p.db.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, observed_at, attrs, location)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326))
	`, p.table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for offset := 0; offset < len(records); offset += batchSize {
		batch := records[offset:min(offset+batchSize, len(records))]
		if err := p.insertBatch(ctx, stmt, batch); err != nil {
			return err
		}
		p.log.Debug("committed batch", "rows", offset+len(batch), "total", len(records))
	}
	p.log.Timed("inserted records", start, "records", len(records), "table", p.table)
	return nil
}

func (p *Index) insertBatch(ctx context.Context, stmt *sql.Stmt, batch []models.Record) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStmt := tx.StmtContext(ctx, stmt)
	for _, r := range batch {
		rw, err := toRow(r)
		if err == nil {
			_, err = txStmt.ExecContext(ctx, rw.id, rw.time, rw.attrs, rw.lon, rw.lat)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert %s: %w", r, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// boxCondition returns the WHERE clause and arguments selecting rect. A
// box crossing the antimeridian becomes two envelopes.
func boxCondition(rect geo.Rectangle) (string, []any) {
	envelope := func(n int) string {
		return fmt.Sprintf("location && ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326)", n, n+1, n+2, n+3)
	}
	switch {
	case rect.LonRange() >= 360:
		return envelope(1), []any{-180.0, rect.South, 180.0, rect.North}
	case rect.Wraps():
		return "(" + envelope(1) + " OR " + envelope(5) + ")",
			[]any{rect.West, rect.South, 180.0, rect.North, -180.0, rect.South, rect.East, rect.North}
	default:
		return envelope(1), []any{rect.West, rect.South, rect.East, rect.North}
	}
}

func (p *Index) selectSQL(where string) string {
	return fmt.Sprintf(`
		SELECT id, observed_at, attrs, ST_X(location) AS lon, ST_Y(location) AS lat
		FROM %s
		WHERE %s
	`, p.table, where)
}

// QueryBox returns the records inside rect.
func (p *Index) QueryBox(ctx context.Context, rect geo.Rectangle) ([]models.Record, error) {
	where, args := boxCondition(rect)
	return p.query(ctx, p.selectSQL(where), args...)
}

// QueryRadius returns the records within dist km of center, measured on
// the sphere.
func (p *Index) QueryRadius(ctx context.Context, center models.Record, dist float64) ([]models.Record, error) {
	if !(dist >= 0) {
		return nil, fmt.Errorf("%w: distance must be non-negative, got %g", geo.ErrValidation, dist)
	}
	where := `ST_DWithin(location::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false)`
	return p.query(ctx, p.selectSQL(where), center.Lon, center.Lat, dist*1000)
}

func (p *Index) query(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []models.Record
	for rows.Next() {
		var (
			id       sql.NullString
			t        sql.NullTime
			attrs    []byte
			lon, lat float64
		)
		if err := rows.Scan(&id, &t, &attrs, &lon, &lat); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r, err := fromRow(id, t, attrs, lon, lat)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// Count returns the number of stored records.
func (p *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", p.table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Stats reports table and index sizes.
func (p *Index) Stats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var tableSize, indexSize string
	err := p.db.QueryRowContext(ctx, `
		SELECT
			pg_size_pretty(pg_total_relation_size($1::regclass)),
			pg_size_pretty(pg_indexes_size($1::regclass))
	`, p.table).Scan(&tableSize, &indexSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get table size: %w", err)
	}
	stats["table_size"] = tableSize
	stats["index_size"] = indexSize

	count, err := p.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats["row_count"] = count
	return stats, nil
}

// Table returns the record table name.
func (p *Index) Table() string { return p.table }

func (p *Index) Close() error {
	return p.db.Close()
}
