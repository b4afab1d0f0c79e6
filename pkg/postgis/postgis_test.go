package postgis

import (
	"context"
	"database/sql"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/kass/go-geospatial/pkg/config"
	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/log"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowConversion(t *testing.T) {
	ts := time.Date(2023, 3, 24, 12, 0, 0, 0, time.UTC)
	r := models.NewSpaceTimeRecord(12.5, -3, ts, "buoy-7").WithAttr("depth", 40.0)

	rw, err := toRow(r)
	require.NoError(t, err)
	assert.Equal(t, sql.NullString{String: "buoy-7", Valid: true}, rw.id)
	assert.True(t, rw.time.Valid)
	assert.JSONEq(t, `{"depth": 40}`, rw.attrs.String)

	back, err := fromRow(rw.id, rw.time, []byte(rw.attrs.String), rw.lon, rw.lat)
	require.NoError(t, err)
	assert.True(t, r.Equal(back))
	depth, _ := back.Attr("depth")
	assert.Equal(t, 40.0, depth)

	bare, err := toRow(models.NewRecord(1, 2, ""))
	require.NoError(t, err)
	assert.False(t, bare.id.Valid)
	assert.False(t, bare.time.Valid)
	assert.False(t, bare.attrs.Valid)

	_, err = toRow(models.NewRecord(1, 2, "").WithAttr("ch", make(chan int)))
	assert.Error(t, err)
	_, err = fromRow(sql.NullString{}, sql.NullTime{}, []byte("{"), 0, 0)
	assert.Error(t, err)
}

func TestBoxCondition(t *testing.T) {
	where, args := boxCondition(geo.Rectangle{West: -10, East: 10, South: 0, North: 5})
	assert.Equal(t, "location && ST_MakeEnvelope($1, $2, $3, $4, 4326)", where)
	assert.Equal(t, []any{-10.0, 0.0, 10.0, 5.0}, args)

	where, args = boxCondition(geo.Rectangle{West: 170, East: -170, South: -5, North: 5})
	assert.Contains(t, where, " OR ")
	assert.Contains(t, where, "$8")
	assert.Equal(t, []any{170.0, -5.0, 180.0, 5.0, -180.0, -5.0, -170.0, 5.0}, args)

	_, args = boxCondition(geo.Globe)
	assert.Equal(t, []any{-180.0, -90.0, 180.0, 90.0}, args)
}

func TestOpenRejectsTableName(t *testing.T) {
	cfg := config.Default().PostGIS
	for _, name := range []string{"", "points; DROP TABLE x", "1points", "geo-points"} {
		cfg.Table = name
		_, err := Open(context.Background(), cfg, log.Discard())
		assert.ErrorIs(t, err, geo.ErrConfiguration, name)
	}
}

// TestRoundTrip runs against a live database when GEOSPATIAL_PG_HOST is set.
func TestRoundTrip(t *testing.T) {
	if os.Getenv("GEOSPATIAL_PG_HOST") == "" {
		t.Skip("GEOSPATIAL_PG_HOST not set")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.PostGIS.Table = "geo_records_test"

	ctx := context.Background()
	index, err := Open(ctx, cfg.PostGIS, log.Discard())
	require.NoError(t, err)
	defer index.Close()

	require.NoError(t, index.InitSchema(ctx))
	records := []models.Record{
		models.NewRecord(179.5, 0, "east"),
		models.NewRecord(-179.5, 0, "west").WithAttr("kind", "ship"),
		models.NewRecord(0, 0, "origin"),
	}
	require.NoError(t, index.BulkInsert(ctx, records))
	require.NoError(t, index.CreateSpatialIndex(ctx))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	found, err := index.QueryBox(ctx, geo.Rectangle{West: 170, East: -170, South: -1, North: 1})
	require.NoError(t, err)
	ids := []string{}
	for _, r := range found {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"east", "west"}, ids)

	found, err = index.QueryRadius(ctx, models.NewRecord(180, 0, ""), 60)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	stats, err := index.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["row_count"])
}
