// Package export converts records to and from GeoJSON feature collections.
//
// Each record becomes a Point feature. The identifier is the feature id, the
// timestamp is stored under the "time" property in RFC 3339 form, and the
// attribute bag is copied into the remaining properties.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/kass/go-geospatial/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// TimeProperty is the property key holding a record timestamp.
const TimeProperty = "time"

// Feature converts one record.
func Feature(r models.Record) *geojson.Feature {
	f := geojson.NewFeature(r.Point())
	if r.ID != "" {
		f.ID = r.ID
	}
	for k, v := range r.Attrs {
		f.Properties[k] = v
	}
	if r.HasTime() {
		f.Properties[TimeProperty] = r.Time.UTC().Format(time.RFC3339Nano)
	}
	return f
}

// FeatureCollection converts a record set.
func FeatureCollection(records []models.Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		fc.Append(Feature(r))
	}
	return fc
}

// WriteGeoJSON encodes records as a feature collection to w.
func WriteGeoJSON(w io.Writer, records []models.Record) error {
	data, err := FeatureCollection(records).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal feature collection: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write feature collection: %w", err)
	}
	return nil
}

// ReadGeoJSON decodes the Point features of a feature collection. Features
// with other geometries are skipped.
func ReadGeoJSON(r io.Reader) ([]models.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature collection: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature collection: %w", err)
	}

	records := make([]models.Record, 0, len(fc.Features))
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		rec := models.NewRecord(p.Lon(), p.Lat(), "")
		if f.ID != nil {
			rec.ID = fmt.Sprint(f.ID)
		}
		for k, v := range f.Properties {
			if k != TimeProperty {
				rec = rec.WithAttr(k, v)
				continue
			}
			s, _ := v.(string)
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("feature %d: bad %s property %v: %w", i, TimeProperty, v, err)
			}
			rec.Time = t
		}
		records = append(records, rec)
	}
	return records, nil
}
