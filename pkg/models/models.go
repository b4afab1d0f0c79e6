// Package models holds the record types stored by the spatial indexes.
package models

import (
	"fmt"
	"maps"
	"time"

	"github.com/paulmach/orb"
)

// Record is a point on the surface of the Earth with an optional timestamp,
// an optional unique identifier and a bag of caller-defined attributes.
//
// The indexes never look at Attrs; they are carried through so that
// downstream consumers (exporters, reports) can round-trip extra fields.
type Record struct {
	Lon   float64        `json:"lon" msgpack:"lon"`
	Lat   float64        `json:"lat" msgpack:"lat"`
	Time  time.Time      `json:"time,omitempty" msgpack:"time,omitempty"`
	ID    string         `json:"id,omitempty" msgpack:"id,omitempty"`
	Attrs map[string]any `json:"attrs,omitempty" msgpack:"attrs,omitempty"`
}

// NewRecord creates a Record without a timestamp.
func NewRecord(lon, lat float64, id string) Record {
	return Record{Lon: lon, Lat: lat, ID: id}
}

// NewSpaceTimeRecord creates a Record that carries a timestamp, as required
// by the OctTree.
func NewSpaceTimeRecord(lon, lat float64, t time.Time, id string) Record {
	return Record{Lon: lon, Lat: lat, Time: t, ID: id}
}

// HasTime reports whether the record carries a timestamp.
func (r Record) HasTime() bool {
	return !r.Time.IsZero()
}

// Valid reports whether the position lies in the lon/lat domain.
func (r Record) Valid() bool {
	return r.Lon >= -180 && r.Lon <= 180 && r.Lat >= -90 && r.Lat <= 90
}

// WithAttr returns a copy of the record with the attribute set. The receiver
// is left untouched.
func (r Record) WithAttr(key string, value any) Record {
	attrs := make(map[string]any, len(r.Attrs)+1)
	maps.Copy(attrs, r.Attrs)
	attrs[key] = value
	r.Attrs = attrs
	return r
}

// Attr returns the named attribute.
func (r Record) Attr(key string) (any, bool) {
	v, ok := r.Attrs[key]
	return v, ok
}

// Equal reports whether two records describe the same observation: same
// position and time and, when either has an identifier, the same identifier.
// Attributes are not compared.
func (r Record) Equal(other Record) bool {
	if r.Lon != other.Lon || r.Lat != other.Lat || !r.Time.Equal(other.Time) {
		return false
	}
	if r.ID == "" && other.ID == "" {
		return true
	}
	return r.ID == other.ID
}

// Point returns the record position as an orb.Point (lon, lat).
func (r Record) Point() orb.Point {
	return orb.Point{r.Lon, r.Lat}
}

func (r Record) String() string {
	s := fmt.Sprintf("Record(lon = %g, lat = %g", r.Lon, r.Lat)
	if r.HasTime() {
		s += ", time = " + r.Time.Format(time.RFC3339)
	}
	if r.ID != "" {
		s += ", id = " + r.ID
	}
	return s + ")"
}
