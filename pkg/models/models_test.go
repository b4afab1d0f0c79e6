package models

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestRecordEqual(t *testing.T) {
	when := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)
	testCases := []struct {
		name     string
		a, b     Record
		expected bool
	}{
		{"same position", NewRecord(1, 2, ""), NewRecord(1, 2, ""), true},
		{"different position", NewRecord(1, 2, ""), NewRecord(1, 3, ""), false},
		{"same id", NewRecord(1, 2, "A"), NewRecord(1, 2, "A"), true},
		{"different id", NewRecord(1, 2, "A"), NewRecord(1, 2, "B"), false},
		{"one id", NewRecord(1, 2, "A"), NewRecord(1, 2, ""), false},
		{"same time", NewSpaceTimeRecord(1, 2, when, ""), NewSpaceTimeRecord(1, 2, when.In(time.Local), ""), true},
		{"different time", NewSpaceTimeRecord(1, 2, when, ""), NewSpaceTimeRecord(1, 2, when.Add(time.Second), ""), false},
		{"time and no time", NewSpaceTimeRecord(1, 2, when, ""), NewRecord(1, 2, ""), false},
		{"attributes ignored", NewRecord(1, 2, "A").WithAttr("k", 1), NewRecord(1, 2, "A"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.a.Equal(tc.b))
			assert.Equal(t, tc.expected, tc.b.Equal(tc.a))
		})
	}
}

func TestRecordValid(t *testing.T) {
	assert.True(t, NewRecord(180, 90, "").Valid())
	assert.True(t, NewRecord(-180, -90, "").Valid())
	assert.False(t, NewRecord(181, 0, "").Valid())
	assert.False(t, NewRecord(0, -90.5, "").Valid())
}

func TestRecordWithAttr(t *testing.T) {
	base := NewRecord(1, 2, "A").WithAttr("depth", 10.0)
	next := base.WithAttr("name", "buoy")

	_, ok := base.Attr("name")
	assert.False(t, ok, "WithAttr must not modify the receiver")

	v, ok := next.Attr("depth")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
	v, ok = next.Attr("name")
	assert.True(t, ok)
	assert.Equal(t, "buoy", v)
}

func TestRecordHasTime(t *testing.T) {
	assert.False(t, NewRecord(0, 0, "").HasTime())
	assert.True(t, NewSpaceTimeRecord(0, 0, time.Now(), "").HasTime())
}

func TestRecordPoint(t *testing.T) {
	assert.Equal(t, orb.Point{12.5, -3}, NewRecord(12.5, -3, "").Point())
}

func TestRecordString(t *testing.T) {
	when := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Record(lon = 1, lat = 2)", NewRecord(1, 2, "").String())
	assert.Equal(t, "Record(lon = 1, lat = 2, time = 2009-01-01T00:00:00Z, id = A)",
		NewSpaceTimeRecord(1, 2, when, "A").String())
}
