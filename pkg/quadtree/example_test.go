package quadtree_test

import (
	"fmt"
	"log"
	"sort"

	"github.com/kass/go-geospatial/pkg/geo"
	"github.com/kass/go-geospatial/pkg/kdtree"
	"github.com/kass/go-geospatial/pkg/models"
	"github.com/kass/go-geospatial/pkg/quadtree"
)

var cities = []models.Record{
	models.NewRecord(-74.0060, 40.7128, "NYC"),
	models.NewRecord(-118.2437, 34.0522, "LAX"),
	models.NewRecord(-87.6298, 41.8781, "CHI"),
	models.NewRecord(-95.3698, 29.7604, "HOU"),
	models.NewRecord(-112.0740, 33.4484, "PHX"),
	models.NewRecord(-75.1652, 39.9526, "PHL"),
	models.NewRecord(-98.4936, 29.4241, "SAT"),
	models.NewRecord(-117.1611, 32.7157, "SDG"),
	models.NewRecord(-96.7970, 32.7767, "DAL"),
	models.NewRecord(-121.8863, 37.3382, "SJC"),
	models.NewRecord(-97.7431, 30.2672, "AUS"),
	models.NewRecord(-81.6557, 30.3322, "JAX"),
	models.NewRecord(-122.4194, 37.7749, "SFO"),
	models.NewRecord(-82.9988, 39.9612, "CLB"),
	models.NewRecord(-80.8431, 35.2271, "CLT"),
}

func sortedIDs(records []models.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	return ids
}

func ExampleQuadTree_Query() {
	tree := quadtree.NewGlobal()
	fmt.Println("indexed", tree.InsertAll(cities))

	california, err := geo.NewRectangle(-124.5, -114.0, 32.5, 42.0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(sortedIDs(tree.Query(california)))
	// Output:
	// indexed 15
	// [LAX SDG SFO SJC]
}

func ExampleQuadTree_NearbyPoints() {
	tree := quadtree.NewGlobal()
	tree.InsertAll(cities)

	dallas := cities[8]
	near, err := tree.NearbyPointsExcluding(dallas, 500)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(sortedIDs(near))
	// Output:
	// [AUS HOU SAT]
}

func Example_nearest() {
	tree := kdtree.NewDefault(cities)
	washington := models.NewRecord(-77.0, 38.9, "")

	found, dist := tree.Query(washington)
	fmt.Printf("%s %.0f km\n", found[0].ID, dist)
	// Output:
	// PHL 196 km
}
