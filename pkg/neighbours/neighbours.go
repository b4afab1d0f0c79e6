// Package neighbours finds nearest values in sorted one-dimensional
// sequences by bisection.
package neighbours

import (
	"cmp"
	"slices"
	"time"
)

// Number is a type with a meaningful absolute difference.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// FindNearest returns the index of the value in vals closest to test, or -1
// when vals is empty. vals must be sorted in ascending order; this is not
// checked. Ties go to the lower index.
func FindNearest[T Number](vals []T, test T) int {
	return nearest(vals, test, func(a, b T) T {
		if a > b {
			return a - b
		}
		return b - a
	})
}

// FindNearestTime is FindNearest for timestamps.
func FindNearestTime(vals []time.Time, test time.Time) int {
	i, _ := slices.BinarySearchFunc(vals, test, func(v, t time.Time) int {
		return v.Compare(t)
	})
	return pick(len(vals), i, func(j int) time.Duration {
		return vals[j].Sub(test).Abs()
	})
}

// FindNearestAll returns the index of the nearest value in vals for each of
// the test values.
func FindNearestAll[T Number](vals, tests []T) []int {
	out := make([]int, len(tests))
	for i, t := range tests {
		out[i] = FindNearest(vals, t)
	}
	return out
}

func nearest[T Number](vals []T, test T, diff func(a, b T) T) int {
	i, _ := slices.BinarySearch(vals, test)
	return pick(len(vals), i, func(j int) T { return diff(vals[j], test) })
}

// pick chooses between the insertion point i and its left neighbour.
func pick[D cmp.Ordered](n, i int, dist func(int) D) int {
	switch {
	case n == 0:
		return -1
	case i == 0:
		return 0
	case i == n:
		return n - 1
	}
	if dist(i) < dist(i-1) {
		return i
	}
	return i - 1
}
