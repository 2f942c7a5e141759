// Package sizeclass buckets transaction values into integer parcel sizes.
//
// Values spanning many orders of magnitude collapse into a few square sizes:
// everything up to six digits is size 1 and each further decimal digit adds
// one. A parcel of size s covers s×s grid cells, so the packed block weight is
// the sum of squared sizes.
package sizeclass

import "math"

// minDigits is the number of decimal digits that still maps to size 1.
const minDigits = 6

// Classify returns the parcel size for a transaction value. Zero and negative
// values are size 1. The result is monotonic in value.
func Classify(value int64) int {
	if value <= 0 {
		return 1
	}
	// Counting digits puts exact powers of ten in the upper class: 1e6 is
	// size 2, not 1 as ceil(log10(v))-5 would give.
	return max(1, digits(value)-minDigits+1)
}

// ClassifyAll classifies every value, preserving order.
func ClassifyAll(values []int64) []int {
	sizes := make([]int, len(values))
	for i, v := range values {
		sizes[i] = Classify(v)
	}
	return sizes
}

// Weight returns the number of grid cells covered by parcels of the given
// sizes (sum of squares).
func Weight(sizes []int) int {
	w := 0
	for _, s := range sizes {
		w += s * s
	}
	return w
}

// GridWidth returns the side of the smallest square grid whose area holds the
// parcels, never less than the largest parcel so every parcel fits a row.
func GridWidth(sizes []int) int {
	w := int(math.Ceil(math.Sqrt(float64(Weight(sizes)))))
	for _, s := range sizes {
		w = max(w, s)
	}
	return max(w, 1)
}

// Histogram counts parcels per size.
func Histogram(sizes []int) map[int]int {
	h := make(map[int]int)
	for _, s := range sizes {
		h[s]++
	}
	return h
}

func digits(v int64) int {
	n := 0
	for ; v > 0; v /= 10 {
		n++
	}
	return n
}
