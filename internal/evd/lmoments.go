// Package evd fits generalized extreme value distributions to per-cell gust
// maxima and derives average-recurrence-interval wind speeds from the fitted
// parameters. Estimation uses Hosking's method of L-moments, which stays
// stable on the short series the accumulator produces.
package evd

import (
	"fmt"
	"sort"
)

// SampleLMoments computes the first three unbiased sample L-moments of an
// ascending-sorted sample.
func SampleLMoments(sorted []float64) (l1, l2, l3 float64, err error) {
	n := len(sorted)
	if n < 3 {
		return 0, 0, 0, fmt.Errorf("evd: need at least 3 values for l-moments, got %d", n)
	}
	if !sort.Float64sAreSorted(sorted) {
		return 0, 0, 0, fmt.Errorf("evd: sample must be sorted ascending")
	}

	var b0, b1, b2 float64
	for i, x := range sorted {
		b0 += x
		b1 += float64(i) / float64(n-1) * x
		b2 += float64(i*(i-1)) / float64((n-1)*(n-2)) * x
	}
	fn := float64(n)
	b0 /= fn
	b1 /= fn
	b2 /= fn

	l1 = b0
	l2 = 2*b1 - b0
	l3 = 6*b2 - 6*b1 + b0
	return l1, l2, l3, nil
}
