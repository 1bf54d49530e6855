package stain

import "sort"

// percentile returns the q-th percentile (0..100) of values, interpolating
// linearly between the two closest ranks at position q/100*(n-1).
// values is sorted in place.
func percentile(values []float64, q float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n == 1 {
		return values[0]
	}
	pos := q / 100 * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return values[n-1]
	}
	frac := pos - float64(lo)
	return values[lo] + frac*(values[lo+1]-values[lo])
}
