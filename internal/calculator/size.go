package calculator

import "gonum.org/v1/gonum/floats"

// RelativeSizes scales each market cap against the largest one in the batch.
// Absent or non-positive caps get 0, and every size is 0 when no cap is positive.
func RelativeSizes(caps []*float64) []float64 {
	sizes := make([]float64, len(caps))
	vals := make([]float64, 0, len(caps))
	for _, c := range caps {
		if c != nil && *c > 0 {
			vals = append(vals, *c)
		}
	}
	if len(vals) == 0 {
		return sizes
	}
	max := floats.Max(vals)
	for i, c := range caps {
		if c != nil && *c > 0 {
			sizes[i] = *c / max
		}
	}
	return sizes
}
