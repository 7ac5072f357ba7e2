package estimators

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Median returns the empirical median of a, or NaN for an empty slice.
func Median(a []float64) float64 {
	if len(a) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), a...)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}

// MedianSpread returns the half-width of the smallest interval around the
// median of a that holds the fraction containment of the samples.
func MedianSpread(a []float64, containment float64) float64 {
	if len(a) == 0 || math.IsNaN(containment) {
		return math.NaN()
	}
	m := Median(a)
	d := make([]float64, len(a))
	for i, v := range a {
		d[i] = math.Abs(v - m)
	}
	sort.Float64s(d)
	return stat.Quantile(clamp01(containment), stat.Empirical, d, nil)
}

func clamp01(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
