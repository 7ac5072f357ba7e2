package estimators

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FullWidthHalfMaximum returns the abscissae where f first rises to and
// last falls from half its maximum, interpolated linearly between the
// bracketing samples. A side where f is still at or above half at the end
// of the range is clamped to that end of x.
func FullWidthHalfMaximum(x, f []float64) (start, stop float64) {
	n := len(f)
	if n < 2 || len(x) != n {
		return math.NaN(), math.NaN()
	}
	peak := f[floats.MaxIdx(f)]
	if !(peak > 0) || math.IsInf(peak, 0) {
		return math.NaN(), math.NaN()
	}
	half := 0.5 * peak

	first, last := -1, -1
	for i, v := range f {
		if v >= half {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	if first == 0 {
		start = x[0]
	} else {
		start = crossing(x[first-1], x[first], f[first-1], f[first], half)
	}
	if last == n-1 {
		stop = x[n-1]
	} else {
		stop = crossing(x[last], x[last+1], f[last], f[last+1], half)
	}
	return start, stop
}

func crossing(x0, x1, f0, f1, level float64) float64 {
	if f1 == f0 {
		return x0
	}
	return x0 + (level-f0)*(x1-x0)/(f1-f0)
}
