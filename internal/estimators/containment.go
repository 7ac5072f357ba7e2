// Package estimators computes summary statistics of weighted sample sets:
// centroids, containment radii, half-maximum widths and robust spreads.
//
// Degenerate input never panics. Empty sets, mismatched lengths and zero
// total weight yield NaN; a set whose weight sits on a single point yields
// a zero-width result at that point.
package estimators

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// WeightedCentroid returns sum(x*w)/sum(w), or NaN when the lengths differ,
// the set is empty or the total weight is not positive.
func WeightedCentroid(x, w []float64) float64 {
	if len(x) == 0 || len(x) != len(w) {
		return math.NaN()
	}
	total := floats.Sum(w)
	if !(total > 0) || math.IsInf(total, 0) {
		return math.NaN()
	}
	return floats.Dot(x, w) / total
}

// Encirclement1D returns the interval around the weighted centroid of x
// holding at least percentile of the total weight f. Samples at equal
// distance from the centroid enter the cumulative sum together.
func Encirclement1D(x, f []float64, percentile float64) (start, stop float64) {
	if len(x) == 0 || len(x) != len(f) {
		return math.NaN(), math.NaN()
	}
	pts := make([]sample, len(x))
	for i := range x {
		pts[i] = sample{x: x[i], w: f[i]}
	}
	sortSamples(pts)

	xs, ws := unzip1(pts)
	c := WeightedCentroid(xs, ws)
	if math.IsNaN(c) {
		return math.NaN(), math.NaN()
	}
	d := make([]float64, len(xs))
	for i := range xs {
		d[i] = math.Abs(xs[i] - c)
	}
	r := containmentRadius(d, ws, percentile)
	return c - r, c + r
}

// Encirclement2D returns the weighted centroid of (x, y) and the radius
// around it that holds at least percentile of the total weight.
//
// With numSubSamples > 1 every sample is replaced by numSubSamples Gaussian
// draws (x then y per draw) of weight w/numSubSamples. With numSubSamples
// <= 1 the sample centres are used as they are and prng is not touched.
// Samples are put into a canonical order first, so the result does not
// depend on the order of the input.
func Encirclement2D(
	x, y, xStd, yStd, weights []float64,
	percentile float64,
	numSubSamples int,
	prng *rand.Rand,
) (cx, cy, radius float64) {
	n := len(x)
	if n == 0 || len(y) != n || len(xStd) != n || len(yStd) != n || len(weights) != n {
		return math.NaN(), math.NaN(), math.NaN()
	}
	pts := make([]sample, n)
	for i := range x {
		pts[i] = sample{x: x[i], y: y[i], xStd: xStd[i], yStd: yStd[i], w: weights[i]}
	}
	sortSamples(pts)

	if numSubSamples > 1 {
		pts = jitter(pts, numSubSamples, prng)
	}

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	ws := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i], ws[i] = p.x, p.y, p.w
	}

	cx = WeightedCentroid(xs, ws)
	cy = WeightedCentroid(ys, ws)
	if math.IsNaN(cx) || math.IsNaN(cy) {
		return math.NaN(), math.NaN(), math.NaN()
	}
	d := make([]float64, len(xs))
	for i := range xs {
		d[i] = math.Hypot(xs[i]-cx, ys[i]-cy)
	}
	return cx, cy, containmentRadius(d, ws, percentile)
}

type sample struct {
	x, y, xStd, yStd, w float64
}

func sortSamples(pts []sample) {
	slices.SortFunc(pts, func(a, b sample) int {
		return cmp.Or(
			cmp.Compare(a.x, b.x),
			cmp.Compare(a.y, b.y),
			cmp.Compare(a.xStd, b.xStd),
			cmp.Compare(a.yStd, b.yStd),
			cmp.Compare(a.w, b.w),
		)
	})
}

func jitter(pts []sample, numSubSamples int, prng *rand.Rand) []sample {
	out := make([]sample, 0, len(pts)*numSubSamples)
	n := float64(numSubSamples)
	for _, p := range pts {
		for s := 0; s < numSubSamples; s++ {
			out = append(out, sample{
				x: p.x + p.xStd*prng.NormFloat64(),
				y: p.y + p.yStd*prng.NormFloat64(),
				w: p.w / n,
			})
		}
	}
	return out
}

func unzip1(pts []sample) (xs, ws []float64) {
	xs = make([]float64, len(pts))
	ws = make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ws[i] = p.x, p.w
	}
	return xs, ws
}

// containmentRadius returns the smallest distance d such that the weight of
// all samples at distance <= d reaches percentile of the total.
func containmentRadius(d, w []float64, percentile float64) float64 {
	idx := make([]int, len(d))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(d[a], d[b]) })

	target := percentile * floats.Sum(w)
	var cum float64
	for k := 0; k < len(idx); {
		r := d[idx[k]]
		for k < len(idx) && d[idx[k]] == r {
			cum += w[idx[k]]
			k++
		}
		if cum >= target {
			return r
		}
	}
	// rounding left cum just short of a target at the full weight
	return d[idx[len(idx)-1]]
}

// ArgMinFinite returns the index of the smallest finite value, or false if
// v has none.
func ArgMinFinite(v []float64) (int, bool) {
	best := -1
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		if best < 0 || x < v[best] {
			best = i
		}
	}
	return best, best >= 0
}
