package imaging

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Histogram2D accumulates weights into the grid spanned by edgesX and
// edgesY. Row i of the result is the i-th x bin, column j the j-th y bin.
// Bins are half-open [e_k, e_k+1) except the last, which also includes its
// upper edge. Samples outside the grid or with NaN coordinates are dropped.
//
// Both axes need at least two edges; mat.NewDense panics otherwise.
func Histogram2D(x, y, weights, edgesX, edgesY []float64) *mat.Dense {
	h := mat.NewDense(len(edgesX)-1, len(edgesY)-1, nil)
	for i := range x {
		fill(h, x[i], y[i], weights[i], edgesX, edgesY)
	}
	return h
}

// Histogram2DStd is Histogram2D for samples with per-sample Gaussian
// uncertainty. Every sample is drawn numSubSamples times, x before y, from
// the generator and contributes weight/numSubSamples per draw. A
// numSubSamples below one is treated as one.
func Histogram2DStd(
	x, y, xStd, yStd, weights, edgesX, edgesY []float64,
	numSubSamples int,
	prng *rand.Rand,
) *mat.Dense {
	if numSubSamples < 1 {
		numSubSamples = 1
	}
	h := mat.NewDense(len(edgesX)-1, len(edgesY)-1, nil)
	n := float64(numSubSamples)
	for i := range x {
		w := weights[i] / n
		for s := 0; s < numSubSamples; s++ {
			jx := x[i] + xStd[i]*prng.NormFloat64()
			jy := y[i] + yStd[i]*prng.NormFloat64()
			fill(h, jx, jy, w, edgesX, edgesY)
		}
	}
	return h
}

func fill(h *mat.Dense, x, y, w float64, edgesX, edgesY []float64) {
	ix, ok := binIndex(edgesX, x)
	if !ok {
		return
	}
	iy, ok := binIndex(edgesY, y)
	if !ok {
		return
	}
	h.Set(ix, iy, h.At(ix, iy)+w)
}

// binIndex returns the bin holding v for ascending edges.
func binIndex(edges []float64, v float64) (int, bool) {
	last := len(edges) - 1
	if last < 1 || !(v >= edges[0] && v <= edges[last]) {
		return 0, false
	}
	if v == edges[last] {
		return last - 1, true
	}
	return sort.Search(len(edges), func(k int) bool { return edges[k] > v }) - 1, true
}
