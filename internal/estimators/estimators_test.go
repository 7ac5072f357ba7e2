package estimators

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func permute(perm []int, vs ...[]float64) [][]float64 {
	out := make([][]float64, len(vs))
	for k, v := range vs {
		out[k] = make([]float64, len(v))
		for i, p := range perm {
			out[k][i] = v[p]
		}
	}
	return out
}

func TestWeightedCentroid(t *testing.T) {
	assert.Equal(t, 2.0, WeightedCentroid([]float64{1, 2, 3}, []float64{1, 2, 1}))
	assert.True(t, math.IsNaN(WeightedCentroid(nil, nil)))
	assert.True(t, math.IsNaN(WeightedCentroid([]float64{1}, []float64{0})))
	assert.True(t, math.IsNaN(WeightedCentroid([]float64{1, 2}, []float64{1})))
}

func TestEncirclement1D(t *testing.T) {
	tests := []struct {
		name       string
		x, f       []float64
		percentile float64
		wantStart  float64
		wantStop   float64
	}{
		{"uniform 80", []float64{-2, -1, 0, 1, 2}, []float64{1, 1, 1, 1, 1}, 0.8, -2, 2},
		{"uniform 60", []float64{-2, -1, 0, 1, 2}, []float64{1, 1, 1, 1, 1}, 0.6, -1, 1},
		{"all weight on one point", []float64{1, 2, 3}, []float64{0, 5, 0}, 0.8, 2, 2},
		{"shifted centroid", []float64{0, 10}, []float64{3, 1}, 0.5, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, stop := Encirclement1D(tt.x, tt.f, tt.percentile)
			assert.InDelta(t, tt.wantStart, start, 1e-12)
			assert.InDelta(t, tt.wantStop, stop, 1e-12)
		})
	}
}

func TestEncirclement1D_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		x, f []float64
	}{
		{"empty", nil, nil},
		{"zero weight", []float64{1, 2}, []float64{0, 0}},
		{"length mismatch", []float64{1, 2}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, stop := Encirclement1D(tt.x, tt.f, 0.8)
			assert.True(t, math.IsNaN(start))
			assert.True(t, math.IsNaN(stop))
		})
	}
}

func TestEncirclement1D_OrderIndependent(t *testing.T) {
	t.Parallel()

	prng := rand.New(rand.NewPCG(3, 0))
	n := 200
	x := make([]float64, n)
	f := make([]float64, n)
	for i := range x {
		x[i] = prng.NormFloat64()
		f[i] = prng.Float64()
	}
	// a few exact ties
	x[10], x[11] = x[12], x[12]

	start, stop := Encirclement1D(x, f, 0.8)
	for trial := 0; trial < 5; trial++ {
		p := permute(prng.Perm(n), x, f)
		s, e := Encirclement1D(p[0], p[1], 0.8)
		assert.Equal(t, start, s)
		assert.Equal(t, stop, e)
	}
}

func TestEncirclement2D_Cross(t *testing.T) {
	x := []float64{0, 1, -1, 0, 0}
	y := []float64{0, 0, 0, 1, -1}
	zero := make([]float64, 5)
	w := []float64{1, 1, 1, 1, 1}

	cx, cy, r := Encirclement2D(x, y, zero, zero, w, 0.8, 1, nil)
	assert.Equal(t, 0.0, cx)
	assert.Equal(t, 0.0, cy)
	assert.Equal(t, 1.0, r)

	_, _, r = Encirclement2D(x, y, zero, zero, w, 0.2, 1, nil)
	assert.Equal(t, 0.0, r)
}

func TestEncirclement2D_SingleSampleDoesNotDraw(t *testing.T) {
	used := rand.New(rand.NewPCG(9, 9))
	fresh := rand.New(rand.NewPCG(9, 9))

	std := []float64{0.1, 0.1}
	Encirclement2D([]float64{0, 1}, []float64{0, 1}, std, std, []float64{1, 1}, 0.8, 1, used)

	assert.Equal(t, fresh.Uint64(), used.Uint64())
}

func TestEncirclement2D_OrderIndependent(t *testing.T) {
	t.Parallel()

	prng := rand.New(rand.NewPCG(5, 0))
	n := 100
	x := make([]float64, n)
	y := make([]float64, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	w := make([]float64, n)
	for i := range x {
		x[i] = prng.NormFloat64()
		y[i] = prng.NormFloat64()
		xs[i] = 0.01 * prng.Float64()
		ys[i] = 0.01 * prng.Float64()
		w[i] = prng.Float64()
	}

	for _, numSub := range []int{1, 10} {
		cx, cy, r := Encirclement2D(x, y, xs, ys, w, 0.8, numSub, rand.New(rand.NewPCG(1, 1)))
		p := permute(prng.Perm(n), x, y, xs, ys, w)
		pcx, pcy, pr := Encirclement2D(p[0], p[1], p[2], p[3], p[4], 0.8, numSub, rand.New(rand.NewPCG(1, 1)))
		assert.Equal(t, cx, pcx, "numSubSamples=%d", numSub)
		assert.Equal(t, cy, pcy, "numSubSamples=%d", numSub)
		assert.Equal(t, r, pr, "numSubSamples=%d", numSub)
	}
}

func TestEncirclement2D_Degenerate(t *testing.T) {
	cx, cy, r := Encirclement2D(nil, nil, nil, nil, nil, 0.8, 1, nil)
	assert.True(t, math.IsNaN(cx) && math.IsNaN(cy) && math.IsNaN(r))

	one := []float64{1}
	cx, cy, r = Encirclement2D(one, one, one, one, []float64{0}, 0.8, 1, nil)
	assert.True(t, math.IsNaN(cx) && math.IsNaN(cy) && math.IsNaN(r))

	// all weight at one point
	cx, cy, r = Encirclement2D([]float64{2, 2}, []float64{3, 3}, []float64{0, 0}, []float64{0, 0}, []float64{1, 4}, 0.8, 1, nil)
	assert.Equal(t, 2.0, cx)
	assert.Equal(t, 3.0, cy)
	assert.Equal(t, 0.0, r)
}

func TestFullWidthHalfMaximum_Gaussian(t *testing.T) {
	t.Parallel()

	x := make([]float64, 2001)
	for i := range x {
		x[i] = -10 + 0.01*float64(i)
	}

	for _, sigma := range []float64{0.3, 1, 2.5} {
		g := distuv.Normal{Mu: 0.7, Sigma: sigma}
		f := make([]float64, len(x))
		for i := range x {
			f[i] = g.Prob(x[i])
		}
		start, stop := FullWidthHalfMaximum(x, f)
		want := 2 * math.Sqrt(2*math.Ln2) * sigma
		assert.InEpsilon(t, want, stop-start, 0.05, "sigma=%v", sigma)
		assert.InDelta(t, 0.7, 0.5*(start+stop), 0.01, "sigma=%v", sigma)
	}
}

func TestFullWidthHalfMaximum_ClampsAtBoundary(t *testing.T) {
	start, stop := FullWidthHalfMaximum([]float64{0, 1, 2}, []float64{1, 1, 0.2})
	assert.Equal(t, 0.0, start)
	assert.InDelta(t, 1.625, stop, 1e-12)

	start, stop = FullWidthHalfMaximum([]float64{0, 1}, []float64{3, 3})
	assert.Equal(t, 0.0, start)
	assert.Equal(t, 1.0, stop)
}

func TestFullWidthHalfMaximum_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		x, f []float64
	}{
		{"empty", nil, nil},
		{"single", []float64{1}, []float64{1}},
		{"all zero", []float64{0, 1, 2}, []float64{0, 0, 0}},
		{"negative", []float64{0, 1}, []float64{-1, -2}},
		{"infinite peak", []float64{0, 1}, []float64{math.Inf(1), 0}},
		{"length mismatch", []float64{0, 1, 2}, []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, stop := FullWidthHalfMaximum(tt.x, tt.f)
			assert.True(t, math.IsNaN(start))
			assert.True(t, math.IsNaN(stop))
		})
	}
}

func TestMedianSpread(t *testing.T) {
	a := []float64{10, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, 5.0, Median(a))
	assert.Equal(t, 2.0, MedianSpread(a, 0.5))
	assert.Equal(t, 5.0, MedianSpread(a, 1))
	assert.Equal(t, 0.0, MedianSpread([]float64{4, 4, 4}, 0.8))
	assert.True(t, math.IsNaN(MedianSpread(nil, 0.8)))
	assert.True(t, math.IsNaN(Median(nil)))

	// input must not be reordered
	assert.Equal(t, 10.0, a[0])
}

func TestArgMinFinite(t *testing.T) {
	i, ok := ArgMinFinite([]float64{math.NaN(), 3, math.Inf(-1), 1, 2})
	require.True(t, ok)
	assert.Equal(t, 3, i)

	_, ok = ArgMinFinite([]float64{math.NaN(), math.Inf(1)})
	assert.False(t, ok)
	_, ok = ArgMinFinite(nil)
	assert.False(t, ok)
}
