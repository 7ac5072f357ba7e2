// Package depth reconstructs the distance of a point source by refocusing
// its light field at a range of object distances and picking the distance
// at which the image is most compact.
package depth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/plenoptics/internal/calibration"
	"github.com/banshee-data/plenoptics/internal/estimators"
	"github.com/banshee-data/plenoptics/internal/lightfield"
	"github.com/banshee-data/plenoptics/internal/report"
)

// GeomSpace returns n distances from lo to hi, both included, with a
// constant ratio between neighbours.
func GeomSpace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	ratio := math.Log(hi / lo)
	for i := range out {
		out[i] = lo * math.Exp(ratio*float64(i)/float64(n-1))
	}
	out[n-1] = hi
	return out
}

// Scan is the image spread of one response at every probed distance.
// Spreads are containment radii in radians divided by the valid photons at
// that distance, null where no beam survived.
type Scan struct {
	DepthM  []float64       `json:"depth_m"`
	Spreads []report.Number `json:"spreads_rad_per_photon"`
}

// ScanDepth calibrates raw at every distance in depthsM and records the
// radius holding percentile of the valid weight, per valid photon.
func ScanDepth(
	raw *lightfield.RawSensorResponse,
	geom calibration.Geometry,
	depthsM []float64,
	percentile float64,
	prng *rand.Rand,
) (*Scan, error) {
	s := &Scan{
		DepthM:  append([]float64(nil), depthsM...),
		Spreads: make([]report.Number, len(depthsM)),
	}
	for i, d := range depthsM {
		cres, err := calibration.Calibrate(raw, geom, d)
		if err != nil {
			return nil, fmt.Errorf("depth %g m: %w", d, err)
		}
		b := cres.Beams
		_, _, r := estimators.Encirclement2D(b.Cx, b.Cy, b.CxStd, b.CyStd, b.Weights, percentile, 1, prng)
		if w := b.TotalWeight(); w > 0 {
			s.Spreads[i] = report.Number(r / w)
		} else {
			s.Spreads[i] = report.Number(math.NaN())
		}
	}
	return s, nil
}

// Reconstruct returns the distance with the smallest finite spread.
func (s *Scan) Reconstruct() (depthM, spread float64, ok bool) {
	v := make([]float64, len(s.Spreads))
	for i, n := range s.Spreads {
		v[i] = n.Float()
	}
	i, ok := estimators.ArgMinFinite(v)
	if !ok {
		return math.NaN(), math.NaN(), false
	}
	return s.DepthM[i], v[i], true
}

// Estimate is the depth analysis of one point source.
type Estimate struct {
	CxDeg           float64 `json:"cx_deg"`
	CyDeg           float64 `json:"cy_deg"`
	ObjectDistanceM float64 `json:"object_distance_m"`
	NumPhotons      int     `json:"num_photons"`
	Scan
}

// Pair is a true distance with its reconstruction.
type Pair struct {
	TrueM float64 `json:"true_m"`
	RecoM float64 `json:"reco_m"`
}

// Summary describes how well depth was reconstructed over many sources.
type Summary struct {
	NumEstimates int `json:"num_estimates"`
	NumSkipped   int `json:"num_skipped"`

	// SystematicRecoOverTrue is the median of reco/true. Pairs are
	// corrected by it.
	SystematicRecoOverTrue report.Number `json:"systematic_reco_over_true"`

	// RelativeSpread is the MedianSpread of (reco-true)/true after the
	// systematic correction.
	RelativeSpread report.Number `json:"relative_spread"`
	Containment    float64       `json:"containment"`

	Pairs []Pair `json:"pairs"`
}

// Summarize reconstructs every estimate, skipping those without a finite
// spread, and measures the corrected relative resolution.
func Summarize(estimates []Estimate, containment float64) Summary {
	sum := Summary{Containment: containment}
	var ratios []float64
	for i := range estimates {
		e := &estimates[i]
		reco, _, ok := e.Reconstruct()
		if !ok || !(e.ObjectDistanceM > 0) {
			sum.NumSkipped++
			continue
		}
		sum.Pairs = append(sum.Pairs, Pair{TrueM: e.ObjectDistanceM, RecoM: reco})
		ratios = append(ratios, reco/e.ObjectDistanceM)
	}
	sum.NumEstimates = len(sum.Pairs)

	sys := estimators.Median(ratios)
	sum.SystematicRecoOverTrue = report.Number(sys)
	if len(sum.Pairs) == 0 || !(sys > 0) {
		sum.RelativeSpread = report.Number(math.NaN())
		return sum
	}

	rel := make([]float64, len(sum.Pairs))
	for i := range sum.Pairs {
		sum.Pairs[i].RecoM /= sys
		rel[i] = (sum.Pairs[i].RecoM - sum.Pairs[i].TrueM) / sum.Pairs[i].TrueM
	}
	sum.RelativeSpread = report.Number(estimators.MedianSpread(rel, containment))
	return sum
}
