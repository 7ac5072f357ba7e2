// Package lightfield holds the calibrated per-lixel geometry of a plenoptic
// sensor and the raw photon responses recorded with it, together with their
// on-disk formats.
package lightfield

import (
	"fmt"
	"math"

	"github.com/banshee-data/plenoptics/internal/units"
)

// Geometry is the light-field calibration of one instrument. All slices are
// indexed by lixel and have the same length. Angles are in radians,
// positions in metres, delays in seconds.
type Geometry struct {
	FocalLengthM float64

	CxMean []float64
	CyMean []float64
	CxStd  []float64
	CyStd  []float64

	// Support of each lixel's beam on the principal aperture plane.
	XMean []float64
	YMean []float64

	// Mean arrival delay of each lixel relative to the image plane.
	TimeDelay []float64
}

// NumberLixel returns the number of lixels.
func (g *Geometry) NumberLixel() int {
	return len(g.CxMean)
}

// TimeDelayImageMean returns the per-lixel delays used for isochor
// alignment.
func (g *Geometry) TimeDelayImageMean() []float64 {
	return g.TimeDelay
}

// AngularStd returns the per-lixel angular spread.
func (g *Geometry) AngularStd() (cxStd, cyStd []float64) {
	return g.CxStd, g.CyStd
}

// Validate checks that all fields describe the same number of lixels.
func (g *Geometry) Validate() error {
	if !(g.FocalLengthM > 0) || math.IsInf(g.FocalLengthM, 0) {
		return fmt.Errorf("focal length must be positive and finite, got %v", g.FocalLengthM)
	}
	n := g.NumberLixel()
	for _, f := range g.fields() {
		if len(*f.values) != n {
			return fmt.Errorf("field %s has %d lixels, expected %d", f.name, len(*f.values), n)
		}
	}
	return nil
}

// CxCyInObjectDistance re-projects every lixel's beam onto the image plane
// in which an object at objectDistance is in focus, and returns the image
// angles. Lixels whose beam cannot be projected get NaN.
func (g *Geometry) CxCyInObjectDistance(objectDistance float64) (cx, cy []float64) {
	n := g.NumberLixel()
	cx = make([]float64, n)
	cy = make([]float64, n)

	f := g.FocalLengthM
	b := units.ImageDistance(f, objectDistance)
	if math.IsNaN(b) {
		for i := range cx {
			cx[i], cy[i] = math.NaN(), math.NaN()
		}
		return cx, cy
	}

	scale := b / f
	for i := 0; i < n; i++ {
		// beam runs from its aperture support through its focal-plane
		// position at depth f
		focalX := -f * math.Tan(g.CxMean[i])
		focalY := -f * math.Tan(g.CyMean[i])
		px := g.XMean[i] + scale*(focalX-g.XMean[i])
		py := g.YMean[i] + scale*(focalY-g.YMean[i])
		cx[i] = -math.Atan(px / b)
		cy[i] = -math.Atan(py / b)
	}
	return cx, cy
}

type field struct {
	name   string
	values *[]float64
}

func (g *Geometry) fields() []field {
	return []field{
		{"cx_mean", &g.CxMean},
		{"cy_mean", &g.CyMean},
		{"cx_std", &g.CxStd},
		{"cy_std", &g.CyStd},
		{"x_mean", &g.XMean},
		{"y_mean", &g.YMean},
		{"time_delay_image_mean", &g.TimeDelay},
	}
}
