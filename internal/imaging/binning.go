// Package imaging bins weighted angular samples into 2D images.
package imaging

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/plenoptics/internal/units"
)

// ErrInvalidBinning is returned by Binning.Validate.
var ErrInvalidBinning = errors.New("invalid binning")

// Center is the pointing of an image in degrees.
type Center struct {
	CxDeg float64 `json:"cx_deg"`
	CyDeg float64 `json:"cy_deg"`
}

// Binning describes a square-pixel image grid. It is a value type: methods
// that change it return a modified copy.
type Binning struct {
	Center        Center  `json:"center"`
	PixelAngleDeg float64 `json:"pixel_angle_deg"`
	NumPixelCx    int     `json:"num_pixel_cx"`
	NumPixelCy    int     `json:"num_pixel_cy"`
}

// WithCenter returns a copy of b centred on (cxDeg, cyDeg).
func (b Binning) WithCenter(cxDeg, cyDeg float64) Binning {
	b.Center = Center{CxDeg: cxDeg, CyDeg: cyDeg}
	return b
}

// FieldOfViewDeg returns the full angular extent along each axis.
func (b Binning) FieldOfViewDeg() (cx, cy float64) {
	return b.PixelAngleDeg * float64(b.NumPixelCx), b.PixelAngleDeg * float64(b.NumPixelCy)
}

// Validate reports whether the binning describes a usable grid.
func (b Binning) Validate() error {
	if !(b.PixelAngleDeg > 0) || math.IsInf(b.PixelAngleDeg, 0) {
		return fmt.Errorf("%w: pixel_angle_deg must be positive and finite, got %v", ErrInvalidBinning, b.PixelAngleDeg)
	}
	if b.NumPixelCx < 1 || b.NumPixelCy < 1 {
		return fmt.Errorf("%w: need at least one pixel per axis, got %dx%d", ErrInvalidBinning, b.NumPixelCx, b.NumPixelCy)
	}
	if !isFinite(b.Center.CxDeg) || !isFinite(b.Center.CyDeg) {
		return fmt.Errorf("%w: center must be finite, got (%v, %v)", ErrInvalidBinning, b.Center.CxDeg, b.Center.CyDeg)
	}
	return nil
}

// BinEdges returns the pixel edges in radians, NumPixel+1 per axis, laid out
// symmetrically around the center.
func BinEdges(b Binning) (edgesCx, edgesCy []float64) {
	return axisEdges(b.Center.CxDeg, b.PixelAngleDeg, b.NumPixelCx),
		axisEdges(b.Center.CyDeg, b.PixelAngleDeg, b.NumPixelCy)
}

func axisEdges(centerDeg, widthDeg float64, n int) []float64 {
	if n < 0 {
		n = 0
	}
	start := centerDeg - 0.5*widthDeg*float64(n)
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = units.Deg2Rad(start + float64(i)*widthDeg)
	}
	return edges
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
