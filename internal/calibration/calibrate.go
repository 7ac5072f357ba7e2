// Package calibration turns a raw photon response into time-aligned,
// per-lixel image beams at a chosen focus distance.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/plenoptics/internal/lightfield"
)

// ErrGeometryMismatch is returned when a response was not recorded with the
// given geometry.
var ErrGeometryMismatch = errors.New("response does not match geometry")

// Geometry is the view of the light-field calibration the calibrator needs.
type Geometry interface {
	NumberLixel() int
	TimeDelayImageMean() []float64
	AngularStd() (cxStd, cyStd []float64)
	CxCyInObjectDistance(objectDistance float64) (cx, cy []float64)
}

// TimeProfile is the photon count per time slice after isochor alignment.
type TimeProfile struct {
	BinEdges   []float64
	BinCenters []float64
	Weights    []float64
}

// Beams are the image beams of the lixels that have a finite projection and
// spread. Valid is indexed by lixel; the other slices only hold valid lixels,
// in lixel order.
type Beams struct {
	Cx      []float64
	Cy      []float64
	CxStd   []float64
	CyStd   []float64
	Weights []float64
	Valid   []bool
}

// NumValid returns the number of valid lixels.
func (b *Beams) NumValid() int {
	return len(b.Weights)
}

// TotalWeight returns the number of photons on valid lixels.
func (b *Beams) TotalWeight() float64 {
	var s float64
	for _, w := range b.Weights {
		s += w
	}
	return s
}

// Response is a calibrated response.
type Response struct {
	Time  TimeProfile
	Beams Beams
}

// TimeBinEdges returns n+1 edges of width w with the first bin centred on 0.
func TimeBinEdges(w float64, n int) []float64 {
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = -0.5*w + float64(i)*w
	}
	return edges
}

func binCenters(edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	c := make([]float64, len(edges)-1)
	for i := range c {
		c[i] = 0.5 * (edges[i] + edges[i+1])
	}
	return c
}

// Calibrate aligns every arrival on the common wavefront time, accumulates
// the time profile and the per-lixel photon counts, and projects the lixels
// onto the image plane focused at objectDistance.
//
// An arrival is moved earlier by its lixel's delay rounded to whole slices;
// arrivals that leave the time window, or that sit on a lixel with a
// non-finite delay, are dropped. Lixels whose projection or spread is not
// finite are left out of the beams. A response with no valid lixel is not
// an error.
func Calibrate(raw *lightfield.RawSensorResponse, geom Geometry, objectDistance float64) (*Response, error) {
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("invalid raw sensor response: %w", err)
	}
	n := geom.NumberLixel()
	if raw.NumberChannels != n {
		return nil, fmt.Errorf("%w: response has %d channels, geometry has %d lixels", ErrGeometryMismatch, raw.NumberChannels, n)
	}
	delays := geom.TimeDelayImageMean()
	cxStd, cyStd := geom.AngularStd()
	if len(delays) != n || len(cxStd) != n || len(cyStd) != n {
		return nil, fmt.Errorf("%w: geometry fields disagree on the number of lixels", ErrGeometryMismatch)
	}

	numSlices := raw.NumberTimeSlices
	edges := TimeBinEdges(raw.TimeSliceDuration, numSlices)
	timeWeights := make([]float64, numSlices)
	lixelWeights := make([]float64, n)

	shifts := make([]int, n)
	shiftable := make([]bool, n)
	for i, d := range delays {
		s := math.Round(d / raw.TimeSliceDuration)
		if math.IsNaN(s) || math.Abs(s) > float64(numSlices) {
			// either undefined or shifts every arrival out of the window
			continue
		}
		shifts[i] = int(s)
		shiftable[i] = true
	}

	for _, a := range raw.Arrivals {
		if !shiftable[a.Channel] {
			continue
		}
		slice := a.TimeSlice - shifts[a.Channel]
		if slice < 0 || slice >= numSlices {
			continue
		}
		timeWeights[slice]++
		lixelWeights[a.Channel]++
	}

	cx, cy := geom.CxCyInObjectDistance(objectDistance)
	if len(cx) != n || len(cy) != n {
		return nil, fmt.Errorf("%w: projection returned %d/%d directions for %d lixels", ErrGeometryMismatch, len(cx), len(cy), n)
	}

	beams := Beams{Valid: make([]bool, n)}
	for i := 0; i < n; i++ {
		if !finite(cx[i]) || !finite(cy[i]) || !finite(cxStd[i]) || !finite(cyStd[i]) {
			continue
		}
		beams.Valid[i] = true
		beams.Cx = append(beams.Cx, cx[i])
		beams.Cy = append(beams.Cy, cy[i])
		beams.CxStd = append(beams.CxStd, cxStd[i])
		beams.CyStd = append(beams.CyStd, cyStd[i])
		beams.Weights = append(beams.Weights, lixelWeights[i])
	}

	return &Response{
		Time: TimeProfile{
			BinEdges:   edges,
			BinCenters: binCenters(edges),
			Weights:    timeWeights,
		},
		Beams: beams,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
