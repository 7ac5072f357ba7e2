// Package report builds the point-source report: the calibrated image of a
// star or point-like source with its containment radius and time profile.
package report

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/plenoptics/internal/calibration"
	"github.com/banshee-data/plenoptics/internal/estimators"
	"github.com/banshee-data/plenoptics/internal/imaging"
	"github.com/banshee-data/plenoptics/internal/lightfield"
)

// DefaultImageSubSamples is the number of Gaussian draws per beam used for
// the report image.
const DefaultImageSubSamples = 1000

// ErrInvalidInput is returned for inputs that cannot produce a report.
var ErrInvalidInput = errors.New("invalid report input")

// Count is a total and the part of it that passed calibration.
type Count struct {
	Total int `json:"total"`
	Valid int `json:"valid"`
}

// PhotonCount counts photons; valid photons are the summed beam weights.
type PhotonCount struct {
	Total int    `json:"total"`
	Valid Number `json:"valid"`
}

// Statistics summarises how much of the response made it into the image.
type Statistics struct {
	ImageBeams Count       `json:"image_beams"`
	Photons    PhotonCount `json:"photons"`
}

// Interval is a [start, stop] range; both ends are null when undefined.
type Interval struct {
	Start Number `json:"start"`
	Stop  Number `json:"stop"`
}

// Width returns stop - start.
func (i Interval) Width() float64 {
	return float64(i.Stop - i.Start)
}

// TimeSection is the isochor-aligned time profile.
type TimeSection struct {
	BinEdges      []float64 `json:"bin_edges"`
	BinCenters    []float64 `json:"bin_centers"`
	Weights       []float64 `json:"weights"`
	FWHM          Interval  `json:"fwhm"`
	Containment80 Interval  `json:"containment80"`
}

// ImageSection holds the image and its binning. Raw is x-major:
// Raw[ix][iy].
type ImageSection struct {
	Angle80 Number          `json:"angle80"`
	Binning imaging.Binning `json:"binning"`
	Raw     [][]float64     `json:"raw"`
}

// PointSourceReport is the analysis result for one source.
type PointSourceReport struct {
	Statistics Statistics   `json:"statistics"`
	Time       TimeSection  `json:"time"`
	Image      ImageSection `json:"image"`
}

// RawDense returns the raw image as a matrix.
func (r *PointSourceReport) RawDense() (*mat.Dense, error) {
	rows := len(r.Image.Raw)
	if rows == 0 {
		return nil, fmt.Errorf("report has an empty image")
	}
	cols := len(r.Image.Raw[0])
	m := mat.NewDense(rows, cols, nil)
	for i, row := range r.Image.Raw {
		if len(row) != cols {
			return nil, fmt.Errorf("image row %d has %d columns, expected %d", i, len(row), cols)
		}
		m.SetRow(i, row)
	}
	return m, nil
}

// Input bundles what MakePointSourceReport needs.
type Input struct {
	ImageCenterCxDeg      float64
	ImageCenterCyDeg      float64
	Response              *lightfield.RawSensorResponse
	Geometry              calibration.Geometry
	ObjectDistanceM       float64
	ContainmentPercentile float64
	Binning               imaging.Binning

	// ImageSubSamples overrides DefaultImageSubSamples when positive.
	ImageSubSamples int
}

func (in Input) validate() error {
	if in.Response == nil || in.Geometry == nil {
		return fmt.Errorf("%w: response and geometry are required", ErrInvalidInput)
	}
	if !(in.ContainmentPercentile > 0 && in.ContainmentPercentile <= 1) {
		return fmt.Errorf("%w: containment percentile must be in (0, 1], got %v", ErrInvalidInput, in.ContainmentPercentile)
	}
	if err := in.Binning.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// MakePointSourceReport calibrates the response once at the object distance
// and derives the containment radius, the image around the given centre,
// and the time profile statistics. All randomness comes from prng.
func MakePointSourceReport(in Input, prng *rand.Rand) (*PointSourceReport, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	cres, err := calibration.Calibrate(in.Response, in.Geometry, in.ObjectDistanceM)
	if err != nil {
		return nil, err
	}
	beams := cres.Beams

	_, _, angle80 := estimators.Encirclement2D(
		beams.Cx, beams.Cy, beams.CxStd, beams.CyStd, beams.Weights,
		in.ContainmentPercentile, 1, prng,
	)

	binning := in.Binning.WithCenter(in.ImageCenterCxDeg, in.ImageCenterCyDeg)
	edgesCx, edgesCy := imaging.BinEdges(binning)

	numSub := in.ImageSubSamples
	if numSub <= 0 {
		numSub = DefaultImageSubSamples
	}
	img := imaging.Histogram2DStd(
		beams.Cx, beams.Cy, beams.CxStd, beams.CyStd, beams.Weights,
		edgesCx, edgesCy, numSub, prng,
	)

	c80Start, c80Stop := estimators.Encirclement1D(cres.Time.BinCenters, cres.Time.Weights, in.ContainmentPercentile)
	fwhmStart, fwhmStop := estimators.FullWidthHalfMaximum(cres.Time.BinCenters, cres.Time.Weights)

	return &PointSourceReport{
		Statistics: Statistics{
			ImageBeams: Count{Total: in.Geometry.NumberLixel(), Valid: beams.NumValid()},
			Photons:    PhotonCount{Total: in.Response.NumberPhotons, Valid: Number(beams.TotalWeight())},
		},
		Time: TimeSection{
			BinEdges:      cres.Time.BinEdges,
			BinCenters:    cres.Time.BinCenters,
			Weights:       cres.Time.Weights,
			FWHM:          Interval{Start: Number(fwhmStart), Stop: Number(fwhmStop)},
			Containment80: Interval{Start: Number(c80Start), Stop: Number(c80Stop)},
		},
		Image: ImageSection{
			Angle80: Number(angle80),
			Binning: binning,
			Raw:     denseRows(img),
		},
	}, nil
}

// MakeNormImage returns the raw image divided by the number of valid
// photons. A report without valid photons yields an all-zero image.
func MakeNormImage(r *PointSourceReport) (*mat.Dense, error) {
	raw, err := r.RawDense()
	if err != nil {
		return nil, err
	}
	valid := r.Statistics.Photons.Valid.Float()
	if !(valid > 0) || math.IsInf(valid, 0) {
		rows, cols := raw.Dims()
		return mat.NewDense(rows, cols, nil), nil
	}
	raw.Scale(1/valid, raw)
	return raw, nil
}

func denseRows(m *mat.Dense) [][]float64 {
	rows, _ := m.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
