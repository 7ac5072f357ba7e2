package report

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// TableVmax returns, per instrument and guide star, the peak of the
// normalised image. Plots of all guide stars share the largest of these
// values as colour scale.
func TableVmax(reports map[string]map[string]*PointSourceReport) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64, len(reports))
	for instrument, stars := range reports {
		out[instrument] = make(map[string]float64, len(stars))
		for star, r := range stars {
			img, err := MakeNormImage(r)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", instrument, star, err)
			}
			out[instrument][star] = mat.Max(img)
		}
	}
	return out, nil
}

// TableVmaxMax returns the largest value of a TableVmax table, or zero for
// an empty table.
func TableVmaxMax(table map[string]map[string]float64) float64 {
	vmax := 0.0
	for _, stars := range table {
		for _, v := range stars {
			vmax = max(vmax, v)
		}
	}
	return vmax
}
