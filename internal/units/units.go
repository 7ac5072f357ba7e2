// Package units provides shared angle and distance conversions.
package units

import "math"

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Rad2DegSlice returns a new slice with every element converted to degrees.
func Rad2DegSlice(rad []float64) []float64 {
	out := make([]float64, len(rad))
	for i, r := range rad {
		out[i] = Rad2Deg(r)
	}
	return out
}

// Deg2RadSlice returns a new slice with every element converted to radians.
func Deg2RadSlice(deg []float64) []float64 {
	out := make([]float64, len(deg))
	for i, d := range deg {
		out[i] = Deg2Rad(d)
	}
	return out
}

// ImageDistance returns the distance behind a thin lens of the given focal
// length at which an object at objectDistance is in focus. An infinite object
// distance images at the focal length. Returns NaN when the object sits at
// or inside the focal length.
func ImageDistance(focalLength, objectDistance float64) float64 {
	if math.IsInf(objectDistance, 1) {
		return focalLength
	}
	b := 1.0 / (1.0/focalLength - 1.0/objectDistance)
	if math.IsNaN(b) || math.IsInf(b, 0) || b <= 0 {
		return math.NaN()
	}
	return b
}
