// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/plenoptics/internal/lightfield"
	"github.com/banshee-data/plenoptics/internal/units"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// GridGeometry returns an n x n lixel geometry whose beams all pass through
// the aperture centre and point at a square grid of directions spaced by
// pitchRad around the optical axis. Every lixel has angular spread stdRad
// and zero time delay. Lixel i*n+j points at (cx_i, cy_j).
func GridGeometry(n int, pitchRad, stdRad, focalLengthM float64) *lightfield.Geometry {
	num := n * n
	g := &lightfield.Geometry{
		FocalLengthM: focalLengthM,
		CxMean:       make([]float64, num),
		CyMean:       make([]float64, num),
		CxStd:        make([]float64, num),
		CyStd:        make([]float64, num),
		XMean:        make([]float64, num),
		YMean:        make([]float64, num),
		TimeDelay:    make([]float64, num),
	}
	offset := 0.5 * float64(n-1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k := i*n + j
			g.CxMean[k] = (float64(i) - offset) * pitchRad
			g.CyMean[k] = (float64(j) - offset) * pitchRad
			g.CxStd[k] = stdRad
			g.CyStd[k] = stdRad
		}
	}
	return g
}

// WithNaNStd returns g with every angular spread set to NaN.
func WithNaNStd(g *lightfield.Geometry) *lightfield.Geometry {
	for i := range g.CxStd {
		g.CxStd[i] = math.NaN()
		g.CyStd[i] = math.NaN()
	}
	return g
}

// SingleChannelResponse returns a response in which only channel holds
// photons: count arrivals in slice.
func SingleChannelResponse(t *testing.T, numChannels, numSlices, channel, slice, count int) *lightfield.RawSensorResponse {
	t.Helper()
	counts := make([][]int, numChannels)
	for ch := range counts {
		counts[ch] = make([]int, numSlices)
	}
	counts[channel][slice] = count
	r, err := lightfield.NewRawSensorResponseFromCounts(0.5e-9, numSlices, counts)
	AssertNoError(t, err)
	return r
}

// UniformResponse returns a response with count photons in every
// (channel, slice) pair.
func UniformResponse(t *testing.T, numChannels, numSlices, count int) *lightfield.RawSensorResponse {
	t.Helper()
	counts := make([][]int, numChannels)
	for ch := range counts {
		counts[ch] = make([]int, numSlices)
		for s := range counts[ch] {
			counts[ch][s] = count
		}
	}
	r, err := lightfield.NewRawSensorResponseFromCounts(0.5e-9, numSlices, counts)
	AssertNoError(t, err)
	return r
}

// RingGeometry returns numLixel lixels whose beam supports sit evenly on a
// ring of radius apertureRadiusM and whose beams all meet on the optical
// axis at focusDistanceM. Refocusing at focusDistanceM collapses every beam
// onto cx = cy = 0.
func RingGeometry(numLixel int, apertureRadiusM, focalLengthM, focusDistanceM, stdRad float64) *lightfield.Geometry {
	g := &lightfield.Geometry{
		FocalLengthM: focalLengthM,
		CxMean:       make([]float64, numLixel),
		CyMean:       make([]float64, numLixel),
		CxStd:        make([]float64, numLixel),
		CyStd:        make([]float64, numLixel),
		XMean:        make([]float64, numLixel),
		YMean:        make([]float64, numLixel),
		TimeDelay:    make([]float64, numLixel),
	}
	b := units.ImageDistance(focalLengthM, focusDistanceM)
	for k := 0; k < numLixel; k++ {
		phi := 2 * math.Pi * float64(k) / float64(numLixel)
		x := apertureRadiusM * math.Cos(phi)
		y := apertureRadiusM * math.Sin(phi)
		g.XMean[k] = x
		g.YMean[k] = y
		// position on the focal plane of a ray from (x, y) towards the
		// on-axis image point at depth b
		g.CxMean[k] = -math.Atan(x * (1 - focalLengthM/b) / focalLengthM)
		g.CyMean[k] = -math.Atan(y * (1 - focalLengthM/b) / focalLengthM)
		g.CxStd[k] = stdRad
		g.CyStd[k] = stdRad
	}
	return g
}
