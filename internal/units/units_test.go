package units

import (
	"math"
	"testing"
)

func TestAngleConversion(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
		rad  float64
	}{
		{"zero", 0, 0},
		{"right angle", 90, math.Pi / 2},
		{"half turn", 180, math.Pi},
		{"negative", -1.5, -1.5 * math.Pi / 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Deg2Rad(tt.deg); math.Abs(got-tt.rad) > 1e-12 {
				t.Errorf("Deg2Rad(%f) = %f, want %f", tt.deg, got, tt.rad)
			}
			if got := Rad2Deg(tt.rad); math.Abs(got-tt.deg) > 1e-12 {
				t.Errorf("Rad2Deg(%f) = %f, want %f", tt.rad, got, tt.deg)
			}
		})
	}
}

func TestSliceConversion(t *testing.T) {
	deg := []float64{-2, 0, 3.5}
	back := Rad2DegSlice(Deg2RadSlice(deg))
	for i := range deg {
		if math.Abs(back[i]-deg[i]) > 1e-12 {
			t.Errorf("index %d: got %f, want %f", i, back[i], deg[i])
		}
	}
}

func TestImageDistance(t *testing.T) {
	tests := []struct {
		name     string
		f        float64
		g        float64
		expected float64
	}{
		{"infinity images at focal length", 1.5, math.Inf(1), 1.5},
		{"twice focal length", 1.0, 2.0, 2.0},
		{"far object", 1.0, 1001.0, 1001.0 / 1000.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImageDistance(tt.f, tt.g)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ImageDistance(%f, %f) = %f, want %f", tt.f, tt.g, got, tt.expected)
			}
		})
	}

	// g == f gives +Inf, g < f gives a negative distance
	for _, g := range []float64{1.0, 0.5, -3} {
		if got := ImageDistance(1.0, g); !math.IsNaN(got) {
			t.Errorf("ImageDistance(1, %f) = %f, want NaN", g, got)
		}
	}
}
