package sources

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Source
	}{
		{
			name: "star",
			data: `{"type": "star", "cx_deg": 0.0, "cy_deg": 1.0, "areal_photon_density_per_m2": 20, "seed": 122}`,
			want: Star{CxDeg: 0, CyDeg: 1, ArealPhotonDensityPerM2: 20, Seed: 122},
		},
		{
			name: "point",
			data: `{"type": "point", "cx_deg": -0.5, "cy_deg": 0.25, "object_distance_m": 4200, "seed": 3}`,
			want: Point{CxDeg: -0.5, CyDeg: 0.25, ObjectDistanceM: 4200, Seed: 3},
		},
		{
			name: "mesh",
			data: `{"type": "mesh", "seed": 1}`,
			want: Phantom{Seed: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSource([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSource_Errors(t *testing.T) {
	_, err := ParseSource([]byte(`{"type": "galaxy"}`))
	assert.True(t, errors.Is(err, ErrUnknownSourceType), "got %v", err)

	_, err = ParseSource([]byte(`{"cx_deg": 1}`))
	assert.True(t, errors.Is(err, ErrUnknownSourceType), "missing type, got %v", err)

	_, err = ParseSource([]byte(`not json`))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownSourceType))

	_, err = ParseSource([]byte(`{"type": "star", "cx_deg": "north"}`))
	assert.Error(t, err)
}

func TestMarshalSource_RoundTrip(t *testing.T) {
	for _, s := range []Source{
		Star{CxDeg: 1.5, CyDeg: -2, ArealPhotonDensityPerM2: 20, Seed: 7},
		Point{CxDeg: 0.1, ObjectDistanceM: 9000, Seed: 8},
		Phantom{Seed: 0},
	} {
		data, err := MarshalSource(s)
		require.NoError(t, err)
		got, err := ParseSource(data)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestParseObservation(t *testing.T) {
	for _, key := range []string{"star", "point", "phantom"} {
		o, err := ParseObservation(key)
		require.NoError(t, err)
		assert.Equal(t, Observation(key), o)
	}

	_, err := ParseObservation("mesh")
	assert.True(t, errors.Is(err, ErrUnknownObservation))
	_, err = ParseObservation("")
	assert.True(t, errors.Is(err, ErrUnknownObservation))
}

func TestObservation_Accepts(t *testing.T) {
	assert.True(t, ObservationStar.Accepts(Star{}))
	assert.False(t, ObservationStar.Accepts(Point{}))
	assert.True(t, ObservationPoint.Accepts(Point{}))
	assert.True(t, ObservationPhantom.Accepts(Phantom{}))
	assert.False(t, ObservationPhantom.Accepts(Star{}))
}

func TestSampleKey(t *testing.T) {
	assert.Equal(t, "000000", SampleKey(0))
	assert.Equal(t, "000042", SampleKey(42))
	assert.Equal(t, "123456", SampleKey(123456))

	n, err := ParseSampleKey("000042")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	for _, bad := range []string{"42", "00004x", "-00001", "0000001"} {
		_, err := ParseSampleKey(bad)
		assert.Error(t, err, bad)
	}
}
