package lightfield

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/plenoptics/internal/fsutil"
)

func threeLixelGeometry() *Geometry {
	return &Geometry{
		FocalLengthM: 1,
		CxMean:       []float64{0, 0.25, math.NaN()},
		CyMean:       []float64{0, -0.125, 0},
		CxStd:        []float64{0.5, 0.5, 0.5},
		CyStd:        []float64{0.5, 0.5, 0.5},
		XMean:        []float64{1, 0, 0},
		YMean:        []float64{0, 0, 0},
		TimeDelay:    []float64{0, 1.5, -2},
	}
}

func TestGeometry_ProjectionAtInfinity(t *testing.T) {
	g := threeLixelGeometry()
	cx, cy := g.CxCyInObjectDistance(math.Inf(1))
	require.Len(t, cx, 3)
	assert.InDelta(t, 0.0, cx[0], 1e-12)
	assert.InDelta(t, 0.25, cx[1], 1e-12)
	assert.InDelta(t, -0.125, cy[1], 1e-12)
	assert.True(t, math.IsNaN(cx[2]))
}

func TestGeometry_ProjectionAtFiniteDistance(t *testing.T) {
	g := threeLixelGeometry()
	cx, cy := g.CxCyInObjectDistance(2)

	// image distance 2: the off-axis support crosses the axis at f and
	// lands at -1 on the image plane
	assert.InDelta(t, math.Atan(0.5), cx[0], 1e-12)
	assert.InDelta(t, 0.0, cy[0], 1e-12)
	// beams through the aperture centre keep their direction
	assert.InDelta(t, 0.25, cx[1], 1e-12)

	// distance dependence
	cxFar, _ := g.CxCyInObjectDistance(1e4)
	assert.NotEqual(t, cx[0], cxFar[0])
}

func TestGeometry_ProjectionInsideFocalLength(t *testing.T) {
	cx, cy := threeLixelGeometry().CxCyInObjectDistance(0.5)
	for i := range cx {
		assert.True(t, math.IsNaN(cx[i]) && math.IsNaN(cy[i]), "lixel %d", i)
	}
}

func TestGeometry_Validate(t *testing.T) {
	g := threeLixelGeometry()
	require.NoError(t, g.Validate())

	g.CyStd = g.CyStd[:2]
	assert.Error(t, g.Validate())

	g = threeLixelGeometry()
	g.FocalLengthM = 0
	assert.Error(t, g.Validate())
}

func TestGeometryStore_RoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	g := threeLixelGeometry()

	require.NoError(t, WriteGeometry(fsys, "/instruments/diag9/light_field_geometry", g))
	assert.False(t, fsys.HasIncomplete())

	got, err := LoadGeometry(fsys, "/instruments/diag9/light_field_geometry")
	require.NoError(t, err)

	// every value above is exactly representable as float32
	opt := cmp.Comparer(func(a, b float64) bool {
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	})
	if diff := cmp.Diff(g, got, opt); diff != "" {
		t.Errorf("geometry mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadGeometry_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	_, err := LoadGeometry(fsys, "/missing")
	assert.Error(t, err)

	require.NoError(t, WriteGeometry(fsys, "/g", threeLixelGeometry()))
	require.NoError(t, fsys.WriteFile("/g/cy_std.float32", make([]byte, 8), 0644))
	_, err = LoadGeometry(fsys, "/g")
	assert.Error(t, err)
}

func TestNewRawSensorResponseFromCounts(t *testing.T) {
	r, err := NewRawSensorResponseFromCounts(0.5, 3, [][]int{
		{0, 2, 0},
		{0, 0, 0},
		{1, 0, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, r.NumberPhotons)
	assert.Equal(t, 3, r.NumberChannels)
	assert.Equal(t, []int{0, 0, 2, 2}, r.Channels())
	assert.Equal(t, [][]int{{0, 2, 0}, {0, 0, 0}, {1, 0, 1}}, r.Counts())
	require.NoError(t, r.Validate())

	_, err = NewRawSensorResponseFromCounts(0.5, 3, [][]int{{1, 2}})
	assert.Error(t, err)
	_, err = NewRawSensorResponseFromCounts(0.5, 1, [][]int{{-1}})
	assert.Error(t, err)
}

func TestRawSensorResponse_Validate(t *testing.T) {
	base := func() *RawSensorResponse {
		return &RawSensorResponse{
			TimeSliceDuration: 0.5,
			NumberTimeSlices:  2,
			NumberChannels:    2,
			NumberPhotons:     1,
			Arrivals:          []Arrival{{Channel: 1, TimeSlice: 1}},
		}
	}
	tests := []struct {
		name   string
		mutate func(r *RawSensorResponse)
	}{
		{"zero duration", func(r *RawSensorResponse) { r.TimeSliceDuration = 0 }},
		{"no slices", func(r *RawSensorResponse) { r.NumberTimeSlices = 0 }},
		{"photon count", func(r *RawSensorResponse) { r.NumberPhotons = 2 }},
		{"channel range", func(r *RawSensorResponse) { r.Arrivals[0].Channel = 2 }},
		{"slice range", func(r *RawSensorResponse) { r.Arrivals[0].TimeSlice = -1 }},
	}
	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			tt.mutate(r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestRawSensorResponseCodec_RoundTrip(t *testing.T) {
	r, err := NewRawSensorResponseFromCounts(0.5e-9, 100, func() [][]int {
		c := make([][]int, 5)
		for ch := range c {
			c[ch] = make([]int, 100)
		}
		c[0][3] = 2
		c[4][99] = 1
		c[2][0] = 7
		return c
	}())
	require.NoError(t, err)

	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, WriteRawSensorResponse(fsys, "/responses/000000.phs.gz", r))

	got, err := ReadRawSensorResponse(fsys, "/responses/000000.phs.gz")
	require.NoError(t, err)

	assert.Equal(t, float64(float32(0.5e-9)), got.TimeSliceDuration)
	got.TimeSliceDuration = r.TimeSliceDuration
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestRawSensorResponseCodec_UnsortedArrivals(t *testing.T) {
	r := &RawSensorResponse{
		TimeSliceDuration: 1,
		NumberTimeSlices:  4,
		NumberChannels:    3,
		NumberPhotons:     3,
		Arrivals:          []Arrival{{2, 1}, {0, 3}, {2, 0}},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeRawSensorResponse(&buf, r))
	got, err := DecodeRawSensorResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, []Arrival{{0, 3}, {2, 1}, {2, 0}}, got.Arrivals)
}

func TestRawSensorResponseCodec_Errors(t *testing.T) {
	tooManySlices := &RawSensorResponse{TimeSliceDuration: 1, NumberTimeSlices: 255, NumberChannels: 1}
	assert.Error(t, EncodeRawSensorResponse(&bytes.Buffer{}, tooManySlices))

	_, err := DecodeRawSensorResponse(bytes.NewReader([]byte("not gzip")))
	assert.Error(t, err)

	// valid gzip, truncated header
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte{1, 2, 3})
	require.NoError(t, gz.Close())
	_, err = DecodeRawSensorResponse(&buf)
	assert.True(t, errors.Is(err, ErrCorruptResponse), "got %v", err)
}

func TestDecodeRawSensorResponse_HeaderClaimsMoreThanPayload(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	hdr := responseHeader{
		TimeSliceDuration: 1,
		NumberTimeSlices:  4,
		NumberChannels:    2,
		NumberPhotons:     math.MaxUint32 - 2,
		NumberSymbols:     math.MaxUint32,
	}
	require.NoError(t, binary.Write(gz, binary.LittleEndian, hdr))
	_, err := gz.Write([]byte{0, 1, NextChannelMarker, NextChannelMarker})
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	_, err = DecodeRawSensorResponse(&buf)
	require.ErrorIs(t, err, ErrCorruptResponse)
	assert.Contains(t, err.Error(), "got 4")
}
