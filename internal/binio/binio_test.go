package binio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32RoundTrip(t *testing.T) {
	in := []float32{0, -1.5, float32(math.Pi), math.MaxFloat32, float32(math.Inf(-1))}
	out, err := DecodeFloat32s(EncodeFloat32s(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFloat32RoundTrip_NaNBits(t *testing.T) {
	nan := float32(math.NaN())
	out, err := DecodeFloat32s(EncodeFloat32s([]float32{nan}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, math.Float32bits(nan), math.Float32bits(out[0]))
}

func TestEncodeFloat32s_LittleEndian(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, EncodeFloat32s([]float32{1}))
}

func TestDecodeFloat32s_BadLength(t *testing.T) {
	_, err := DecodeFloat32s([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestFloat64Widening(t *testing.T) {
	in := []float64{0.25, -8, math.NaN()}
	out, err := DecodeFloat32sAsFloat64(EncodeFloat64sAsFloat32(in))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 0.25, out[0])
	assert.Equal(t, -8.0, out[1])
	assert.True(t, math.IsNaN(out[2]))

	_, err = DecodeFloat32sAsFloat64([]byte{0})
	assert.Error(t, err)
}
