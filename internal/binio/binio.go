// Package binio encodes flat numeric arrays as header-less little-endian
// blobs, the on-disk layout shared by light-field geometry fields and image
// cache entries.
package binio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float32Size is the encoded width of one element.
const Float32Size = 4

// EncodeFloat32s returns the little-endian encoding of v.
func EncodeFloat32s(v []float32) []byte {
	out := make([]byte, len(v)*Float32Size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*Float32Size:], math.Float32bits(f))
	}
	return out
}

// DecodeFloat32s decodes a blob produced by EncodeFloat32s. The blob length
// must be a multiple of Float32Size.
func DecodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%Float32Size != 0 {
		return nil, fmt.Errorf("blob of %d bytes is not a whole number of float32", len(b))
	}
	out := make([]float32, len(b)/Float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*Float32Size:]))
	}
	return out, nil
}

// EncodeFloat64sAsFloat32 narrows v to float32 and encodes it.
func EncodeFloat64sAsFloat32(v []float64) []byte {
	narrow := make([]float32, len(v))
	for i, f := range v {
		narrow[i] = float32(f)
	}
	return EncodeFloat32s(narrow)
}

// DecodeFloat32sAsFloat64 decodes a float32 blob and widens it.
func DecodeFloat32sAsFloat64(b []byte) ([]float64, error) {
	narrow, err := DecodeFloat32s(b)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(narrow))
	for i, f := range narrow {
		out[i] = float64(f)
	}
	return out, nil
}
