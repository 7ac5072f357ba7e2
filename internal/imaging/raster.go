package imaging

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/plenoptics/internal/binio"
	"github.com/banshee-data/plenoptics/internal/fsutil"
)

// ErrShapeMismatch is returned when an image blob does not hold exactly
// NumX*NumY values.
var ErrShapeMismatch = errors.New("image shape mismatch")

// Raster is a fixed-shape float32 image stored x-major: the value of pixel
// (ix, iy) is Values[ix*NumY+iy].
type Raster struct {
	NumX   int
	NumY   int
	Values []float32
}

// NewRaster returns an all-zero raster.
func NewRaster(numX, numY int) Raster {
	return Raster{NumX: numX, NumY: numY, Values: make([]float32, numX*numY)}
}

// RasterFromDense narrows a histogram to float32.
func RasterFromDense(m *mat.Dense) Raster {
	r, c := m.Dims()
	out := NewRaster(r, c)
	for ix := 0; ix < r; ix++ {
		for iy := 0; iy < c; iy++ {
			out.Values[ix*c+iy] = float32(m.At(ix, iy))
		}
	}
	return out
}

// At returns the value of pixel (ix, iy).
func (r Raster) At(ix, iy int) float32 {
	return r.Values[ix*r.NumY+iy]
}

// Max returns the largest pixel value, or zero for an empty raster.
func (r Raster) Max() float32 {
	var m float32
	for i, v := range r.Values {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

// Dense widens the raster into a gonum matrix.
func (r Raster) Dense() *mat.Dense {
	data := make([]float64, len(r.Values))
	for i, v := range r.Values {
		data[i] = float64(v)
	}
	return mat.NewDense(r.NumX, r.NumY, data)
}

func (r Raster) validate() error {
	if r.NumX < 1 || r.NumY < 1 || len(r.Values) != r.NumX*r.NumY {
		return fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(r.Values), r.NumX, r.NumY)
	}
	return nil
}

// WriteImage stores r as a header-less little-endian float32 blob. The file
// is written next to path and renamed into place.
func WriteImage(fsys fsutil.FileSystem, path string, r Raster) error {
	if err := r.validate(); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(fsys, path, binio.EncodeFloat32s(r.Values), 0644)
}

// ReadImage loads a blob written by WriteImage. The shape is not stored in
// the file, so the caller provides it and a size mismatch is an error.
func ReadImage(fsys fsutil.FileSystem, path string, numX, numY int) (Raster, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return Raster{}, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	values, err := binio.DecodeFloat32s(data)
	if err != nil {
		return Raster{}, fmt.Errorf("%w: %s: %v", ErrShapeMismatch, path, err)
	}
	r := Raster{NumX: numX, NumY: numY, Values: values}
	if err := r.validate(); err != nil {
		return Raster{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
