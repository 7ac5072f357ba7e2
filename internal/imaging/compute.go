package imaging

import (
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"

	"github.com/banshee-data/plenoptics/internal/fsutil"
)

// Projector gives the per-lixel image-plane directions for a focus
// distance. lightfield.Geometry implements it.
type Projector interface {
	CxCyInObjectDistance(objectDistance float64) (cx, cy []float64)
	AngularStd() (cxStd, cyStd []float64)
}

// ComputeImage refocuses a photon list at objectDistance. channels holds
// the lixel id of every photon; each photon contributes weight one. Photons
// on lixels without a finite projection are skipped.
func ComputeImage(
	p Projector,
	channels []int,
	objectDistance float64,
	edgesX, edgesY []float64,
	numSubSamples int,
	prng *rand.Rand,
) (Raster, error) {
	cx, cy := p.CxCyInObjectDistance(objectDistance)
	cxStd, cyStd := p.AngularStd()

	var x, y, xStd, yStd, w []float64
	for _, ch := range channels {
		if ch < 0 || ch >= len(cx) {
			return Raster{}, fmt.Errorf("photon on lixel %d outside [0, %d)", ch, len(cx))
		}
		if !finite4(cx[ch], cy[ch], cxStd[ch], cyStd[ch]) {
			continue
		}
		x = append(x, cx[ch])
		y = append(y, cy[ch])
		xStd = append(xStd, cxStd[ch])
		yStd = append(yStd, cyStd[ch])
		w = append(w, 1)
	}

	h := Histogram2DStd(x, y, xStd, yStd, w, edgesX, edgesY, numSubSamples, prng)
	return RasterFromDense(h), nil
}

func finite4(a, b, c, d float64) bool {
	for _, v := range [...]float64{a, b, c, d} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ImageCache keeps computed images on disk, one file per focus index.
type ImageCache struct {
	fs   fsutil.FileSystem
	dir  string
	numX int
	numY int
}

// NewImageCache returns a cache rooted at dir for images of the given shape.
func NewImageCache(fsys fsutil.FileSystem, dir string, numX, numY int) *ImageCache {
	return &ImageCache{fs: fsys, dir: dir, numX: numX, numY: numY}
}

// Path returns the file holding the image for index.
func (c *ImageCache) Path(index int) string {
	return filepath.Join(c.dir, fmt.Sprintf("%06d.float32", index))
}

// Get returns the cached image for index, calling compute and storing its
// result when the cache has no entry yet.
func (c *ImageCache) Get(index int, compute func() (Raster, error)) (Raster, error) {
	path := c.Path(index)
	if c.fs.Exists(path) {
		return ReadImage(c.fs, path, c.numX, c.numY)
	}
	r, err := compute()
	if err != nil {
		return Raster{}, err
	}
	if r.NumX != c.numX || r.NumY != c.numY {
		return Raster{}, fmt.Errorf("%w: computed %dx%d, cache holds %dx%d", ErrShapeMismatch, r.NumX, r.NumY, c.numX, c.numY)
	}
	if err := WriteImage(c.fs, path, r); err != nil {
		return Raster{}, err
	}
	return r, nil
}
