package depth

import (
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/plenoptics/internal/imaging"
)

// Refocus images a photon list at every distance in depthsM, reusing
// images already present in cache. Only missing images draw from prng, so
// a partially filled cache yields the same cached images but may change
// the ones computed afresh.
func Refocus(
	cache *imaging.ImageCache,
	p imaging.Projector,
	channels []int,
	depthsM []float64,
	binning imaging.Binning,
	numSubSamples int,
	prng *rand.Rand,
) ([]imaging.Raster, error) {
	if err := binning.Validate(); err != nil {
		return nil, err
	}
	edgesX, edgesY := imaging.BinEdges(binning)

	out := make([]imaging.Raster, len(depthsM))
	for i, d := range depthsM {
		img, err := cache.Get(i, func() (imaging.Raster, error) {
			return imaging.ComputeImage(p, channels, d, edgesX, edgesY, numSubSamples, prng)
		})
		if err != nil {
			return nil, fmt.Errorf("refocus at %g m: %w", d, err)
		}
		out[i] = img
	}
	return out, nil
}

// Sharpest returns the index of the image with the highest peak, or -1
// when images is empty.
func Sharpest(images []imaging.Raster) int {
	best, bestMax := -1, float32(0)
	for i, img := range images {
		if m := img.Max(); best < 0 || m > bestMax {
			best, bestMax = i, m
		}
	}
	return best
}
