// Package plot renders diagnostic figures of analysis results: PNG images
// with gonum/plot and interactive HTML charts with go-echarts.
package plot

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/plenoptics/internal/depth"
	"github.com/banshee-data/plenoptics/internal/fsutil"
	"github.com/banshee-data/plenoptics/internal/imaging"
	"github.com/banshee-data/plenoptics/internal/report"
	"github.com/banshee-data/plenoptics/internal/units"
)

const (
	paletteSize     = 255
	depthAxisMargin = 1.25
)

// imageGrid adapts a normalised report image to plotter.GridXYZ, with axes
// in degrees.
type imageGrid struct {
	z      [][]float64 // z[ix][iy]
	cx, cy []float64
}

func newImageGrid(b imaging.Binning, z [][]float64) *imageGrid {
	edgesCx, edgesCy := imaging.BinEdges(b)
	return &imageGrid{z: z, cx: centersDeg(edgesCx), cy: centersDeg(edgesCy)}
}

func centersDeg(edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	c := make([]float64, len(edges)-1)
	for i := range c {
		c[i] = units.Rad2Deg(0.5 * (edges[i] + edges[i+1]))
	}
	return c
}

func (g *imageGrid) Dims() (c, r int)   { return len(g.cx), len(g.cy) }
func (g *imageGrid) Z(c, r int) float64 { return g.z[c][r] }
func (g *imageGrid) X(c int) float64    { return g.cx[c] }
func (g *imageGrid) Y(r int) float64    { return g.cy[r] }

// WriteImagePNG renders the normalised image of r as a heat map. vmax sets
// the top of the colour scale so several reports can share one; a
// non-positive vmax uses the image's own peak.
func WriteImagePNG(fsys fsutil.FileSystem, path string, r *report.PointSourceReport, vmax float64) error {
	norm, err := report.MakeNormImage(r)
	if err != nil {
		return err
	}
	rows, cols := norm.Dims()
	if rows != r.Image.Binning.NumPixelCx || cols != r.Image.Binning.NumPixelCy {
		return fmt.Errorf("%w: image is %dx%d, binning is %dx%d", imaging.ErrShapeMismatch,
			rows, cols, r.Image.Binning.NumPixelCx, r.Image.Binning.NumPixelCy)
	}
	z := make([][]float64, rows)
	for i := range z {
		z[i] = norm.RawRowView(i)
	}

	if vmax <= 0 {
		vmax = norm.At(0, 0)
		for i := range z {
			for _, v := range z[i] {
				vmax = max(vmax, v)
			}
		}
	}
	if vmax <= 0 {
		vmax = 1
	}

	hm := plotter.NewHeatMap(newImageGrid(r.Image.Binning, z), palette.Heat(paletteSize, 1))
	hm.Min = 0
	hm.Max = vmax

	p := plot.New()
	p.Title.Text = fmt.Sprintf("angle80 = %.3f deg", units.Rad2Deg(r.Image.Angle80.Float()))
	p.X.Label.Text = "cx / deg"
	p.Y.Label.Text = "cy / deg"
	p.Add(hm)

	return savePNG(fsys, path, p, 6*vg.Inch, 6*vg.Inch)
}

// WriteDepthScanPNG plots reconstructed over true depth on log axes, with
// the identity as reference.
func WriteDepthScanPNG(fsys fsutil.FileSystem, path string, s depth.Summary) error {
	if len(s.Pairs) == 0 {
		return fmt.Errorf("depth summary has no reconstructed sources")
	}

	pts := make(plotter.XYs, len(s.Pairs))
	lo, hi := s.Pairs[0].TrueM, s.Pairs[0].TrueM
	for i, pr := range s.Pairs {
		pts[i] = plotter.XY{X: pr.TrueM * 1e-3, Y: pr.RecoM * 1e-3}
		lo = min(lo, pr.TrueM, pr.RecoM)
		hi = max(hi, pr.TrueM, pr.RecoM)
	}
	if !(lo > 0) {
		return fmt.Errorf("depths must be positive for a log plot, got %g m", lo)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("depth: %d sources, spread %.3f", s.NumEstimates, s.RelativeSpread.Float())
	p.X.Label.Text = "true depth / km"
	p.Y.Label.Text = "reconstructed depth / km"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	// fixed range so a single source still spans a positive interval
	p.X.Min, p.X.Max = lo*1e-3/depthAxisMargin, hi*1e-3*depthAxisMargin
	p.Y.Min, p.Y.Max = p.X.Min, p.X.Max

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("create scatter: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(2)

	ident, err := plotter.NewLine(plotter.XYs{{X: lo * 1e-3, Y: lo * 1e-3}, {X: hi * 1e-3, Y: hi * 1e-3}})
	if err != nil {
		return fmt.Errorf("create identity line: %w", err)
	}
	ident.Width = vg.Points(1)
	ident.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	ident.Color = color.Gray{Y: 80}

	p.Add(ident, scatter)
	p.Legend.Add("sources", scatter)
	p.Legend.Top = true
	p.Legend.Left = true

	return savePNG(fsys, path, p, 6*vg.Inch, 6*vg.Inch)
}

func savePNG(fsys fsutil.FileSystem, path string, p *plot.Plot, w, h vg.Length) error {
	c := vgimg.PngCanvas{Canvas: vgimg.New(w, h)}
	p.Draw(draw.New(c))
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}
