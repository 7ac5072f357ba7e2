package plot

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/plenoptics/internal/depth"
	"github.com/banshee-data/plenoptics/internal/report"
)

const assetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// RenderTimeProfileHTML writes an HTML page with the isochor-aligned time
// profile of r as a bar chart, times in nanoseconds.
func RenderTimeProfileHTML(w io.Writer, r *report.PointSourceReport, title string) error {
	t := r.Time
	if len(t.BinCenters) != len(t.Weights) {
		return fmt.Errorf("time profile has %d centers and %d weights", len(t.BinCenters), len(t.Weights))
	}

	x := make([]string, len(t.BinCenters))
	y := make([]opts.BarData, len(t.Weights))
	for i := range t.BinCenters {
		x[i] = fmt.Sprintf("%.2f", t.BinCenters[i]*1e9)
		y[i] = opts.BarData{Value: t.Weights[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Subtitle: fmt.Sprintf("fwhm=%s ns containment80=%s ns",
				formatNs(t.FWHM.Width()), formatNs(t.Containment80.Width())),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time / ns", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "photons", NameLocation: "middle", NameGap: 40}),
	)
	bar.SetXAxis(x).AddSeries("time profile", y)

	page := components.NewPage()
	page.SetAssetsHost(assetsHost)
	page.AddCharts(bar)
	return page.Render(w)
}

// RenderDepthScanHTML writes an HTML scatter of reconstructed over true
// depth in km.
func RenderDepthScanHTML(w io.Writer, s depth.Summary, title string) error {
	data := make([]opts.ScatterData, len(s.Pairs))
	for i, p := range s.Pairs {
		data[i] = opts.ScatterData{Value: []interface{}{p.TrueM * 1e-3, p.RecoM * 1e-3}}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "800px", Height: "800px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("sources=%d skipped=%d spread=%.3f", s.NumEstimates, s.NumSkipped, s.RelativeSpread.Float()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "log", Name: "true depth / km", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log", Name: "reconstructed depth / km", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("sources", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter.Render(w)
}

func formatNs(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", seconds*1e9)
}
