// Package report renders diagnostic HTML charts of stored fingerprints.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/viddup/internal/monitoring"
	"github.com/banshee-data/viddup/internal/store"
)

// maxPlotPoints caps the brightness series length per chart; longer
// series are downsampled by stride.
const maxPlotPoints = 8000

// WriteFingerprint renders the brightness series and extrema gaps of
// one file as an HTML page.
func WriteFingerprint(w io.Writer, fi store.FileInfo, series []float32, frames []int64, gaps []float64) error {
	page := components.NewPage()
	page.AddCharts(brightnessChart(fi, series, frames), gapChart(fi, frames, gaps))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render fingerprint page: %w", err)
	}
	return nil
}

func brightnessChart(fi store.FileInfo, series []float32, frames []int64) components.Charter {
	stride := 1
	if len(series) > maxPlotPoints {
		stride = int(math.Ceil(float64(len(series)) / float64(maxPlotPoints)))
	}

	samples := make([]float64, 0, len(series)/stride+1)
	data := make([]opts.LineData, 0, len(series)/stride+1)
	for i := 0; i < len(series); i += stride {
		samples = append(samples, float64(series[i]))
		data = append(data, opts.LineData{Value: []interface{}{i, series[i]}})
	}
	mean := stat.Mean(samples, nil)
	sigma := stat.StdDev(samples, nil)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: filepath.Base(fi.Name), Width: "1400px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Brightness of %s", filepath.Base(fi.Name)),
			Subtitle: fmt.Sprintf("fps=%.3f frames=%d stride=%d mean=%.1f stddev=%.1f", fi.FPS, len(series), stride, mean, sigma),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "brightness"}),
	)
	line.AddSeries("brightness", data)

	peaks := make([]opts.ScatterData, 0, len(frames))
	for _, frame := range frames {
		if frame < 0 || frame >= int64(len(series)) {
			continue
		}
		peaks = append(peaks, opts.ScatterData{Value: []interface{}{frame, series[frame]}})
	}
	scatter := charts.NewScatter()
	scatter.AddSeries("extrema", peaks, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	line.Overlap(scatter)
	return line
}

func gapChart(fi store.FileInfo, frames []int64, gaps []float64) components.Charter {
	data := make([]opts.LineData, 0, len(gaps))
	for i, gap := range gaps {
		data = append(data, opts.LineData{Value: []interface{}{frames[i], gap}})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1400px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Extremum gaps",
			Subtitle: fmt.Sprintf("%d extrema", len(gaps)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "gap (s)"}),
	)
	line.AddSeries("gap", data)
	return line
}

// Fingerprint looks videoPath up in the store and writes its diagnostic
// page to outPath.
func Fingerprint(st *store.Store, videoPath, outPath string) error {
	fid, ok, err := st.GetID(videoPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not in the database", videoPath)
	}
	fi, err := st.GetFileInfo(fid)
	if err != nil {
		return err
	}
	series, err := st.GetBrightness(fid)
	if err != nil {
		return err
	}
	frames, gaps, err := st.GetHashes(fid, 0, math.MaxInt64)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer out.Close()
	if err := WriteFingerprint(out, fi, series, frames, gaps); err != nil {
		return err
	}
	monitoring.Infof("wrote fingerprint report of %s to %s", videoPath, outPath)
	return nil
}
