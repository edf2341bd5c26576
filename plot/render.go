package plot

import (
	"errors"
	"fmt"
	"os"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"chy506r/aggregate"
	"chy506r/config"
	"chy506r/sink"
)

// ErrNotEnoughSamples is returned when there is no line to draw yet
var ErrNotEnoughSamples = errors.New("at least two samples are needed to plot")

const secondsPerDay = 24 * 60 * 60

// Series converts samples to per-channel points. X is seconds since the
// first sample's midnight; a clock that goes backwards is taken to have
// crossed midnight.
func Series(samples []aggregate.Sample) (t1, t2 plotter.XYs) {
	t1 = make(plotter.XYs, 0, len(samples))
	t2 = make(plotter.XYs, 0, len(samples))

	var offset, prev float64
	for i, s := range samples {
		x := float64(s.Time.Hour*3600+s.Time.Minute*60+s.Time.Second) + offset
		if i > 0 && x < prev {
			offset += secondsPerDay
			x += secondsPerDay
		}
		prev = x
		t1 = append(t1, plotter.XY{X: x, Y: s.Channel1})
		t2 = append(t2, plotter.XY{X: x, Y: s.Channel2})
	}
	return t1, t2
}

// RenderPNG draws both channels and saves the chart to path
func RenderPNG(samples []aggregate.Sample, path string, cfg config.PlotConfig) error {
	if len(samples) < 2 {
		return ErrNotEnoughSamples
	}

	p := gplot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Temperature (C)"
	p.X.Tick.Marker = gplot.TimeTicks{Format: "15:04:05"}
	p.Legend.Top = true

	p.Add(plotter.NewGrid())

	t1, t2 := Series(samples)
	if err := plotutil.AddLines(p, "T1", t1, "T2", t2); err != nil {
		return fmt.Errorf("failed to add lines: %w", err)
	}
	p.Y.Min = cfg.YMin
	p.Y.Max = cfg.YMax

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// RenderFile reads a sample table and renders it to pngPath
func RenderFile(tablePath, pngPath string, cfg config.PlotConfig) error {
	f, err := os.Open(tablePath)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, err := sink.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", tablePath, err)
	}
	return RenderPNG(samples, pngPath, cfg)
}
