package engine

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ============================================================================
// CHART BUILDER — Figure → PNG via gonum/plot
// ============================================================================

// ChartKind is the type of a figure layer.
type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartScatter ChartKind = "scatter"
	ChartHist    ChartKind = "hist"
)

// Layer is one series drawn on a figure. Bar layers are placed at 0..n-1;
// the other kinds use X. Categories, when set, label those positions and
// TimeX marks X as unix seconds.
type Layer struct {
	Kind       ChartKind
	Label      string
	X          []float64
	Y          []float64
	Categories []string
	TimeX      bool
	Bins       int
}

// Figure accumulates layers and labels until it is rendered.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Layers []Layer
}

// Empty reports whether anything has been drawn.
func (f *Figure) Empty() bool { return f == nil || len(f.Layers) == 0 }

// RenderPNG draws the figure and encodes it as PNG.
func RenderPNG(f *Figure, opts ...ChartOption) ([]byte, error) {
	if f.Empty() {
		return nil, fmt.Errorf("figure has nothing to draw")
	}
	cfg := applyChartOptions(opts)

	p := plot.New()
	p.Title.Text = f.Title
	p.X.Label.Text = f.XLabel
	p.Y.Label.Text = f.YLabel
	p.Add(plotter.NewGrid())

	var nominal []string
	bars := 0
	for _, l := range f.Layers {
		if l.Kind == ChartBar {
			bars++
		}
	}
	barWidth := vg.Points(float64(cfg.barWidth) / float64(max(bars, 1)))

	barIndex := 0
	for i, l := range f.Layers {
		color := plotutil.Color(i)
		switch l.Kind {
		case ChartBar:
			b, err := plotter.NewBarChart(plotter.Values(l.Y), barWidth)
			if err != nil {
				return nil, fmt.Errorf("bar layer %d: %w", i, err)
			}
			b.Color = color
			b.LineStyle.Width = 0
			b.Offset = barWidth * vg.Length(2*barIndex-bars+1) / 2
			barIndex++
			p.Add(b)
			addLegend(p, l.Label, b)
		case ChartLine:
			line, err := plotter.NewLine(xys(l))
			if err != nil {
				return nil, fmt.Errorf("line layer %d: %w", i, err)
			}
			line.Color = color
			line.Width = vg.Points(2)
			p.Add(line)
			addLegend(p, l.Label, line)
		case ChartScatter:
			s, err := plotter.NewScatter(xys(l))
			if err != nil {
				return nil, fmt.Errorf("scatter layer %d: %w", i, err)
			}
			s.GlyphStyle.Color = color
			s.GlyphStyle.Radius = vg.Points(3)
			p.Add(s)
			addLegend(p, l.Label, s)
		case ChartHist:
			bins := l.Bins
			if bins <= 0 {
				bins = 10
			}
			h, err := plotter.NewHist(plotter.Values(l.X), bins)
			if err != nil {
				return nil, fmt.Errorf("hist layer %d: %w", i, err)
			}
			h.FillColor = color
			p.Add(h)
			addLegend(p, l.Label, h)
		default:
			return nil, fmt.Errorf("unknown chart kind %q", l.Kind)
		}
		if len(l.Categories) > len(nominal) {
			nominal = l.Categories
		}
		if l.TimeX {
			p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
		}
	}
	if len(nominal) > 0 {
		p.NominalX(nominal...)
	}

	wt, err := p.WriterTo(cfg.width, cfg.height, "png")
	if err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func xys(l Layer) plotter.XYs {
	n := min(len(l.X), len(l.Y))
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i].X = l.X[i]
		pts[i].Y = l.Y[i]
	}
	return pts
}

func addLegend(p *plot.Plot, label string, t plot.Thumbnailer) {
	if label != "" {
		p.Legend.Add(label, t)
	}
}
