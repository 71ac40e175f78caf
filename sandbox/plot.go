package sandbox

import (
	"fmt"
	"sort"
	"time"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// PLOT — The plt handle
// ============================================================================
// Drawing calls append layers to one Figure. Nothing is rendered here; the
// classifier turns a non-empty figure into a PNG after the snippet ends.
// ============================================================================

// maxLayers bounds how many series one snippet may draw.
const maxLayers = 20

type plotHandle struct {
	fig *engine.Figure
}

var plotMethods map[string]method

func init() {
	plotMethods = map[string]method{
		"bar":     plotDraw(engine.ChartBar),
		"barh":    plotDraw(engine.ChartBar),
		"line":    plotDraw(engine.ChartLine),
		"plot":    plotDraw(engine.ChartLine),
		"scatter": plotDraw(engine.ChartScatter),
		"hist":    plotHist,
		"title": plotLabel(func(f *engine.Figure, s string) {
			f.Title = s
		}),
		"xlabel": plotLabel(func(f *engine.Figure, s string) {
			f.XLabel = s
		}),
		"ylabel": plotLabel(func(f *engine.Figure, s string) {
			f.YLabel = s
		}),
		"show":   func(any, []any) (any, error) { return nil, nil },
		"legend": func(any, []any) (any, error) { return nil, nil },
	}
}

func plotLabel(set func(f *engine.Figure, s string)) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 1, 1); err != nil {
			return nil, err
		}
		s, err := argString(a, 0)
		if err != nil {
			return nil, err
		}
		set(r.(*plotHandle).fig, s)
		return nil, nil
	}
}

func (h *plotHandle) add(l engine.Layer) error {
	if len(h.fig.Layers) >= maxLayers {
		return fmt.Errorf("a figure holds at most %d series", maxLayers)
	}
	h.fig.Layers = append(h.fig.Layers, l)
	return nil
}

func (h *plotHandle) defaultLabels(x *engine.Column, y *engine.Column) {
	if h.fig.XLabel == "" && x != nil {
		h.fig.XLabel = x.Name()
	}
	if h.fig.YLabel == "" && y != nil {
		h.fig.YLabel = y.Name()
	}
}

// series unpacks drawing arguments: (dataset), (y), (x, y), each with an
// optional trailing label. A dataset draws its numeric columns against the
// first column.
func series(a []any) (x *engine.Column, ys []*engine.Column, label string, err error) {
	if len(a) > 0 {
		if s, ok := a[len(a)-1].(string); ok {
			label = s
			a = a[:len(a)-1]
		}
	}
	if err := wantArgs(a, 1, 2); err != nil {
		return nil, nil, "", err
	}
	if d, ok := a[0].(*engine.Dataset); ok {
		if len(a) != 1 {
			return nil, nil, "", fmt.Errorf("a dataset is drawn on its own")
		}
		cols := d.Columns()
		if len(cols) < 2 {
			return nil, nil, "", fmt.Errorf("a dataset needs an x column and at least one numeric column")
		}
		for _, c := range cols[1:] {
			if c.Kind() == engine.KindNumeric {
				ys = append(ys, c)
			}
		}
		if len(ys) == 0 {
			return nil, nil, "", fmt.Errorf("dataset has no numeric column to draw")
		}
		return cols[0], ys, label, nil
	}
	first, err := argColumn(a, 0)
	if err != nil {
		return nil, nil, "", err
	}
	if len(a) == 1 {
		return nil, []*engine.Column{first}, label, nil
	}
	second, err := argColumn(a, 1)
	if err != nil {
		return nil, nil, "", err
	}
	if first.Len() != second.Len() {
		return nil, nil, "", fmt.Errorf("x and y have different lengths (%d and %d)", first.Len(), second.Len())
	}
	return first, []*engine.Column{second}, label, nil
}

func plotDraw(kind engine.ChartKind) method {
	return func(r any, a []any) (any, error) {
		h := r.(*plotHandle)
		x, ys, label, err := series(a)
		if err != nil {
			return nil, err
		}
		// A lone categorical column is drawn as its value counts.
		if x == nil && ys[0].Kind() != engine.KindNumeric {
			if kind != engine.ChartBar {
				return nil, fmt.Errorf("%s needs a numeric column, %q is %s", kind, ys[0].Name(), ys[0].Kind())
			}
			counts := ys[0].ValueCounts().Columns()
			x, ys = counts[0], counts[1:]
		}
		h.defaultLabels(x, ys[0])
		for _, y := range ys {
			if y.Kind() != engine.KindNumeric {
				return nil, fmt.Errorf("%s needs numeric y values, %q is %s", kind, y.Name(), y.Kind())
			}
			l, err := buildLayer(kind, x, y)
			if err != nil {
				return nil, err
			}
			l.Label = label
			if l.Label == "" && len(ys) > 1 {
				l.Label = y.Name()
			}
			if err := h.add(l); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

type point struct {
	x   float64
	y   float64
	cat string
}

// buildLayer pairs x and y cells, skipping rows where either is missing.
// Datetime x becomes unix seconds; categorical x becomes positions with
// labels.
func buildLayer(kind engine.ChartKind, x, y *engine.Column) (engine.Layer, error) {
	l := engine.Layer{Kind: kind}
	categorical := kind == engine.ChartBar
	if x != nil {
		switch x.Kind() {
		case engine.KindDatetime:
			l.TimeX = kind != engine.ChartBar
		case engine.KindNumeric:
		default:
			categorical = true
		}
	}

	var pts []point
	for i := 0; i < y.Len(); i++ {
		fy, ok := y.Value(i).(float64)
		if !ok {
			continue
		}
		p := point{x: float64(i), y: fy, cat: fmt.Sprint(i + 1)}
		if x != nil {
			xv := x.Value(i)
			if xv == nil {
				continue
			}
			p.cat = engine.FormatCell(xv)
			switch v := xv.(type) {
			case float64:
				p.x = v
			case time.Time:
				p.x = float64(v.Unix())
			}
		}
		pts = append(pts, p)
	}
	if len(pts) == 0 {
		return l, fmt.Errorf("nothing to draw: %q has no values", y.Name())
	}
	if kind == engine.ChartLine && !categorical {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].x < pts[j].x })
	}

	for i, p := range pts {
		if categorical {
			p.x = float64(i)
			l.Categories = append(l.Categories, p.cat)
		}
		l.X = append(l.X, p.x)
		l.Y = append(l.Y, p.y)
	}
	return l, nil
}

func plotHist(r any, a []any) (any, error) {
	h := r.(*plotHandle)
	if err := wantArgs(a, 1, 2); err != nil {
		return nil, err
	}
	c, err := argColumn(a, 0)
	if err != nil {
		return nil, err
	}
	if c.Kind() != engine.KindNumeric {
		return nil, fmt.Errorf("hist needs a numeric column, %q is %s", c.Name(), c.Kind())
	}
	bins, err := argInt(a, 1, 10)
	if err != nil {
		return nil, err
	}
	if bins < 1 || bins > 200 {
		return nil, fmt.Errorf("bins must be between 1 and 200, got %d", bins)
	}
	xs := c.Floats()
	if len(xs) == 0 {
		return nil, fmt.Errorf("nothing to draw: %q has no values", c.Name())
	}
	h.defaultLabels(c, nil)
	return nil, h.add(engine.Layer{Kind: engine.ChartHist, X: xs, Bins: bins})
}
