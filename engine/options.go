package engine

import "gonum.org/v1/plot/vg"

// ============================================================================
// CHART OPTIONS — Functional options for RenderPNG()
// ============================================================================

// ChartOption configures figure rendering via functional options pattern.
type ChartOption func(*chartConfig)

type chartConfig struct {
	width    vg.Length
	height   vg.Length
	barWidth int // total points shared by all bar layers at one category
}

// pixels converts a pixel count to a vg length at the PNG default of 96 DPI.
func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / 96
}

// WithSize sets the output size in pixels. Non-positive values keep the
// default.
func WithSize(width, height int) ChartOption {
	return func(c *chartConfig) {
		if width > 0 {
			c.width = pixels(width)
		}
		if height > 0 {
			c.height = pixels(height)
		}
	}
}

// WithBarWidth sets the width in points of one category's bars.
func WithBarWidth(points int) ChartOption {
	return func(c *chartConfig) {
		if points > 0 {
			c.barWidth = points
		}
	}
}

// applyChartOptions creates a config from functional options.
func applyChartOptions(opts []ChartOption) *chartConfig {
	cfg := &chartConfig{
		width:    pixels(640),
		height:   pixels(400),
		barWidth: 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
