package sandbox

import (
	"strings"
	"time"

	"github.com/spektr-org/chatyfile/engine"
)

// NoOutputText is the answer for a snippet that ran but left nothing to show.
const NoOutputText = "executed with no visible output"

// Classify turns a capture into a Result. First match wins: a drawn figure,
// then a bound result (table, scalar or unsupported), then printed output.
// A result bound to nil counts as unbound.
func Classify(c *Capture, opts ...engine.ChartOption) engine.Result {
	if c == nil {
		return engine.ScalarResult(NoOutputText)
	}

	if !c.Figure.Empty() {
		png, err := engine.RenderPNG(c.Figure, opts...)
		if err != nil {
			return engine.ErrorResult(engine.ErrExecutionFailed, "plot: "+err.Error())
		}
		return engine.PlotResult(&engine.Plot{Title: c.Figure.Title, PNG: png})
	}

	if c.ResultBound && c.Result != nil {
		switch v := c.Result.(type) {
		case *engine.Dataset:
			return engine.TableResult(engine.BuildTable(v))
		case *engine.Column:
			return engine.TableResult(engine.ColumnTable(v))
		case float64, string, bool, time.Time:
			return engine.ScalarResult(engine.FormatScalar(v))
		default:
			return engine.ErrorResult(engine.ErrUnsupportedResult,
				"result holds a "+typeLabel(v)+"; assign a dataset, column or single value")
		}
	}

	if out := strings.TrimSpace(c.Output); out != "" {
		return engine.ScalarResult(out)
	}
	return engine.ScalarResult(NoOutputText)
}
