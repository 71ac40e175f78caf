package sandbox

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// NUMERIC — The np handle
// ============================================================================
// Reductions take a numeric column and skip missing cells. Element-wise
// functions accept a number or a numeric column. Variance and deviation are
// population statistics here, matching the usual numeric-library default;
// Column.Std stays the sample statistic.
// ============================================================================

type numericHandle struct{}

var numericMethods map[string]method

func init() {
	numericMethods = map[string]method{
		"mean":   npReduce("mean", (*engine.Column).Mean),
		"median": npReduce("median", (*engine.Column).Median),
		"sum":    npReduce("sum", (*engine.Column).Sum),
		"std":    npReduce("std", popStd),
		"var":    npReduce("var", popVar),
		"min":    npFloats("min", floats.Min),
		"max":    npFloats("max", floats.Max),
		"quantile": func(_ any, a []any) (any, error) {
			return npQuantile(a, 1)
		},
		"percentile": func(_ any, a []any) (any, error) {
			return npQuantile(a, 100)
		},
		"corr": npCorr,

		"abs":  npElementwise(math.Abs),
		"sqrt": npElementwise(math.Sqrt),
		"log":  npElementwise(math.Log),
		"exp":  npElementwise(math.Exp),
		"round": func(_ any, a []any) (any, error) {
			if err := wantArgs(a, 1, 2); err != nil {
				return nil, err
			}
			n, err := argInt(a, 1, 0)
			if err != nil {
				return nil, err
			}
			p := math.Pow(10, float64(n))
			return applyNumeric(a[0], func(f float64) float64 { return math.Round(f*p) / p })
		},
		"pow": func(_ any, a []any) (any, error) {
			if err := wantArgs(a, 2, 2); err != nil {
				return nil, err
			}
			exp, err := argFloat(a, 1)
			if err != nil {
				return nil, err
			}
			return applyNumeric(a[0], func(f float64) float64 { return math.Pow(f, exp) })
		},
	}
}

func numericArg(a []any, op string) (*engine.Column, error) {
	if err := wantArgs(a, 1, 1); err != nil {
		return nil, err
	}
	c, err := argColumn(a, 0)
	if err != nil {
		return nil, err
	}
	if c.Kind() != engine.KindNumeric {
		return nil, fmt.Errorf("%s requires a numeric column, %q is %s", op, c.Name(), c.Kind())
	}
	return c, nil
}

func npReduce(op string, f func(c *engine.Column) (float64, error)) method {
	return func(_ any, a []any) (any, error) {
		c, err := numericArg(a, op)
		if err != nil {
			return nil, err
		}
		return scalarOrNil(f(c))
	}
}

func npFloats(op string, f func([]float64) float64) method {
	return func(_ any, a []any) (any, error) {
		c, err := numericArg(a, op)
		if err != nil {
			return nil, err
		}
		xs := c.Floats()
		if len(xs) == 0 {
			return nil, nil
		}
		return f(xs), nil
	}
}

func popVar(c *engine.Column) (float64, error) {
	xs := c.Floats()
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	if len(xs) == 1 {
		return 0, nil
	}
	_, v := stat.MeanVariance(xs, nil)
	n := float64(len(xs))
	return v * (n - 1) / n, nil
}

func popStd(c *engine.Column) (float64, error) {
	v, err := popVar(c)
	return math.Sqrt(v), err
}

func npQuantile(a []any, scale float64) (any, error) {
	if err := wantArgs(a, 2, 2); err != nil {
		return nil, err
	}
	c, err := argColumn(a, 0)
	if err != nil {
		return nil, err
	}
	q, err := argFloat(a, 1)
	if err != nil {
		return nil, err
	}
	return scalarOrNil(c.Quantile(q / scale))
}

// npCorr is the Pearson correlation over rows where both cells are present.
func npCorr(_ any, a []any) (any, error) {
	if err := wantArgs(a, 2, 2); err != nil {
		return nil, err
	}
	x, err := argColumn(a, 0)
	if err != nil {
		return nil, err
	}
	y, err := argColumn(a, 1)
	if err != nil {
		return nil, err
	}
	if x.Len() != y.Len() {
		return nil, fmt.Errorf("columns have different lengths (%d and %d)", x.Len(), y.Len())
	}
	var xs, ys []float64
	for i := 0; i < x.Len(); i++ {
		fx, okx := x.Value(i).(float64)
		fy, oky := y.Value(i).(float64)
		if okx && oky {
			xs = append(xs, fx)
			ys = append(ys, fy)
		}
	}
	if len(xs) < 2 {
		return nil, nil
	}
	return scalarOrNil(stat.Correlation(xs, ys, nil), nil)
}

func npElementwise(f func(float64) float64) method {
	return func(_ any, a []any) (any, error) {
		if err := wantArgs(a, 1, 1); err != nil {
			return nil, err
		}
		return applyNumeric(a[0], f)
	}
}

// applyNumeric maps f over a number or a numeric column. Results that are
// not finite become missing cells.
func applyNumeric(v any, f func(float64) float64) (any, error) {
	switch x := v.(type) {
	case float64:
		r := f(x)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("result of %v is not a finite number", x)
		}
		return r, nil
	case *engine.Column:
		if x.Kind() != engine.KindNumeric {
			return nil, fmt.Errorf("%q is %s, not numeric", x.Name(), x.Kind())
		}
		cells := x.Values()
		for i, c := range cells {
			if fv, ok := c.(float64); ok {
				r := f(fv)
				if math.IsNaN(r) || math.IsInf(r, 0) {
					cells[i] = nil
				} else {
					cells[i] = r
				}
			}
		}
		return engine.NewColumn(x.Name(), engine.KindNumeric, cells), nil
	}
	return nil, fmt.Errorf("expected a number or numeric column, got %s", engine.TypeName(v))
}
