package sandbox

import (
	"fmt"
	"math"
	"strings"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// METHODS — Dispatch tables for dataset, column and group-by values
// ============================================================================
// Method names match case-insensitively and ignore underscores, so
// Contains, contains and value_counts all resolve.
// ============================================================================

type method func(recv any, args []any) (any, error)

// groupedColumn is `df.GroupBy(...)["col"]`, waiting for an aggregation.
type groupedColumn struct {
	g   *engine.Grouped
	col string
}

func methodKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func callMethod(recv any, name string, args []any) (any, error) {
	var table map[string]method
	switch recv.(type) {
	case *engine.Dataset:
		table = datasetMethods
	case *engine.Column:
		table = columnMethods
	case *engine.Grouped:
		table = groupedMethods
	case *groupedColumn:
		table = groupedColumnMethods
	case numericHandle:
		table = numericMethods
	case *plotHandle:
		table = plotMethods
	case nil:
		return nil, fmt.Errorf("cannot call %s on nil", name)
	default:
		return nil, fmt.Errorf("%s has no method %s", engine.TypeName(recv), name)
	}
	m, ok := table[methodKey(name)]
	if !ok {
		return nil, fmt.Errorf("%s has no method %s", typeLabel(recv), name)
	}
	out, err := m(recv, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func typeLabel(v any) string {
	switch v.(type) {
	case *groupedColumn:
		return "grouped column"
	case numericHandle:
		return "np"
	case *plotHandle:
		return "plt"
	}
	return engine.TypeName(v)
}

// ── Argument helpers ────────────────────────────────────────────────────────

func wantArgs(args []any, lo, hi int) error {
	if len(args) >= lo && (hi < 0 || len(args) <= hi) {
		return nil
	}
	switch {
	case lo == hi:
		return fmt.Errorf("takes %d arguments, got %d", lo, len(args))
	case hi < 0:
		return fmt.Errorf("takes at least %d arguments, got %d", lo, len(args))
	}
	return fmt.Errorf("takes %d to %d arguments, got %d", lo, hi, len(args))
}

func argString(args []any, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string, got %s", i+1, engine.TypeName(args[i]))
	}
	return s, nil
}

func argStrings(args []any) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := range args {
		if c, ok := args[i].(*engine.Column); ok {
			for _, v := range c.Values() {
				out = append(out, engine.FormatCell(v))
			}
			continue
		}
		s, err := argString(args, i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func argFloat(args []any, i int) (float64, error) {
	f, ok := args[i].(float64)
	if !ok {
		return 0, fmt.Errorf("argument %d must be a number, got %s", i+1, engine.TypeName(args[i]))
	}
	return f, nil
}

func toInt(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	return int(f), nil
}

func argInt(args []any, i, def int) (int, error) {
	if i >= len(args) {
		return def, nil
	}
	f, err := argFloat(args, i)
	if err != nil {
		return 0, err
	}
	return toInt(f)
}

func argBool(args []any, i int, def bool) (bool, error) {
	if i >= len(args) {
		return def, nil
	}
	b, ok := args[i].(bool)
	if !ok {
		return false, fmt.Errorf("argument %d must be true or false, got %s", i+1, engine.TypeName(args[i]))
	}
	return b, nil
}

func argColumn(args []any, i int) (*engine.Column, error) {
	c, ok := args[i].(*engine.Column)
	if !ok {
		return nil, fmt.Errorf("argument %d must be a column, got %s", i+1, engine.TypeName(args[i]))
	}
	return c, nil
}

// scalarOrNil turns NaN reductions into nil so they classify as missing.
func scalarOrNil(f float64, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return f, nil
}

// ============================================================================
// DATASET METHODS
// ============================================================================

var datasetMethods map[string]method

func init() {
	datasetMethods = map[string]method{
		"col": dsCol, "column": dsCol,
		"select": func(r any, a []any) (any, error) {
			names, err := argStrings(a)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Dataset).Select(names...)
		},
		"drop": func(r any, a []any) (any, error) {
			names, err := argStrings(a)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Dataset).Drop(names...)
		},
		"rename": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 2, 2); err != nil {
				return nil, err
			}
			from, err := argString(a, 0)
			if err != nil {
				return nil, err
			}
			to, err := argString(a, 1)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Dataset).Rename(from, to)
		},
		"where": dsWhere, "filter": dsWhere,
		"head": func(r any, a []any) (any, error) {
			n, err := argInt(a, 0, 5)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Dataset).Head(n), nil
		},
		"tail": func(r any, a []any) (any, error) {
			n, err := argInt(a, 0, 5)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Dataset).Tail(n), nil
		},
		"sortby": dsSort(false), "sort": dsSort(false), "sortvalues": dsSort(false),
		"sortdesc": dsSort(true),
		"groupby": func(r any, a []any) (any, error) {
			names, err := argStrings(a)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Dataset).GroupBy(names...)
		},
		"unique": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 0, 0); err != nil {
				return nil, err
			}
			return r.(*engine.Dataset).Unique(), nil
		},
		"dropna": func(r any, a []any) (any, error) {
			names, err := argStrings(a)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Dataset).DropNA(names...)
		},
		"describe": func(r any, a []any) (any, error) {
			return r.(*engine.Dataset).Describe()
		},
		"len": dsLen, "count": dsLen,
		"columns": func(r any, a []any) (any, error) {
			return engine.StringColumn("column", r.(*engine.Dataset).Names()...), nil
		},
		"assign": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 2, 2); err != nil {
				return nil, err
			}
			name, err := argString(a, 0)
			if err != nil {
				return nil, err
			}
			d := r.(*engine.Dataset)
			out := d.Clone()
			col, ok := a[1].(*engine.Column)
			if !ok {
				col = engine.Broadcast(name, a[1], d.NumRows())
			}
			if err := out.Set(col.Renamed(name)); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

func dsCol(r any, a []any) (any, error) {
	if err := wantArgs(a, 1, 1); err != nil {
		return nil, err
	}
	name, err := argString(a, 0)
	if err != nil {
		return nil, err
	}
	return r.(*engine.Dataset).Col(name)
}

func dsWhere(r any, a []any) (any, error) {
	if err := wantArgs(a, 1, 1); err != nil {
		return nil, err
	}
	mask, err := argColumn(a, 0)
	if err != nil {
		return nil, err
	}
	return r.(*engine.Dataset).Where(mask)
}

func dsLen(r any, a []any) (any, error) {
	return float64(r.(*engine.Dataset).NumRows()), nil
}

// dsSort accepts (col), (col, desc) or (col1, col2, ...).
func dsSort(desc bool) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 1, -1); err != nil {
			return nil, err
		}
		d := desc
		if b, ok := a[len(a)-1].(bool); ok {
			d = desc != b
			a = a[:len(a)-1]
		}
		names, err := argStrings(a)
		if err != nil {
			return nil, err
		}
		return r.(*engine.Dataset).SortBy(d, names...)
	}
}

// ============================================================================
// COLUMN METHODS
// ============================================================================

var columnMethods map[string]method

func colStringPredicate(f func(c *engine.Column, s string) *engine.Column) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 1, 1); err != nil {
			return nil, err
		}
		s, err := argString(a, 0)
		if err != nil {
			return nil, err
		}
		return f(r.(*engine.Column), s), nil
	}
}

func colReduce(f func(c *engine.Column) (float64, error)) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 0, 0); err != nil {
			return nil, err
		}
		return scalarOrNil(f(r.(*engine.Column)))
	}
}

func colUnary(f func(c *engine.Column) *engine.Column) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 0, 0); err != nil {
			return nil, err
		}
		return f(r.(*engine.Column)), nil
	}
}

func colUnaryErr(f func(c *engine.Column) (*engine.Column, error)) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 0, 0); err != nil {
			return nil, err
		}
		return f(r.(*engine.Column))
	}
}

func colSet(f func(c, other *engine.Column) *engine.Column) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 1, 1); err != nil {
			return nil, err
		}
		other, err := argColumn(a, 0)
		if err != nil {
			return nil, err
		}
		return f(r.(*engine.Column), other), nil
	}
}

func init() {
	columnMethods = map[string]method{
		"contains":   colStringPredicate((*engine.Column).Contains),
		"startswith": colStringPredicate((*engine.Column).StartsWith),
		"equalfold":  colStringPredicate((*engine.Column).EqualFold),
		"equals":     colStringPredicate((*engine.Column).EqualFold),
		"isin": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 1, -1); err != nil {
				return nil, err
			}
			return r.(*engine.Column).IsIn(a...)
		},
		"between": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 2, 2); err != nil {
				return nil, err
			}
			return r.(*engine.Column).Between(a[0], a[1])
		},
		"isnull":  colUnary((*engine.Column).IsNull),
		"isna":    colUnary((*engine.Column).IsNull),
		"notnull": colUnary((*engine.Column).NotNull),
		"notna":   colUnary((*engine.Column).NotNull),

		"sum":    colReduce((*engine.Column).Sum),
		"mean":   colReduce((*engine.Column).Mean),
		"avg":    colReduce((*engine.Column).Mean),
		"median": colReduce((*engine.Column).Median),
		"std":    colReduce((*engine.Column).Std),
		"quantile": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 1, 1); err != nil {
				return nil, err
			}
			p, err := argFloat(a, 0)
			if err != nil {
				return nil, err
			}
			return scalarOrNil(r.(*engine.Column).Quantile(p))
		},
		"min": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 0, 0); err != nil {
				return nil, err
			}
			return r.(*engine.Column).Min()
		},
		"max": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 0, 0); err != nil {
				return nil, err
			}
			return r.(*engine.Column).Max()
		},
		"count": func(r any, a []any) (any, error) {
			return float64(r.(*engine.Column).Count()), nil
		},
		"len": func(r any, a []any) (any, error) {
			return float64(r.(*engine.Column).Len()), nil
		},
		"nunique": func(r any, a []any) (any, error) {
			return float64(r.(*engine.Column).NUnique()), nil
		},
		"unique": colUnary((*engine.Column).Unique),
		"valuecounts": func(r any, a []any) (any, error) {
			return r.(*engine.Column).ValueCounts(), nil
		},
		"intersect":  colSet((*engine.Column).Intersect),
		"union":      colSet((*engine.Column).Union),
		"difference": colSet((*engine.Column).Difference),

		"lower":  colUnary((*engine.Column).Lower),
		"upper":  colUnary((*engine.Column).Upper),
		"strip":  colUnary((*engine.Column).Strip),
		"trim":   colUnary((*engine.Column).Strip),
		"astext": colUnary((*engine.Column).AsText),
		"str":    colUnary((*engine.Column).AsText),
		"abs":    colUnaryErr((*engine.Column).Abs),
		"year":   colUnaryErr((*engine.Column).Year),
		"month":  colUnaryErr((*engine.Column).Month),
		"day":    colUnaryErr((*engine.Column).Day),
		"period": colUnaryErr((*engine.Column).Period),
		"round": func(r any, a []any) (any, error) {
			n, err := argInt(a, 0, 0)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Column).Round(n)
		},
		"fillna": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 1, 1); err != nil {
				return nil, err
			}
			return r.(*engine.Column).FillNA(a[0])
		},
		"dropna": colUnary((*engine.Column).DropNA),
		"sort": func(r any, a []any) (any, error) {
			desc, err := argBool(a, 0, false)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Column).Sorted(desc), nil
		},
		"sortdesc": colUnary(func(c *engine.Column) *engine.Column { return c.Sorted(true) }),
		"head": func(r any, a []any) (any, error) {
			n, err := argInt(a, 0, 5)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Column).Head(n), nil
		},
		"tail": func(r any, a []any) (any, error) {
			n, err := argInt(a, 0, 5)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Column).Tail(n), nil
		},
		"at": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 1, 1); err != nil {
				return nil, err
			}
			n, err := argInt(a, 0, 0)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Column).At(n)
		},
		"rename": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 1, 1); err != nil {
				return nil, err
			}
			name, err := argString(a, 0)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Column).Renamed(name), nil
		},
		"where": func(r any, a []any) (any, error) {
			if err := wantArgs(a, 1, 1); err != nil {
				return nil, err
			}
			mask, err := argColumn(a, 0)
			if err != nil {
				return nil, err
			}
			return r.(*engine.Column).Where(mask)
		},
	}
}

// ============================================================================
// GROUP-BY METHODS
// ============================================================================

var groupedMethods map[string]method

func groupedAgg(f func(g *engine.Grouped, col string) (*engine.Dataset, error)) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 1, 1); err != nil {
			return nil, err
		}
		col, err := argString(a, 0)
		if err != nil {
			return nil, err
		}
		return f(r.(*engine.Grouped), col)
	}
}

var groupedColumnMethods map[string]method

func groupedColumnAgg(f func(g *engine.Grouped, col string) (*engine.Dataset, error)) method {
	return func(r any, a []any) (any, error) {
		if err := wantArgs(a, 0, 0); err != nil {
			return nil, err
		}
		gc := r.(*groupedColumn)
		return f(gc.g, gc.col)
	}
}

func init() {
	aggs := map[string]func(g *engine.Grouped, col string) (*engine.Dataset, error){
		"sum":     (*engine.Grouped).Sum,
		"mean":    (*engine.Grouped).Mean,
		"avg":     (*engine.Grouped).Mean,
		"median":  (*engine.Grouped).Median,
		"min":     (*engine.Grouped).Min,
		"max":     (*engine.Grouped).Max,
		"nunique": (*engine.Grouped).NUnique,
	}
	groupedMethods = map[string]method{
		"count": func(r any, a []any) (any, error) {
			return r.(*engine.Grouped).Count(), nil
		},
		"size": func(r any, a []any) (any, error) {
			return r.(*engine.Grouped).Count(), nil
		},
	}
	groupedColumnMethods = map[string]method{
		"count": func(r any, a []any) (any, error) {
			return r.(*groupedColumn).g.Count(), nil
		},
	}
	for name, f := range aggs {
		groupedMethods[name] = groupedAgg(f)
		groupedColumnMethods[name] = groupedColumnAgg(f)
	}
}
