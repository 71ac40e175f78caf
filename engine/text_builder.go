package engine

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// TEXT BUILDER — Scalar values → display text
// ============================================================================

// FormatScalar stringifies a scalar answer. Integral numbers print without
// decimals, other numbers are rounded to at most 2 decimals.
func FormatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case float64:
		return FormatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case time.Time:
		return FormatTime(x)
	}
	return FormatCell(v)
}

// FormatNumber renders a float the way answers show it.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(RoundTo2(f), 'f', -1, 64)
}

// FormatValue renders any engine value as text for printed output. Columns
// print one cell per line; datasets print as aligned tables.
func FormatValue(v any) string {
	switch x := v.(type) {
	case *Dataset:
		return strings.TrimRight(BuildTable(x).Text(50), "\n")
	case *Column:
		return strings.TrimRight(ColumnTable(x).Text(50), "\n")
	case *Grouped:
		return "<grouped by " + strings.Join(x.keys, ", ") + ">"
	}
	return FormatScalar(v)
}
