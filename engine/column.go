package engine

import (
	"fmt"
	"strconv"
	"time"
)

// ============================================================================
// COLUMN — Named, typed, immutable cell storage
// ============================================================================
// Cell representation by kind:
//   numeric     → float64
//   datetime    → time.Time
//   categorical → string
//   other       → bool or string
// A nil cell is a missing value in every kind.
// ============================================================================

// Column is a named vector of cells. Cell storage is never written after
// construction; every operation returns a new Column.
type Column struct {
	name  string
	kind  ColumnKind
	cells []any
}

// NewColumn builds a column. It takes ownership of cells; callers must not
// modify the slice afterwards.
func NewColumn(name string, kind ColumnKind, cells []any) *Column {
	if cells == nil {
		cells = []any{}
	}
	return &Column{name: name, kind: kind, cells: cells}
}

// NumericColumn builds a numeric column from floats.
func NumericColumn(name string, values ...float64) *Column {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return NewColumn(name, KindNumeric, cells)
}

// StringColumn builds a categorical column from strings.
func StringColumn(name string, values ...string) *Column {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return NewColumn(name, KindCategorical, cells)
}

// BoolColumn builds a mask column.
func BoolColumn(name string, values ...bool) *Column {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return NewColumn(name, KindOther, cells)
}

// InferColumn builds a column whose kind is derived from the cell values.
// Integer cells are widened to float64.
func InferColumn(name string, cells []any) *Column {
	var nums, dates, strs, others int
	for i, v := range cells {
		switch x := v.(type) {
		case nil:
		case float64:
			nums++
		case int:
			cells[i] = float64(x)
			nums++
		case int64:
			cells[i] = float64(x)
			nums++
		case time.Time:
			dates++
		case string:
			strs++
		default:
			others++
		}
	}
	kind := KindOther
	switch {
	case others > 0:
	case nums > 0 && dates == 0 && strs == 0:
		kind = KindNumeric
	case dates > 0 && nums == 0 && strs == 0:
		kind = KindDatetime
	case strs > 0 && nums == 0 && dates == 0:
		kind = KindCategorical
	case nums == 0 && dates == 0 && strs == 0:
		kind = KindNumeric
	}
	return NewColumn(name, kind, cells)
}

func (c *Column) Name() string     { return c.name }
func (c *Column) Kind() ColumnKind { return c.kind }
func (c *Column) Len() int         { return len(c.cells) }

// Value returns the cell at i, or nil when i is out of range.
func (c *Column) Value(i int) any {
	if i < 0 || i >= len(c.cells) {
		return nil
	}
	return c.cells[i]
}

// At returns the cell at i. Negative indexes count from the end.
func (c *Column) At(i int) (any, error) {
	if i < 0 {
		i += len(c.cells)
	}
	if i < 0 || i >= len(c.cells) {
		return nil, fmt.Errorf("index %d out of range for column %q of length %d", i, c.name, len(c.cells))
	}
	return c.cells[i], nil
}

// Values returns a copy of the cells.
func (c *Column) Values() []any {
	out := make([]any, len(c.cells))
	copy(out, c.cells)
	return out
}

// Floats returns the non-missing numeric cells.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.cells))
	for _, v := range c.cells {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Renamed returns the same cells under a new name.
func (c *Column) Renamed(name string) *Column {
	return &Column{name: name, kind: c.kind, cells: c.cells}
}

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.cells {
		if v == nil {
			n++
		}
	}
	return n
}

func (c *Column) requireNumeric(op string) error {
	if c.kind != KindNumeric {
		return fmt.Errorf("%s requires a numeric column, %q is %s", op, c.name, c.kind)
	}
	return nil
}

// FormatCell renders a single cell as display text.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(RoundTo2(x), 'f', -1, 64)
	case time.Time:
		return FormatTime(x)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// FormatTime renders dates without a clock part when it is midnight.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
