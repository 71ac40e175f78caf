package engine

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// FILTERS — Boolean masks over columns
// ============================================================================
// A mask is a KindOther column of bool cells, one per row. Missing cells in
// the input produce false, except for IsNull.
// ============================================================================

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "=="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

func (op CompareOp) holds(cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

func (c *Column) mask(pred func(v any) bool) *Column {
	cells := make([]any, len(c.cells))
	for i, v := range c.cells {
		cells[i] = v != nil && pred(v)
	}
	return NewColumn(c.name, KindOther, cells)
}

// coerceLiteral converts a literal so it is comparable with cells of kind.
func (c *Column) coerceLiteral(v any) (any, error) {
	switch c.kind {
	case KindNumeric:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case KindDatetime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			if t, ok := ParseTime(x); ok {
				return t, nil
			}
			return nil, fmt.Errorf("cannot parse %q as a date for column %q", x, c.name)
		case float64:
			// A bare year compares against January 1st of that year.
			return time.Date(int(x), time.January, 1, 0, 0, 0, 0, time.UTC), nil
		}
	case KindCategorical:
		if s, ok := v.(string); ok {
			return s, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot compare %s column %q with %T", c.kind, c.name, v)
}

// Compare compares every cell with a literal value.
func (c *Column) Compare(op CompareOp, v any) (*Column, error) {
	if v == nil {
		switch op {
		case OpEq:
			return c.IsNull(), nil
		case OpNe:
			return c.NotNull(), nil
		}
		return nil, fmt.Errorf("cannot order column %q against nil", c.name)
	}
	lit, err := c.coerceLiteral(v)
	if err != nil {
		return nil, err
	}
	return c.mask(func(x any) bool { return op.holds(CompareCells(x, lit)) }), nil
}

// CompareColumns compares two columns row by row.
func CompareColumns(op CompareOp, a, b *Column) (*Column, error) {
	if a.Len() != b.Len() {
		return nil, fmt.Errorf("cannot compare %q (%d rows) with %q (%d rows)", a.name, a.Len(), b.name, b.Len())
	}
	if a.kind != b.kind && a.kind != KindOther && b.kind != KindOther {
		return nil, fmt.Errorf("cannot compare %s column %q with %s column %q", a.kind, a.name, b.kind, b.name)
	}
	cells := make([]any, a.Len())
	for i := range cells {
		x, y := a.cells[i], b.cells[i]
		cells[i] = x != nil && y != nil && op.holds(CompareCells(x, y))
	}
	return NewColumn(a.name, KindOther, cells), nil
}

// Contains is a case-insensitive substring match on the text of each cell.
func (c *Column) Contains(sub string) *Column {
	needle := strings.ToLower(sub)
	return c.mask(func(v any) bool {
		return strings.Contains(strings.ToLower(FormatCell(v)), needle)
	})
}

// StartsWith is a case-insensitive prefix match.
func (c *Column) StartsWith(prefix string) *Column {
	p := strings.ToLower(prefix)
	return c.mask(func(v any) bool {
		return strings.HasPrefix(strings.ToLower(FormatCell(v)), p)
	})
}

// EqualFold is a case-insensitive equality match.
func (c *Column) EqualFold(s string) *Column {
	return c.mask(func(v any) bool { return strings.EqualFold(FormatCell(v), s) })
}

// IsIn matches cells equal to any of the given values. String values are
// compared case-insensitively against categorical cells.
func (c *Column) IsIn(values ...any) (*Column, error) {
	lits := make([]any, 0, len(values))
	for _, v := range values {
		if col, ok := v.(*Column); ok {
			lits = append(lits, col.Values()...)
			continue
		}
		lits = append(lits, v)
	}
	coerced := make([]any, 0, len(lits))
	for _, v := range lits {
		if v == nil {
			continue
		}
		x, err := c.coerceLiteral(v)
		if err != nil {
			return nil, err
		}
		coerced = append(coerced, x)
	}
	return c.mask(func(v any) bool {
		for _, lit := range coerced {
			if s, ok := lit.(string); ok {
				if strings.EqualFold(FormatCell(v), s) {
					return true
				}
				continue
			}
			if CompareCells(v, lit) == 0 {
				return true
			}
		}
		return false
	}), nil
}

// Between matches lo <= cell <= hi.
func (c *Column) Between(lo, hi any) (*Column, error) {
	l, err := c.coerceLiteral(lo)
	if err != nil {
		return nil, err
	}
	h, err := c.coerceLiteral(hi)
	if err != nil {
		return nil, err
	}
	return c.mask(func(v any) bool {
		return CompareCells(v, l) >= 0 && CompareCells(v, h) <= 0
	}), nil
}

// IsNull matches missing cells.
func (c *Column) IsNull() *Column {
	cells := make([]any, len(c.cells))
	for i, v := range c.cells {
		cells[i] = v == nil
	}
	return NewColumn(c.name, KindOther, cells)
}

// NotNull matches present cells.
func (c *Column) NotNull() *Column {
	return c.mask(func(any) bool { return true })
}

// ── Mask logic ──────────────────────────────────────────────────────────────

func combine(a, b *Column, f func(x, y bool) bool) (*Column, error) {
	if a.Len() != b.Len() {
		return nil, fmt.Errorf("cannot combine masks of %d and %d rows", a.Len(), b.Len())
	}
	cells := make([]any, a.Len())
	for i := range cells {
		x, ok1 := a.cells[i].(bool)
		y, ok2 := b.cells[i].(bool)
		if (a.cells[i] != nil && !ok1) || (b.cells[i] != nil && !ok2) {
			return nil, fmt.Errorf("logical operators need boolean masks")
		}
		cells[i] = f(x, y)
	}
	return NewColumn(a.name, KindOther, cells), nil
}

// And is the row-wise conjunction of two masks.
func And(a, b *Column) (*Column, error) {
	return combine(a, b, func(x, y bool) bool { return x && y })
}

// Or is the row-wise disjunction of two masks.
func Or(a, b *Column) (*Column, error) {
	return combine(a, b, func(x, y bool) bool { return x || y })
}

// Not negates a mask. Missing cells stay false.
func Not(a *Column) (*Column, error) {
	cells := make([]any, a.Len())
	for i, v := range a.cells {
		switch b := v.(type) {
		case bool:
			cells[i] = !b
		case nil:
			cells[i] = false
		default:
			return nil, fmt.Errorf("logical not needs a boolean mask")
		}
	}
	return NewColumn(a.name, KindOther, cells), nil
}
