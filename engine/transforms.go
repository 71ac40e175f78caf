package engine

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ============================================================================
// TRANSFORMS — Element-wise arithmetic and cell conversions
// ============================================================================

// ArithOp is a binary arithmetic operator.
type ArithOp string

const (
	OpAdd ArithOp = "+"
	OpSub ArithOp = "-"
	OpMul ArithOp = "*"
	OpDiv ArithOp = "/"
	OpMod ArithOp = "%"
)

// MaxTextBytes bounds the text a single concatenation may produce, for a
// scalar or across all cells of a column.
const MaxTextBytes = 8 << 20

func applyFloat(op ArithOp, x, y float64) (float64, bool) {
	switch op {
	case OpAdd:
		return x + y, true
	case OpSub:
		return x - y, true
	case OpMul:
		return x * y, true
	case OpDiv:
		if y == 0 {
			return 0, false
		}
		return x / y, true
	case OpMod:
		if y == 0 {
			return 0, false
		}
		return math.Mod(x, y), true
	}
	return 0, false
}

// Arith applies op to two scalars, a column and a scalar, or two columns of
// equal length. Numbers combine arithmetically; strings only concatenate.
// Division by zero and non-finite results yield a missing cell inside
// columns; division by zero is an error for scalars.
func Arith(op ArithOp, a, b any) (any, error) {
	v, err := arith(op, a, b)
	if err != nil {
		return nil, err
	}
	if c, ok := v.(*Column); ok {
		if n := c.textBytes(); n > MaxTextBytes {
			return nil, textTooLong(n)
		}
	}
	return v, nil
}

func arith(op ArithOp, a, b any) (any, error) {
	ca, aIsCol := a.(*Column)
	cb, bIsCol := b.(*Column)
	switch {
	case aIsCol && bIsCol:
		if ca.Len() != cb.Len() {
			return nil, fmt.Errorf("cannot combine %q (%d rows) with %q (%d rows)", ca.name, ca.Len(), cb.name, cb.Len())
		}
		cells := make([]any, ca.Len())
		for i := range cells {
			v, err := arithCell(op, ca.cells[i], cb.cells[i])
			if err != nil {
				return nil, err
			}
			cells[i] = v
		}
		return InferColumn(ca.name, cells), nil
	case aIsCol:
		return ca.mapCells(func(v any) (any, error) { return arithCell(op, v, b) })
	case bIsCol:
		return cb.mapCells(func(v any) (any, error) { return arithCell(op, a, v) })
	}
	x, xok := a.(float64)
	y, yok := b.(float64)
	if xok && yok {
		r, ok := applyFloat(op, x, y)
		if !ok {
			return nil, fmt.Errorf("division by zero")
		}
		return r, nil
	}
	sx, sok := a.(string)
	sy, tok := b.(string)
	if sok && tok && op == OpAdd {
		if n := len(sx) + len(sy); n > MaxTextBytes {
			return nil, textTooLong(n)
		}
		return sx + sy, nil
	}
	return nil, fmt.Errorf("unsupported operands for %s: %s and %s", op, typeName(a), typeName(b))
}

func arithCell(op ArithOp, a, b any) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	x, xok := a.(float64)
	y, yok := b.(float64)
	if xok && yok {
		r, ok := applyFloat(op, x, y)
		if !ok || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, nil
		}
		return r, nil
	}
	sx, sok := a.(string)
	sy, tok := b.(string)
	if sok && tok && op == OpAdd {
		if n := len(sx) + len(sy); n > MaxTextBytes {
			return nil, textTooLong(n)
		}
		return sx + sy, nil
	}
	return nil, fmt.Errorf("unsupported operands for %s: %s and %s", op, typeName(a), typeName(b))
}

func textTooLong(n int) error {
	return fmt.Errorf("string too long (%d bytes, limit %d)", n, MaxTextBytes)
}

// textBytes sums the length of the text cells.
func (c *Column) textBytes() int {
	n := 0
	for _, v := range c.cells {
		if s, ok := v.(string); ok {
			n += len(s)
		}
	}
	return n
}

// Negate flips the sign of a number or numeric column.
func Negate(v any) (any, error) {
	return Arith(OpMul, v, -1.0)
}

func (c *Column) mapCells(f func(v any) (any, error)) (*Column, error) {
	cells := make([]any, len(c.cells))
	for i, v := range c.cells {
		out, err := f(v)
		if err != nil {
			return nil, err
		}
		cells[i] = out
	}
	return InferColumn(c.name, cells), nil
}

func (c *Column) mapStrings(f func(string) string) *Column {
	cells := make([]any, len(c.cells))
	for i, v := range c.cells {
		if s, ok := v.(string); ok {
			cells[i] = f(s)
		} else {
			cells[i] = v
		}
	}
	return NewColumn(c.name, c.kind, cells)
}

// Lower lower-cases text cells.
func (c *Column) Lower() *Column { return c.mapStrings(strings.ToLower) }

// Upper upper-cases text cells.
func (c *Column) Upper() *Column { return c.mapStrings(strings.ToUpper) }

// Strip trims surrounding whitespace from text cells.
func (c *Column) Strip() *Column { return c.mapStrings(strings.TrimSpace) }

// AsText renders every present cell as text.
func (c *Column) AsText() *Column {
	cells := make([]any, len(c.cells))
	for i, v := range c.cells {
		if v != nil {
			cells[i] = FormatCell(v)
		}
	}
	return NewColumn(c.name, KindCategorical, cells)
}

// Round rounds numeric cells to n decimals.
func (c *Column) Round(n int) (*Column, error) {
	if err := c.requireNumeric("round"); err != nil {
		return nil, err
	}
	p := math.Pow(10, float64(n))
	return c.mapCells(func(v any) (any, error) {
		if f, ok := v.(float64); ok {
			return math.Round(f*p) / p, nil
		}
		return v, nil
	})
}

// Abs takes absolute values of numeric cells.
func (c *Column) Abs() (*Column, error) {
	if err := c.requireNumeric("abs"); err != nil {
		return nil, err
	}
	return c.mapCells(func(v any) (any, error) {
		if f, ok := v.(float64); ok {
			return math.Abs(f), nil
		}
		return v, nil
	})
}

// FillNA replaces missing cells with v.
func (c *Column) FillNA(v any) (*Column, error) {
	if v == nil {
		return c, nil
	}
	lit, err := c.coerceLiteral(v)
	if err != nil {
		return nil, err
	}
	return c.mapCells(func(x any) (any, error) {
		if x == nil {
			return lit, nil
		}
		return x, nil
	})
}

func (c *Column) datePart(part string, f func(time.Time) int) (*Column, error) {
	if c.kind != KindDatetime {
		return nil, fmt.Errorf("%s requires a datetime column, %q is %s", part, c.name, c.kind)
	}
	cells := make([]any, len(c.cells))
	for i, v := range c.cells {
		if t, ok := v.(time.Time); ok {
			cells[i] = float64(f(t))
		}
	}
	return NewColumn(c.name, KindNumeric, cells), nil
}

// Year extracts the calendar year from datetime cells.
func (c *Column) Year() (*Column, error) {
	return c.datePart("year", func(t time.Time) int { return t.Year() })
}

// Month extracts the month number (1-12) from datetime cells.
func (c *Column) Month() (*Column, error) {
	return c.datePart("month", func(t time.Time) int { return int(t.Month()) })
}

// Day extracts the day of month from datetime cells.
func (c *Column) Day() (*Column, error) {
	return c.datePart("day", func(t time.Time) int { return t.Day() })
}

// Period truncates datetime cells to "2006-01" text, for monthly grouping.
func (c *Column) Period() (*Column, error) {
	if c.kind != KindDatetime {
		return nil, fmt.Errorf("period requires a datetime column, %q is %s", c.name, c.kind)
	}
	cells := make([]any, len(c.cells))
	for i, v := range c.cells {
		if t, ok := v.(time.Time); ok {
			cells[i] = t.Format("2006-01")
		}
	}
	return NewColumn(c.name, KindCategorical, cells), nil
}

// Broadcast turns a scalar into a constant column of n rows.
func Broadcast(name string, v any, n int) *Column {
	cells := make([]any, n)
	for i := range cells {
		cells[i] = v
	}
	return InferColumn(name, cells)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case time.Time:
		return "date"
	case *Column:
		return "column"
	case *Dataset:
		return "dataset"
	case *Grouped:
		return "grouped dataset"
	}
	return fmt.Sprintf("%T", v)
}

// TypeName is the user-facing name of a value's type.
func TypeName(v any) string { return typeName(v) }
