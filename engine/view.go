package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ============================================================================
// ROW VIEWS — Index-based selection over columns
// ============================================================================
// Filtering, slicing and sorting all reduce to a list of row indexes that is
// gathered into fresh cell slices. The parent's cells are never modified.
// ============================================================================

// Take gathers the cells at idx into a new column.
func (c *Column) Take(idx []int) *Column {
	cells := make([]any, len(idx))
	for i, j := range idx {
		cells[i] = c.cells[j]
	}
	return &Column{name: c.name, kind: c.kind, cells: cells}
}

// Take gathers the rows at idx into a new dataset.
func (d *Dataset) Take(idx []int) *Dataset {
	out := &Dataset{
		cols:  make([]*Column, len(d.cols)),
		index: make(map[string]int, len(d.cols)),
		rows:  len(idx),
	}
	for i, c := range d.cols {
		out.cols[i] = c.Take(idx)
		out.index[c.name] = i
	}
	return out
}

// maskIndexes converts a boolean mask into the row indexes it selects.
// Missing mask cells select nothing.
func maskIndexes(mask *Column, rows int) ([]int, error) {
	if mask.Len() != rows {
		return nil, fmt.Errorf("mask has %d rows, want %d", mask.Len(), rows)
	}
	idx := make([]int, 0, rows)
	for i, v := range mask.cells {
		switch b := v.(type) {
		case bool:
			if b {
				idx = append(idx, i)
			}
		case nil:
		default:
			return nil, fmt.Errorf("column %q is not a boolean mask", mask.name)
		}
	}
	return idx, nil
}

// Where keeps the rows selected by a boolean mask.
func (d *Dataset) Where(mask *Column) (*Dataset, error) {
	idx, err := maskIndexes(mask, d.rows)
	if err != nil {
		return nil, err
	}
	return d.Take(idx), nil
}

// Where keeps the cells selected by a boolean mask.
func (c *Column) Where(mask *Column) (*Column, error) {
	idx, err := maskIndexes(mask, c.Len())
	if err != nil {
		return nil, err
	}
	return c.Take(idx), nil
}

func headIndexes(total, n int) []int {
	if n < 0 {
		n = 0
	}
	if n > total {
		n = total
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func tailIndexes(total, n int) []int {
	idx := headIndexes(total, n)
	off := total - len(idx)
	for i := range idx {
		idx[i] += off
	}
	return idx
}

// Head returns the first n rows.
func (d *Dataset) Head(n int) *Dataset { return d.Take(headIndexes(d.rows, n)) }

// Tail returns the last n rows.
func (d *Dataset) Tail(n int) *Dataset { return d.Take(tailIndexes(d.rows, n)) }

// Head returns the first n cells.
func (c *Column) Head(n int) *Column { return c.Take(headIndexes(c.Len(), n)) }

// Tail returns the last n cells.
func (c *Column) Tail(n int) *Column { return c.Take(tailIndexes(c.Len(), n)) }

// ── Sorting ─────────────────────────────────────────────────────────────────

// CompareCells orders two cells of the same kind. Missing values sort last
// regardless of direction, so the caller flips only non-nil comparisons.
func CompareCells(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(FormatCell(a), FormatCell(b))
}

func sortedIndexes(keys []*Column, desc bool) []int {
	n := 0
	if len(keys) > 0 {
		n = keys[0].Len()
	}
	idx := headIndexes(n, n)
	sort.SliceStable(idx, func(i, j int) bool {
		for _, k := range keys {
			a, b := k.cells[idx[i]], k.cells[idx[j]]
			switch {
			case a == nil && b == nil:
				continue
			case a == nil:
				return false
			case b == nil:
				return true
			}
			cmp := CompareCells(a, b)
			if cmp == 0 {
				continue
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return idx
}

// SortBy orders rows by the named columns. The sort is stable.
func (d *Dataset) SortBy(desc bool, names ...string) (*Dataset, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("sort needs at least one column")
	}
	keys := make([]*Column, len(names))
	for i, n := range names {
		c, err := d.Col(n)
		if err != nil {
			return nil, err
		}
		keys[i] = c
	}
	return d.Take(sortedIndexes(keys, desc)), nil
}

// Sorted returns the cells in order.
func (c *Column) Sorted(desc bool) *Column {
	return c.Take(sortedIndexes([]*Column{c}, desc))
}

// DropNA removes rows with a missing value in any of the named columns, or
// in any column when names is empty.
func (d *Dataset) DropNA(names ...string) (*Dataset, error) {
	keys := d.cols
	if len(names) > 0 {
		keys = make([]*Column, len(names))
		for i, n := range names {
			c, err := d.Col(n)
			if err != nil {
				return nil, err
			}
			keys[i] = c
		}
	}
	idx := make([]int, 0, d.rows)
	for i := 0; i < d.rows; i++ {
		keep := true
		for _, k := range keys {
			if k.cells[i] == nil {
				keep = false
				break
			}
		}
		if keep {
			idx = append(idx, i)
		}
	}
	return d.Take(idx), nil
}

// DropNA removes missing cells.
func (c *Column) DropNA() *Column {
	out, _ := c.Where(c.NotNull())
	return out
}
