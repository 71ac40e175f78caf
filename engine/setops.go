package engine

import (
	"fmt"
	"strconv"
	"time"
)

// ============================================================================
// SET OPERATIONS — Distinct values across columns
// ============================================================================
// Results preserve first-appearance order and never contain missing cells.
// ============================================================================

// cellKey is a type-tagged identity for a cell, so 1 and "1" stay distinct.
func cellKey(v any) string {
	switch x := v.(type) {
	case float64:
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "s:" + x
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case bool:
		return "b:" + strconv.FormatBool(x)
	default:
		return fmt.Sprintf("?:%v", x)
	}
}

func keySet(c *Column) map[string]bool {
	set := make(map[string]bool, c.Len())
	for _, v := range c.cells {
		if v != nil {
			set[cellKey(v)] = true
		}
	}
	return set
}

func (c *Column) distinct(keep func(key string) bool) *Column {
	seen := make(map[string]bool)
	var cells []any
	for _, v := range c.cells {
		if v == nil {
			continue
		}
		k := cellKey(v)
		if seen[k] || !keep(k) {
			continue
		}
		seen[k] = true
		cells = append(cells, v)
	}
	return NewColumn(c.name, c.kind, cells)
}

// Unique returns the distinct present cells.
func (c *Column) Unique() *Column {
	return c.distinct(func(string) bool { return true })
}

// Intersect returns distinct cells of c that also appear in other.
func (c *Column) Intersect(other *Column) *Column {
	set := keySet(other)
	return c.distinct(func(k string) bool { return set[k] })
}

// Difference returns distinct cells of c that do not appear in other.
func (c *Column) Difference(other *Column) *Column {
	set := keySet(other)
	return c.distinct(func(k string) bool { return !set[k] })
}

// Union returns the distinct cells of c followed by new cells of other.
func (c *Column) Union(other *Column) *Column {
	cells := make([]any, 0, c.Len()+other.Len())
	cells = append(cells, c.cells...)
	cells = append(cells, other.cells...)
	kind := c.kind
	if other.kind != kind && other.Count() > 0 && c.Count() > 0 {
		kind = KindOther
	}
	return NewColumn(c.name, kind, cells).Unique()
}

// Unique returns the distinct rows.
func (d *Dataset) Unique() *Dataset {
	seen := make(map[string]bool)
	var idx []int
	for r := 0; r < d.rows; r++ {
		k := ""
		for _, c := range d.cols {
			if v := c.cells[r]; v != nil {
				k += cellKey(v)
			}
			k += "\x00"
		}
		if !seen[k] {
			seen[k] = true
			idx = append(idx, r)
		}
	}
	return d.Take(idx)
}
