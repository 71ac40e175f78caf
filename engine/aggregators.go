package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ============================================================================
// AGGREGATORS — Column reductions and group-by
// ============================================================================
// Reductions skip missing cells. Numeric statistics delegate to gonum.
// ============================================================================

// Sum adds the numeric cells. On a mask it counts the true cells. An empty
// column sums to 0.
func (c *Column) Sum() (float64, error) {
	xs, err := c.numbers("sum")
	if err != nil {
		return 0, err
	}
	return floats.Sum(xs), nil
}

// Mean averages the numeric cells. On a mask it is the share of true cells.
func (c *Column) Mean() (float64, error) {
	xs, err := c.numbers("mean")
	if err != nil {
		return 0, err
	}
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	return stat.Mean(xs, nil), nil
}

// numbers returns the non-missing cells as floats. Boolean cells count as
// 1 and 0 so masks can be summed and averaged.
func (c *Column) numbers(op string) ([]float64, error) {
	if c.kind == KindNumeric {
		return c.Floats(), nil
	}
	out := make([]float64, 0, len(c.cells))
	for _, v := range c.cells {
		switch x := v.(type) {
		case nil:
		case bool:
			if x {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		default:
			return nil, c.requireNumeric(op)
		}
	}
	return out, nil
}

// Median returns the middle value, averaging the two central values when the
// count is even.
func (c *Column) Median() (float64, error) {
	if err := c.requireNumeric("median"); err != nil {
		return 0, err
	}
	xs := c.Floats()
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	sort.Float64s(xs)
	mid := len(xs) / 2
	if len(xs)%2 == 1 {
		return xs[mid], nil
	}
	return (xs[mid-1] + xs[mid]) / 2, nil
}

// Std is the sample standard deviation.
func (c *Column) Std() (float64, error) {
	if err := c.requireNumeric("std"); err != nil {
		return 0, err
	}
	xs := c.Floats()
	if len(xs) < 2 {
		return math.NaN(), nil
	}
	return stat.StdDev(xs, nil), nil
}

// Quantile returns the p-quantile (0 <= p <= 1) of the numeric cells.
func (c *Column) Quantile(p float64) (float64, error) {
	if err := c.requireNumeric("quantile"); err != nil {
		return 0, err
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("quantile %v outside [0, 1]", p)
	}
	xs := c.Floats()
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	sort.Float64s(xs)
	return stat.Quantile(p, stat.Empirical, xs, nil), nil
}

// Min returns the smallest present cell. Works for any orderable kind.
func (c *Column) Min() (any, error) { return c.extreme(-1) }

// Max returns the largest present cell.
func (c *Column) Max() (any, error) { return c.extreme(1) }

func (c *Column) extreme(sign int) (any, error) {
	var best any
	for _, v := range c.cells {
		if v == nil {
			continue
		}
		if best == nil || CompareCells(v, best)*sign > 0 {
			best = v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("column %q has no values", c.name)
	}
	return best, nil
}

// Count returns the number of present cells.
func (c *Column) Count() int { return c.Len() - c.NullCount() }

// NUnique returns the number of distinct present cells.
func (c *Column) NUnique() int { return c.Unique().Len() }

// ValueCounts returns a two-column dataset (value, count) ordered by
// descending count, ties in first-appearance order.
func (c *Column) ValueCounts() *Dataset {
	order, counts := c.tally()
	idx := headIndexes(len(order), len(order))
	sort.SliceStable(idx, func(i, j int) bool { return counts[idx[i]] > counts[idx[j]] })
	vals := make([]any, len(idx))
	ns := make([]any, len(idx))
	for i, j := range idx {
		vals[i] = order[j]
		ns[i] = float64(counts[j])
	}
	return MustDataset(NewColumn(c.name, c.kind, vals), NewColumn("count", KindNumeric, ns))
}

func (c *Column) tally() ([]any, []int) {
	pos := make(map[string]int)
	var order []any
	var counts []int
	for _, v := range c.cells {
		if v == nil {
			continue
		}
		k := cellKey(v)
		i, ok := pos[k]
		if !ok {
			i = len(order)
			pos[k] = i
			order = append(order, v)
			counts = append(counts, 0)
		}
		counts[i]++
	}
	return order, counts
}

// ============================================================================
// GROUP BY
// ============================================================================

// Grouped is the intermediate result of Dataset.GroupBy. It is not itself a
// renderable answer; call an aggregation to get a Dataset.
type Grouped struct {
	src    *Dataset
	keys   []string
	groups [][]int // row indexes per group, first-appearance order
}

// GroupBy partitions rows by the distinct values of the named columns.
// Rows with a missing key are dropped.
func (d *Dataset) GroupBy(names ...string) (*Grouped, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("group by needs at least one column")
	}
	keyCols := make([]*Column, len(names))
	for i, n := range names {
		c, err := d.Col(n)
		if err != nil {
			return nil, err
		}
		keyCols[i] = c
	}
	pos := make(map[string]int)
	var groups [][]int
	for r := 0; r < d.rows; r++ {
		key := ""
		missing := false
		for _, kc := range keyCols {
			v := kc.cells[r]
			if v == nil {
				missing = true
				break
			}
			key += cellKey(v) + "\x00"
		}
		if missing {
			continue
		}
		g, ok := pos[key]
		if !ok {
			g = len(groups)
			pos[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], r)
	}
	return &Grouped{src: d, keys: names, groups: groups}, nil
}

// Keys returns the grouping column names.
func (g *Grouped) Keys() []string { return append([]string(nil), g.keys...) }

// NumGroups returns the number of groups.
func (g *Grouped) NumGroups() int { return len(g.groups) }

func (g *Grouped) keyColumns() []*Column {
	first := make([]int, len(g.groups))
	for i, rows := range g.groups {
		first[i] = rows[0]
	}
	out := make([]*Column, len(g.keys))
	for i, k := range g.keys {
		c, _ := g.src.Column(k)
		out[i] = c.Take(first)
	}
	return out
}

// Count returns the group sizes in a "count" column.
func (g *Grouped) Count() *Dataset {
	cells := make([]any, len(g.groups))
	for i, rows := range g.groups {
		cells[i] = float64(len(rows))
	}
	cols := append(g.keyColumns(), NewColumn("count", KindNumeric, cells))
	d, _ := NewDataset(cols...)
	return d
}

// Agg reduces one column per group. The output column keeps the reduced
// column's name.
func (g *Grouped) Agg(column string, fn func(*Column) (any, error)) (*Dataset, error) {
	src, err := g.src.Col(column)
	if err != nil {
		return nil, err
	}
	cells := make([]any, len(g.groups))
	for i, rows := range g.groups {
		v, err := fn(src.Take(rows))
		if err != nil {
			return nil, err
		}
		if f, ok := v.(float64); ok && math.IsNaN(f) {
			v = nil
		}
		cells[i] = v
	}
	name := column
	for _, k := range g.keys {
		if k == column {
			name = column + "_agg"
		}
	}
	cols := append(g.keyColumns(), InferColumn(name, cells))
	return NewDataset(cols...)
}

func (g *Grouped) Sum(column string) (*Dataset, error) {
	return g.Agg(column, func(c *Column) (any, error) { return c.Sum() })
}

func (g *Grouped) Mean(column string) (*Dataset, error) {
	return g.Agg(column, func(c *Column) (any, error) { return c.Mean() })
}

func (g *Grouped) Median(column string) (*Dataset, error) {
	return g.Agg(column, func(c *Column) (any, error) { return c.Median() })
}

func (g *Grouped) Min(column string) (*Dataset, error) {
	return g.Agg(column, func(c *Column) (any, error) { return c.Min() })
}

func (g *Grouped) Max(column string) (*Dataset, error) {
	return g.Agg(column, func(c *Column) (any, error) { return c.Max() })
}

func (g *Grouped) NUnique(column string) (*Dataset, error) {
	return g.Agg(column, func(c *Column) (any, error) { return float64(c.NUnique()), nil })
}

// ============================================================================
// DESCRIBE
// ============================================================================

// Describe summarizes every numeric column: count, mean, std, min, median
// and max, one row per column.
func (d *Dataset) Describe() (*Dataset, error) {
	stats := []string{"count", "mean", "std", "min", "50%", "max"}
	names := []any{}
	cols := make([][]any, len(stats))
	for _, c := range d.cols {
		if c.kind != KindNumeric {
			continue
		}
		names = append(names, c.name)
		mean, _ := c.Mean()
		std, _ := c.Std()
		med, _ := c.Median()
		lo, _ := c.Min()
		hi, _ := c.Max()
		vals := []any{float64(c.Count()), mean, std, lo, med, hi}
		for i, v := range vals {
			if f, ok := v.(float64); ok && math.IsNaN(f) {
				v = nil
			}
			cols[i] = append(cols[i], v)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("describe found no numeric columns")
	}
	out := []*Column{NewColumn("column", KindCategorical, names)}
	for i, s := range stats {
		out = append(out, NewColumn(s, KindNumeric, cols[i]))
	}
	return NewDataset(out...)
}

// ============================================================================
// FORMATTING HELPERS
// ============================================================================

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatInt(n/1000), n%1000)
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
