package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// DESCRIBER — Dataset → bounded Description
// ============================================================================

// Describe summarizes d without ever including the full dataset. Column
// order and names match d exactly.
func Describe(d *engine.Dataset, opts DescribeOptions) *Description {
	opts = opts.normalized()
	desc := &Description{Rows: d.NumRows()}

	for _, c := range d.Columns() {
		desc.Columns = append(desc.Columns, ColumnInfo{
			Name:    c.Name(),
			Kind:    c.Kind(),
			NonNull: c.Count(),
			Nulls:   c.NullCount(),
			Unique:  c.NUnique(),
			Samples: collectSamples(c, opts.MaxSamples, opts.MaxCellWidth),
		})
	}

	head := d.Head(opts.SampleRows)
	for i := 0; i < head.NumRows(); i++ {
		row := head.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = truncate(engine.FormatCell(v), opts.MaxCellWidth)
		}
		desc.SampleRows = append(desc.SampleRows, cells)
	}
	return desc
}

// collectSamples returns up to limit distinct values, sorted for deterministic
// output.
func collectSamples(c *engine.Column, limit, width int) []string {
	uniq := c.Unique()
	samples := make([]string, 0, uniq.Len())
	for _, v := range uniq.Values() {
		samples = append(samples, truncate(engine.FormatCell(v), width))
	}
	sort.Strings(samples)
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return samples
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// Text renders the description as the prompt's schema block.
func (d *Description) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "The dataset has %s rows and %d columns.\n", engine.FormatInt(d.Rows), len(d.Columns))
	b.WriteString("COLUMNS (exact names, in order):\n")
	for _, c := range d.Columns {
		fmt.Fprintf(&b, "  - %q (%s", c.Name, c.Kind)
		if c.Nulls > 0 {
			fmt.Fprintf(&b, ", %d missing", c.Nulls)
		}
		if c.Kind == engine.KindCategorical {
			fmt.Fprintf(&b, ", %d distinct", c.Unique)
		}
		b.WriteString(")")
		if len(c.Samples) > 0 {
			fmt.Fprintf(&b, " e.g. %s", strings.Join(quoteAll(c.Samples), ", "))
		}
		b.WriteString("\n")
	}

	if len(d.SampleRows) > 0 {
		fmt.Fprintf(&b, "\nFIRST %d ROWS:\n", len(d.SampleRows))
		b.WriteString(strings.Join(d.Names(), " | "))
		b.WriteString("\n")
		for _, row := range d.SampleRows {
			b.WriteString(strings.Join(row, " | "))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Summary returns the per-column overview shown when a dataset is loaded:
// one row per column with its kind and missing count.
func (d *Description) Summary() *engine.Table {
	t := &engine.Table{
		Columns: []engine.TableColumn{
			{Name: "column", Kind: engine.KindCategorical},
			{Name: "kind", Kind: engine.KindCategorical},
			{Name: "missing", Kind: engine.KindNumeric},
			{Name: "distinct", Kind: engine.KindNumeric},
		},
	}
	for _, c := range d.Columns {
		t.Rows = append(t.Rows, []any{c.Name, string(c.Kind), float64(c.Nulls), float64(c.Unique)})
	}
	return t
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
