package engine

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"text/tabwriter"
	"time"
)

// ============================================================================
// TABLE BUILDER — Dataset/Column → render-ready Table
// ============================================================================
// Float cells are rounded to 2 decimals and dates become ISO text. Missing
// cells, NaN and infinities are nil. Nothing is truncated; renderers decide
// how much to show.
// ============================================================================

// BuildTable converts a dataset into a Table.
func BuildTable(d *Dataset) *Table {
	t := &Table{
		Columns: make([]TableColumn, len(d.cols)),
		Rows:    make([][]any, d.rows),
	}
	for j, c := range d.cols {
		t.Columns[j] = TableColumn{Name: c.name, Kind: c.kind}
	}
	for i := 0; i < d.rows; i++ {
		row := make([]any, len(d.cols))
		for j, c := range d.cols {
			row[j] = tableCell(c.cells[i])
		}
		t.Rows[i] = row
	}
	return t
}

// ColumnTable converts a single column into a one-column Table.
func ColumnTable(c *Column) *Table {
	name := c.name
	if name == "" {
		name = "value"
	}
	d, _ := NewDataset(c.Renamed(name))
	return BuildTable(d)
}

func tableCell(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return RoundTo2(x)
	case time.Time:
		return FormatTime(x)
	default:
		return v
	}
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// Cell renders one cell as text.
func (t *Table) Cell(i, j int) string {
	if i < 0 || i >= len(t.Rows) || j < 0 || j >= len(t.Rows[i]) {
		return ""
	}
	return FormatCell(t.Rows[i][j])
}

// Header returns the column names.
func (t *Table) Header() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Text renders the table as aligned plain text, showing at most maxRows
// rows (0 = all) and noting how many were left out.
func (t *Table) Text(maxRows int) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.Header(), "\t"))
	n := len(t.Rows)
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	for i := 0; i < n; i++ {
		cells := make([]string, len(t.Columns))
		for j := range t.Columns {
			cells[j] = t.Cell(i, j)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	if n < len(t.Rows) {
		fmt.Fprintf(&buf, "... %s more rows\n", FormatInt(len(t.Rows)-n))
	}
	return buf.String()
}
