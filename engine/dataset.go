package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// DATASET — Ordered, uniquely named columns of equal length
// ============================================================================

// ErrEmptyDataset is returned when a dataset has no columns or no rows.
var ErrEmptyDataset = errors.New("dataset is empty")

// Dataset is an immutable-by-convention columnar table. Methods that change
// shape return a new Dataset; Set only swaps column pointers on the receiver
// and never touches cell storage, so a Clone can be modified freely.
type Dataset struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// NewDataset validates and assembles columns.
func NewDataset(cols ...*Column) (*Dataset, error) {
	d := &Dataset{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := d.index[c.name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.name)
		}
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.name, c.Len(), d.rows)
		}
		d.index[c.name] = i
		d.cols = append(d.cols, c)
	}
	return d, nil
}

// MustDataset is NewDataset that panics on error. Intended for tests and
// static fixtures.
func MustDataset(cols ...*Column) *Dataset {
	d, err := NewDataset(cols...)
	if err != nil {
		panic(err)
	}
	return d
}

// Clone returns a copy-on-write clone: the column list is copied, cell
// storage is shared.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		cols:  make([]*Column, len(d.cols)),
		index: make(map[string]int, len(d.index)),
		rows:  d.rows,
	}
	copy(out.cols, d.cols)
	for k, v := range d.index {
		out.index[k] = v
	}
	return out
}

func (d *Dataset) NumRows() int { return d.rows }
func (d *Dataset) NumCols() int { return len(d.cols) }

// Empty reports whether the dataset has no columns or no rows.
func (d *Dataset) Empty() bool { return d == nil || len(d.cols) == 0 || d.rows == 0 }

// Names returns column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.name
	}
	return out
}

// Columns returns the columns in order. The slice is a copy.
func (d *Dataset) Columns() []*Column {
	out := make([]*Column, len(d.cols))
	copy(out, d.cols)
	return out
}

// Column looks a column up by exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// Col is Column with a descriptive error that lists the available names.
// A case-insensitive match is suggested but never substituted.
func (d *Dataset) Col(name string) (*Column, error) {
	if c, ok := d.Column(name); ok {
		return c, nil
	}
	for _, c := range d.cols {
		if strings.EqualFold(c.name, name) {
			return nil, fmt.Errorf("no column %q (did you mean %q?)", name, c.name)
		}
	}
	return nil, fmt.Errorf("no column %q; columns are %s", name, quoteList(d.Names()))
}

// Row returns the cells of row i in column order.
func (d *Dataset) Row(i int) []any {
	out := make([]any, len(d.cols))
	for j, c := range d.cols {
		out[j] = c.Value(i)
	}
	return out
}

// Set replaces or appends a column on this dataset only.
func (d *Dataset) Set(c *Column) error {
	if len(d.cols) > 0 && c.Len() != d.rows {
		return fmt.Errorf("column %q has %d rows, want %d", c.name, c.Len(), d.rows)
	}
	if i, ok := d.index[c.name]; ok {
		d.cols[i] = c
		return nil
	}
	if len(d.cols) == 0 {
		d.rows = c.Len()
	}
	d.index[c.name] = len(d.cols)
	d.cols = append(d.cols, c)
	return nil
}

// Select returns a dataset with the named columns in the given order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := d.Col(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewDataset(cols...)
}

// Drop returns a dataset without the named columns.
func (d *Dataset) Drop(names ...string) (*Dataset, error) {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		if _, err := d.Col(n); err != nil {
			return nil, err
		}
		skip[n] = true
	}
	var cols []*Column
	for _, c := range d.cols {
		if !skip[c.name] {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("drop would remove every column")
	}
	return NewDataset(cols...)
}

// Rename returns a dataset with one column renamed.
func (d *Dataset) Rename(from, to string) (*Dataset, error) {
	if _, err := d.Col(from); err != nil {
		return nil, err
	}
	cols := make([]*Column, len(d.cols))
	for i, c := range d.cols {
		if c.name == from {
			c = c.Renamed(to)
		}
		cols[i] = c
	}
	return NewDataset(cols...)
}

func quoteList(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}
