package schema

import "github.com/spektr-org/chatyfile/engine"

// ============================================================================
// SCHEMA — Describes the shape of a dataset for the prompt builder
// ============================================================================
// A Description is derived from the live Dataset on every call and is never
// cached. Column names are carried verbatim: the model must see exactly the
// names the sandbox will resolve.
// ============================================================================

// Description is a bounded, model-readable summary of a dataset.
type Description struct {
	Rows       int          `json:"rows"`
	Columns    []ColumnInfo `json:"columns"`
	SampleRows [][]string   `json:"sampleRows"`
}

// ColumnInfo describes one column.
type ColumnInfo struct {
	Name    string            `json:"name"`
	Kind    engine.ColumnKind `json:"kind"`
	NonNull int               `json:"nonNull"`
	Nulls   int               `json:"nulls"`
	Unique  int               `json:"unique"`
	Samples []string          `json:"samples"`
}

// DescribeOptions bounds how much of the dataset a Description shows.
type DescribeOptions struct {
	SampleRows   int // rows shown verbatim (default 5, max 20)
	MaxCellWidth int // runes per cell before truncation (default 40)
	MaxSamples   int // distinct sample values per column (default 5)
}

// DefaultDescribeOptions returns sensible defaults.
func DefaultDescribeOptions() DescribeOptions {
	return DescribeOptions{
		SampleRows:   5,
		MaxCellWidth: 40,
		MaxSamples:   5,
	}
}

func (o DescribeOptions) normalized() DescribeOptions {
	def := DefaultDescribeOptions()
	if o.SampleRows <= 0 {
		o.SampleRows = def.SampleRows
	}
	if o.SampleRows > 20 {
		o.SampleRows = 20
	}
	if o.MaxCellWidth <= 0 {
		o.MaxCellWidth = def.MaxCellWidth
	}
	if o.MaxSamples <= 0 {
		o.MaxSamples = def.MaxSamples
	}
	return o
}

// Names returns the column names in dataset order.
func (d *Description) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// ColumnsOfKind returns the names of columns with the given kind.
func (d *Description) ColumnsOfKind(kind engine.ColumnKind) []string {
	var out []string
	for _, c := range d.Columns {
		if c.Kind == kind {
			out = append(out, c.Name)
		}
	}
	return out
}
