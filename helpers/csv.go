package helpers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/schema"
)

// ============================================================================
// CSV HELPER — Parses CSV data into an engine.Dataset
// ============================================================================
// This is the ingestion boundary: after it, every column has a kind and
// typed cells. Missing tokens become nil, numeric and date text is parsed,
// all-missing rows are dropped. Column names keep their original spelling.
// ============================================================================

// CSVOptions controls parsing.
type CSVOptions struct {
	Delimiter rune // 0 = detect from the header line (',', ';', '\t', '|')
	MaxRows   int  // 0 = no limit
}

// ParseCSVFile reads and parses a CSV file from disk.
func ParseCSVFile(path string, opts CSVOptions) (*engine.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseCSV(data, opts)
}

// ParseCSVReader parses CSV from a reader.
func ParseCSVReader(r io.Reader, opts CSVOptions) (*engine.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return ParseCSV(data, opts)
}

// ParseCSV parses CSV bytes into a typed Dataset.
func ParseCSV(data []byte, opts CSVOptions) (*engine.Dataset, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("CSV has no content: %w", engine.ErrEmptyDataset)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = opts.Delimiter
	if reader.Comma == 0 {
		reader.Comma = detectDelimiter(data)
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	names := uniqueHeaders(header)

	// Read rows, column-major
	raw := make([][]string, len(names))
	rows := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", rows+2, err)
		}
		for i := range names {
			val := ""
			if i < len(row) {
				val = strings.TrimSpace(row[i])
			}
			raw[i] = append(raw[i], val)
		}
		rows++
		if opts.MaxRows > 0 && rows >= opts.MaxRows {
			break
		}
	}

	cols := make([]*engine.Column, len(names))
	for i, name := range names {
		cols[i] = typedColumn(name, raw[i])
	}

	d, err := engine.NewDataset(cols...)
	if err != nil {
		return nil, err
	}
	d, err = dropEmptyRows(d)
	if err != nil {
		return nil, err
	}
	if d.Empty() {
		return nil, fmt.Errorf("CSV has no data rows: %w", engine.ErrEmptyDataset)
	}
	return d, nil
}

// typedColumn converts raw text into cells of the inferred kind. Values
// that do not parse become missing.
func typedColumn(name string, values []string) *engine.Column {
	kind := schema.InferKind(name, values)
	cells := make([]any, len(values))
	for i, v := range values {
		if engine.IsNullToken(v) {
			continue
		}
		switch kind {
		case engine.KindNumeric:
			if f, ok := engine.ParseNumber(v); ok {
				cells[i] = f
			}
		case engine.KindDatetime:
			if t, ok := engine.ParseTime(v); ok {
				cells[i] = t
			}
		case engine.KindOther:
			if b, ok := engine.ParseBool(v); ok {
				cells[i] = b
			}
		default:
			cells[i] = v
		}
	}
	return engine.NewColumn(name, kind, cells)
}

func dropEmptyRows(d *engine.Dataset) (*engine.Dataset, error) {
	keep := make([]bool, d.NumRows())
	for _, c := range d.Columns() {
		for i := range keep {
			if c.Value(i) != nil {
				keep[i] = true
			}
		}
	}
	return d.Where(engine.BoolColumn("keep", keep...))
}

// uniqueHeaders keeps names verbatim, fills blanks with column_N and
// suffixes duplicates with .1, .2, ...
func uniqueHeaders(header []string) []string {
	used := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// detectDelimiter picks the most frequent candidate separator in the
// header line.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
