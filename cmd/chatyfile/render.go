package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/session"
)

// ============================================================================
// RENDERING — Turns and results for the terminal, JSON or CSV
// ============================================================================

var (
	accent = lipgloss.Color("#8BC34A")
	muted  = lipgloss.Color("#6a737d")
	danger = lipgloss.Color("#d73a49")

	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	scalarStyle = lipgloss.NewStyle().Bold(true)
	noteStyle   = lipgloss.NewStyle().Foreground(muted).Italic(true)
	codeStyle   = lipgloss.NewStyle().Foreground(muted).Border(lipgloss.NormalBorder(), false, false, false, true).PaddingLeft(1)
	errorStyle  = lipgloss.NewStyle().Foreground(danger)
)

type renderOptions struct {
	format   string // text, plain, json, pretty, csv
	plotOut  string // file a figure is written to
	showCode bool
	maxRows  int
}

// renderTurn writes a turn: the snippet when asked for, then its result.
func renderTurn(w io.Writer, t session.Turn, o renderOptions) error {
	switch o.format {
	case "json", "pretty":
		out, err := writePlot(t.Result, o)
		if err != nil {
			return err
		}
		t.Result = out
		return writeJSON(w, t, o.format)
	}
	if o.showCode && t.Snippet != "" {
		fmt.Fprintln(w, codeStyle.Render(t.Snippet))
	}
	return renderResult(w, t.Result, o)
}

// renderPreview writes the rows shown when a dataset is loaded.
func renderPreview(w io.Writer, t *engine.Table, o renderOptions) error {
	if t == nil {
		return nil
	}
	fmt.Fprintln(w, noteStyle.Render(fmt.Sprintf("First %d rows", t.NumRows())))
	return renderTable(w, t, o)
}

// renderResult writes one result in the requested format.
func renderResult(w io.Writer, r engine.Result, o renderOptions) error {
	r, err := writePlot(r, o)
	if err != nil {
		return err
	}

	switch o.format {
	case "json", "pretty":
		return writeJSON(w, r, o.format)
	case "csv":
		if r.Kind == engine.ResultTable {
			return writeCSV(w, r.Table)
		}
	}

	switch r.Kind {
	case engine.ResultTable:
		if o.format == "plain" {
			_, err := io.WriteString(w, r.Table.Text(o.maxRows))
			return err
		}
		return renderTable(w, r.Table, o)
	case engine.ResultPlot:
		fmt.Fprintln(w, noteStyle.Render(fmt.Sprintf("chart %q written to %s", r.Plot.Title, o.plotOut)))
	case engine.ResultScalar:
		fmt.Fprintln(w, scalarStyle.Render(r.Scalar.Text))
	case engine.ResultError:
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%s: %s", r.Error.Kind, r.Error.Message)))
	}
	return nil
}

// writePlot saves a figure to o.plotOut and strips its bytes from r.
func writePlot(r engine.Result, o renderOptions) (engine.Result, error) {
	if r.Kind != engine.ResultPlot || len(r.Plot.PNG) == 0 || o.plotOut == "" {
		return r, nil
	}
	if err := os.WriteFile(o.plotOut, r.Plot.PNG, 0o644); err != nil {
		return r, fmt.Errorf("failed to write plot: %w", err)
	}
	return engine.PlotResult(&engine.Plot{Title: r.Plot.Title}), nil
}

func renderTable(w io.Writer, t *engine.Table, o renderOptions) error {
	n := t.NumRows()
	if o.maxRows > 0 && n > o.maxRows {
		n = o.maxRows
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(muted)).
		Headers(t.Header()...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for i := 0; i < n; i++ {
		row := make([]string, len(t.Columns))
		for j := range t.Columns {
			row[j] = t.Cell(i, j)
		}
		tbl.Row(row...)
	}
	fmt.Fprintln(w, tbl.Render())
	if n < t.NumRows() {
		fmt.Fprintln(w, noteStyle.Render(fmt.Sprintf("… %s more rows", engine.FormatInt(t.NumRows()-n))))
	}
	return nil
}

// ============================================================================
// JSON / CSV OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v any, format string) error {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func writeCSV(w io.Writer, t *engine.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	row := make([]string, len(t.Columns))
	for i := 0; i < t.NumRows(); i++ {
		for j := range t.Columns {
			row[j] = t.Cell(i, j)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
