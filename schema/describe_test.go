package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// DESCRIBER TESTS
// ============================================================================

func inventoryFixture(t *testing.T, rows int) *engine.Dataset {
	t.Helper()
	names := make([]string, rows)
	qty := make([]float64, rows)
	when := make([]any, rows)
	for i := 0; i < rows; i++ {
		names[i] = []string{"Tornillo M4", "Tuerca", "Arandela plana de acero inoxidable calibre grueso extra"}[i%3]
		qty[i] = float64(i * 10)
		when[i] = time.Date(2024, time.Month(i%12+1), 1, 0, 0, 0, 0, time.UTC)
	}
	when[1] = nil
	d, err := engine.NewDataset(
		engine.StringColumn("Descripción Artículo", names...),
		engine.NumericColumn("Cantidad", qty...),
		engine.NewColumn("fecha_alta", engine.KindDatetime, when),
	)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return d
}

func TestDescribeKeepsExactColumnNames(t *testing.T) {
	d := inventoryFixture(t, 30)
	desc := Describe(d, DefaultDescribeOptions())

	got := desc.Names()
	want := d.Names()
	if len(got) != len(want) {
		t.Fatalf("got %d columns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: got %q, want %q", i, got[i], want[i])
		}
	}

	text := desc.Text()
	for _, name := range want {
		assertContains(t, text, `"`+name+`"`)
	}
}

func TestDescribeIsBounded(t *testing.T) {
	d := inventoryFixture(t, 500)
	desc := Describe(d, DescribeOptions{SampleRows: 100, MaxCellWidth: 12})

	if len(desc.SampleRows) != 20 {
		t.Errorf("sample rows = %d, want cap of 20", len(desc.SampleRows))
	}
	if desc.Rows != 500 {
		t.Errorf("rows = %d, want 500", desc.Rows)
	}
	for _, row := range desc.SampleRows {
		for _, cell := range row {
			if n := len([]rune(cell)); n > 12 {
				t.Errorf("cell %q has %d runes, want <= 12", cell, n)
			}
		}
	}
	if strings.Contains(desc.Text(), "490") {
		t.Errorf("description leaked rows beyond the sample")
	}
}

func TestDescribeColumnStats(t *testing.T) {
	d := inventoryFixture(t, 6)
	desc := Describe(d, DefaultDescribeOptions())

	fecha := desc.Columns[2]
	if fecha.Kind != engine.KindDatetime {
		t.Errorf("kind = %s, want datetime", fecha.Kind)
	}
	if fecha.Nulls != 1 || fecha.NonNull != 5 {
		t.Errorf("nulls/nonNull = %d/%d, want 1/5", fecha.Nulls, fecha.NonNull)
	}
	if got := desc.Columns[0].Unique; got != 3 {
		t.Errorf("unique = %d, want 3", got)
	}
	if got := desc.ColumnsOfKind(engine.KindNumeric); len(got) != 1 || got[0] != "Cantidad" {
		t.Errorf("numeric columns = %v", got)
	}
}

func TestSummaryTable(t *testing.T) {
	desc := Describe(inventoryFixture(t, 6), DefaultDescribeOptions())
	tbl := desc.Summary()
	if tbl.NumRows() != 3 {
		t.Fatalf("summary rows = %d, want 3", tbl.NumRows())
	}
	if tbl.Cell(2, 0) != "fecha_alta" || tbl.Cell(2, 2) != "1" {
		t.Errorf("summary row = %v", tbl.Rows[2])
	}
}

// ============================================================================
// KIND INFERENCE TESTS
// ============================================================================

func TestInferKind(t *testing.T) {
	cases := []struct {
		name   string
		values []string
		want   engine.ColumnKind
	}{
		{"amount", []string{"1,234.50", "12", "-3", "NA", ""}, engine.KindNumeric},
		{"year", []string{"2020", "2021", "2022"}, engine.KindNumeric},
		{"Month", []string{"Jan-2026", "Feb-2026", "Mar-2026"}, engine.KindDatetime},
		{"Fecha de pedido", []string{"2024-01-05", "05/02/2024", "sin fecha"}, engine.KindDatetime},
		{"created", []string{"2024-01-05", "2024-02-05", "2024-03-05", "2024-04-05", "2024-05-05", "x"}, engine.KindDatetime},
		{"mes", []string{"enero 2024", "febrero 2024"}, engine.KindDatetime},
		{"active", []string{"yes", "no", "Yes"}, engine.KindOther},
		{"code", []string{"A1", "B2", "3"}, engine.KindCategorical},
		{"empty", []string{"", "null", "N/A"}, engine.KindCategorical},
	}
	for _, tc := range cases {
		if got := InferKind(tc.name, tc.values); got != tc.want {
			t.Errorf("InferKind(%q, %v) = %s, want %s", tc.name, tc.values, got, tc.want)
		}
	}
}

func TestHasDateKeyword(t *testing.T) {
	for _, name := range []string{"Order Date", "fecha_alta", "Mes", "AÑO", "delivery_day"} {
		if !HasDateKeyword(name) {
			t.Errorf("HasDateKeyword(%q) = false", name)
		}
	}
	for _, name := range []string{"Supplier", "dias_credito", "Amount"} {
		if HasDateKeyword(name) {
			t.Errorf("HasDateKeyword(%q) = true", name)
		}
	}
}

func assertContains(t *testing.T, text, sub string) {
	t.Helper()
	if !strings.Contains(text, sub) {
		t.Errorf("expected %q in:\n%s", sub, text)
	}
}
