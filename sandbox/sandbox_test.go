package sandbox

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/spektr-org/chatyfile/engine"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func purchases(t *testing.T) *engine.Dataset {
	t.Helper()
	d, err := engine.NewDataset(
		engine.StringColumn("Supplier", "Acme Corp", "ACME Ltd", "Globex", "acme inc", "Initech", "Acme Corp"),
		engine.NumericColumn("Amount", 100, 250.5, 75, 300, 20, 55.25),
		engine.StringColumn("Region", "North", "South", "North", "East", "South", "North"),
		engine.NewColumn("Order Date", engine.KindDatetime, []any{
			time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
			nil,
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		}),
	)
	require.NoError(t, err)
	return d
}

func run(t *testing.T, snippet string, opts ...Option) engine.Result {
	t.Helper()
	r := Run(context.Background(), NewInterpreter(opts...), snippet, purchases(t))
	require.NoError(t, r.Validate())
	return r
}

func requireErrorKind(t *testing.T, r engine.Result, kind engine.ErrorKind) {
	t.Helper()
	require.Equal(t, engine.ResultError, r.Kind, "result: %+v", r)
	assert.Equal(t, kind, r.Error.Kind, r.Error.Message)
}

// ── Compile ─────────────────────────────────────────────────────────────────

func TestCompileRejectsControlFlow(t *testing.T) {
	snippets := map[string]string{
		"for":       "for i := 0; i < 10; i++ {\n}",
		"range":     "for _, x := range df.Columns() {\nprint(x)\n}",
		"if":        "if len(df) > 0 {\nresult = 1\n}",
		"func lit":  "f := func() {}\nf()",
		"go":        "go print(1)",
		"defer":     "defer print(1)",
		"return":    "return",
		"import":    "import \"os\"",
		"composite": "x := []int{1, 2}",
		"incdec":    "x := 1\nx++",
		"shadow":    "}\nfunc init() {",
		"discarded": "df",
	}
	for name, src := range snippets {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(src)
			require.Error(t, err)
			kind, ok := engine.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, engine.ErrInvalidSyntax, kind)
		})
	}
}

func TestCompileReportsSnippetLines(t *testing.T) {
	_, err := Compile("x := 1\ny := 2\nfor {\n}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "for loop")

	_, err = Compile("x := (1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

// ── Execution ───────────────────────────────────────────────────────────────

func TestUniqueSupplierCount(t *testing.T) {
	r := run(t, `matches := df[df["Supplier"].Contains("acme")]
result = matches["Supplier"].NUnique()`)
	require.Equal(t, engine.ResultScalar, r.Kind)
	assert.Equal(t, "3", r.Scalar.Text)
}

func TestMethodNamesIgnoreCaseAndUnderscores(t *testing.T) {
	r := run(t, `result = df["Region"].value_counts()`)
	require.Equal(t, engine.ResultTable, r.Kind)
	assert.Equal(t, []string{"Region", "count"}, r.Table.Header())
	assert.Equal(t, "North", r.Table.Rows[0][0])
	assert.Equal(t, 3.0, r.Table.Rows[0][1])
}

func TestGroupByAggregation(t *testing.T) {
	r := run(t, `result = df.GroupBy("Region")["Amount"].Sum().SortDesc("Amount")`)
	require.Equal(t, engine.ResultTable, r.Kind)
	require.Equal(t, 3, r.Table.NumRows())
	assert.Equal(t, []string{"Region", "Amount"}, r.Table.Header())
	assert.Equal(t, []any{"East", 300.0}, r.Table.Rows[0])
	assert.Equal(t, []any{"South", 270.5}, r.Table.Rows[1])
	assert.Equal(t, []any{"North", 230.25}, r.Table.Rows[2])
}

func TestTopNWithFilter(t *testing.T) {
	r := run(t, `big := df[df["Amount"] >= 75 && df["Region"] != "East"]
result = big.SortDesc("Amount").Head(2).Select("Supplier", "Amount")`)
	require.Equal(t, engine.ResultTable, r.Kind)
	require.Equal(t, 2, r.Table.NumRows())
	assert.Equal(t, "ACME Ltd", r.Table.Rows[0][0])
	assert.Equal(t, "Acme Corp", r.Table.Rows[1][0])
}

func TestSetIntersection(t *testing.T) {
	r := run(t, `north := df[df["Region"] == "North"]["Supplier"]
south := df[df["Region"] == "South"]["Supplier"]
result = len(north.Intersect(south))`)
	require.Equal(t, engine.ResultScalar, r.Kind)
	assert.Equal(t, "0", r.Scalar.Text)
}

func TestNumericHandle(t *testing.T) {
	r := run(t, `result = np.Round(np.Mean(df["Amount"]), 1)`)
	require.Equal(t, engine.ResultScalar, r.Kind)
	assert.Equal(t, "133.5", r.Scalar.Text)
}

func TestDerivedColumnDoesNotTouchSource(t *testing.T) {
	d := purchases(t)
	exec := NewInterpreter()
	r := Run(context.Background(), exec, `df["Amount"] = df["Amount"] * 2
df["Flag"] = true
result = df["Amount"].Sum()`, d)
	require.Equal(t, engine.ResultScalar, r.Kind)
	assert.Equal(t, "1601.5", r.Scalar.Text)

	assert.Equal(t, []string{"Supplier", "Amount", "Region", "Order Date"}, d.Names())
	amount, _ := d.Column("Amount")
	assert.Equal(t, 100.0, amount.Value(0))
}

func TestAmbientAccessIsUnresolved(t *testing.T) {
	for _, src := range []string{
		`os.Exit(1)`,
		`result = fmt.Sprint(1)`,
		`http.Get("http://example.com")`,
		`result = ioutil.ReadFile("/etc/passwd")`,
	} {
		r := run(t, src)
		requireErrorKind(t, r, engine.ErrExecutionFailed)
		assert.Contains(t, r.Error.Message, "undefined")
	}
}

func TestHandlesCannotBeReassigned(t *testing.T) {
	for _, src := range []string{`np = 1`, `plt := df`, `len = 2`, `true = false`} {
		r := run(t, src)
		requireErrorKind(t, r, engine.ErrExecutionFailed)
		assert.Contains(t, r.Error.Message, "cannot assign")
	}
}

func TestMissingColumnFails(t *testing.T) {
	r := run(t, `result = df["supplier"].NUnique()`)
	requireErrorKind(t, r, engine.ErrExecutionFailed)
	assert.Contains(t, r.Error.Message, `did you mean "Supplier"`)
	assert.Contains(t, r.Error.Message, "line 1")
}

func TestUnknownMethodFails(t *testing.T) {
	r := run(t, `result = df["Amount"].Explode()`)
	requireErrorKind(t, r, engine.ErrExecutionFailed)
	assert.Contains(t, r.Error.Message, "no method Explode")
}

func TestMaskSumCountsMatches(t *testing.T) {
	r := run(t, `result = df["Supplier"].Contains("acme").Sum()`)
	require.Equal(t, engine.ResultScalar, r.Kind, "%+v", r.Error)
	assert.Equal(t, "4", r.Scalar.Text)

	r = run(t, `result = df["Supplier"].Contains("acme").Mean()`)
	require.Equal(t, engine.ResultScalar, r.Kind, "%+v", r.Error)
	assert.Equal(t, "0.67", r.Scalar.Text)
}

func TestConcatenationIsBounded(t *testing.T) {
	src := `s := "0123456789abcdef"` + strings.Repeat("\ns = s + s", 22) + "\nresult = len(s)"
	r := run(t, src)
	requireErrorKind(t, r, engine.ErrExecutionFailed)
	assert.Contains(t, r.Error.Message, "string too long")
}

func TestInterpreterTimeout(t *testing.T) {
	n := 50000
	amounts := make([]float64, n)
	for i := range amounts {
		amounts[i] = float64((i * 7919) % n)
	}
	d := engine.MustDataset(engine.NumericColumn("Amount", amounts...))
	src := "x := df" + strings.Repeat("\nx = x.SortDesc(\"Amount\").Sort(\"Amount\")", 200) + "\nresult = len(x)"

	_, err := NewInterpreter(WithTimeout(2*time.Millisecond)).Execute(context.Background(), src, d)
	kind, ok := engine.KindOf(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, engine.ErrTimeout, kind)
	assert.Contains(t, err.Error(), "execution exceeded 2ms")
}

func TestTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := NewInterpreter().Execute(ctx, `result = 1`, purchases(t))
	kind, ok := engine.KindOf(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, engine.ErrTimeout, kind)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewInterpreter().Execute(ctx, `result = 1`, purchases(t))
	kind, _ := engine.KindOf(err)
	assert.Equal(t, engine.ErrExecutionFailed, kind)
}

func TestOutputIsCapped(t *testing.T) {
	c, err := NewInterpreter(WithMaxOutput(8)).Execute(context.Background(),
		`println("0123456789abcdef")`, purchases(t))
	require.NoError(t, err)
	assert.True(t, c.Truncated)
	assert.True(t, strings.HasPrefix(c.Output, "01234567"))
	assert.Contains(t, c.Output, "output truncated")
}

// ── Classification ──────────────────────────────────────────────────────────

func TestClassifyOrder(t *testing.T) {
	t.Run("figure wins over result", func(t *testing.T) {
		r := run(t, `plt.Bar(df["Region"])
plt.Title("Orders by region")
result = 1`)
		require.Equal(t, engine.ResultPlot, r.Kind)
		assert.Equal(t, "Orders by region", r.Plot.Title)
		_, err := png.Decode(bytes.NewReader(r.Plot.PNG))
		assert.NoError(t, err)
	})
	t.Run("column result is a one column table", func(t *testing.T) {
		r := run(t, `result = df["Supplier"].Unique()`)
		require.Equal(t, engine.ResultTable, r.Kind)
		assert.Equal(t, []string{"Supplier"}, r.Table.Header())
		assert.Equal(t, 5, r.Table.NumRows())
	})
	t.Run("single row stays a table", func(t *testing.T) {
		r := run(t, `result = df.Head(1)`)
		require.Equal(t, engine.ResultTable, r.Kind)
		assert.Equal(t, 1, r.Table.NumRows())
	})
	t.Run("datetime scalar", func(t *testing.T) {
		r := run(t, `result = df["Order Date"].Max()`)
		require.Equal(t, engine.ResultScalar, r.Kind)
		assert.Equal(t, "2024-03-15", r.Scalar.Text)
	})
	t.Run("group-by handle is unsupported", func(t *testing.T) {
		r := run(t, `result = df.GroupBy("Region")`)
		requireErrorKind(t, r, engine.ErrUnsupportedResult)
	})
	t.Run("result wins over output", func(t *testing.T) {
		r := run(t, `println("ignored")
result = "kept"`)
		require.Equal(t, engine.ResultScalar, r.Kind)
		assert.Equal(t, "kept", r.Scalar.Text)
	})
	t.Run("printed output", func(t *testing.T) {
		r := run(t, `printf("total %v\n", df["Amount"].Sum())`)
		require.Equal(t, engine.ResultScalar, r.Kind)
		assert.Equal(t, "total 800.75", r.Scalar.Text)
	})
	t.Run("integer verbs take whole numbers", func(t *testing.T) {
		r := run(t, `printf("%d items, %.1f avg", 3, 2.5)`)
		require.Equal(t, engine.ResultScalar, r.Kind)
		assert.Equal(t, "3 items, 2.5 avg", r.Scalar.Text)
	})
	t.Run("nil result falls through", func(t *testing.T) {
		r := run(t, `result = nil`)
		require.Equal(t, engine.ResultScalar, r.Kind)
		assert.Equal(t, NoOutputText, r.Scalar.Text)
	})
	t.Run("no visible output", func(t *testing.T) {
		r := run(t, `x := df["Amount"].Sum()`)
		require.Equal(t, engine.ResultScalar, r.Kind)
		assert.Equal(t, NoOutputText, r.Scalar.Text)
	})
}

func TestLinePlotOverDates(t *testing.T) {
	c, err := NewInterpreter().Execute(context.Background(),
		`plt.Line(df["Order Date"], df["Amount"], "amount")`, purchases(t))
	require.NoError(t, err)
	require.Len(t, c.Figure.Layers, 1)
	l := c.Figure.Layers[0]
	assert.True(t, l.TimeX)
	assert.Len(t, l.X, 5)
	for i := 1; i < len(l.X); i++ {
		assert.LessOrEqual(t, l.X[i-1], l.X[i])
	}
	assert.Equal(t, "Order Date", c.Figure.XLabel)
}

func TestCatalogListsMethods(t *testing.T) {
	cat := Catalog()
	for _, want := range []string{"contains", "groupby", "nunique", "corr", "hist", "result"} {
		assert.Contains(t, cat, want)
	}
}

func TestCatalogExamplesRun(t *testing.T) {
	d := engine.MustDataset(
		engine.StringColumn("Supplier", "Acme Corp", "Globex", "acme inc", "Initech"),
		engine.NumericColumn("Amount", 100, 250.5, 75, 300),
		engine.StringColumn("Region", "North", "South", "North", "East"),
		engine.NumericColumn("Units", 3, 8, 2, 9),
	)
	for _, e := range catalogEntries {
		t.Run(e.title, func(t *testing.T) {
			src := e.example
			if !strings.HasPrefix(src, "plt.") {
				src = "result = " + src
			}
			r := Run(context.Background(), NewInterpreter(), src, d)
			require.NoError(t, r.Validate())
			assert.NotEqual(t, engine.ResultError, r.Kind, "%s: %+v", src, r.Error)
		})
	}
}
