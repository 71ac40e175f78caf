package translator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/sandbox"
	"github.com/spektr-org/chatyfile/schema"
)

// ============================================================================
// PROMPT BUILDER — Dataset-driven prompt generation
// ============================================================================
// The prompt is rebuilt from the live dataset on every question:
//   - Columns → exact names, kinds and sample values
//   - Rules → naming, result binding, text matching, chart vs value
//   - Catalog → every method the snippet language resolves
//   - Examples → written against this dataset's own column names
//
// Only the description's sample rows leave the process. Never the full data.
// ============================================================================

// PromptOptions bounds the dataset description and optionally stamps the
// current date.
type PromptOptions struct {
	SampleRows   int
	MaxCellWidth int
	Today        time.Time // zero omits the date line
}

// PromptContext is the dataset-dependent part of a prompt.
type PromptContext struct {
	Schema   string
	Rules    string
	Examples string
}

// BuildContext describes d for the model.
func BuildContext(d *engine.Dataset, opts PromptOptions) PromptContext {
	desc := schema.Describe(d, schema.DescribeOptions{
		SampleRows:   opts.SampleRows,
		MaxCellWidth: opts.MaxCellWidth,
	})
	return PromptContext{
		Schema:   desc.Text(),
		Rules:    buildRules(),
		Examples: buildExamples(desc),
	}
}

// BuildPrompt generates the complete request for one question.
func BuildPrompt(d *engine.Dataset, question string, opts PromptOptions) string {
	pc := BuildContext(d, opts)
	var b strings.Builder

	b.WriteString(`You answer questions about a table by writing a short Go snippet.
The table is already loaded in a variable named df. The snippet runs in a
restricted interpreter: only the methods listed below exist.

`)
	if !opts.Today.IsZero() {
		fmt.Fprintf(&b, "CURRENT DATE: %s\n\n", opts.Today.Format("2006-01-02"))
	}

	b.WriteString("DATASET:\n")
	b.WriteString(pc.Schema)
	b.WriteString("\n")
	b.WriteString(pc.Rules)
	b.WriteString("\n")
	b.WriteString(sandbox.Catalog())
	b.WriteString("\n")
	b.WriteString(pc.Examples)

	fmt.Fprintf(&b, "\nQUESTION: %s\n", strings.TrimSpace(question))
	b.WriteString("\nReply with exactly one ```go code block and nothing else.\n")
	return b.String()
}

// Primer is the opening exchange of a conversation: it pins the exact
// column names before any question is asked.
func Primer(d *engine.Dataset) Exchange {
	names := make([]string, 0, d.NumCols())
	for _, n := range d.Names() {
		names = append(names, strconv.Quote(n))
	}
	return Exchange{
		Prompt: "You have a table named df. Its real columns are: " + strings.Join(names, ", ") +
			". Do not translate or change any column name; use them exactly as written. " +
			"Text values may differ in upper and lower case.",
		Reply: "Understood. I will use the column names exactly as given.",
	}
}

// ============================================================================
// SECTION BUILDERS
// ============================================================================

func buildRules() string {
	return `RULES:
1. Use column names exactly as listed above, with the same spelling, spaces and
   case. Never translate, shorten or rename them.
2. Put the answer in result: result = <dataset, column or single value>.
   A filtered or grouped table is a dataset; a single total is a value.
3. Text values may vary in case or spelling ('Urea', 'urea', 'UREA'). Match
   text with .Contains("...") or .EqualFold("..."), both case-insensitive,
   instead of ==.
4. If the question asks for a chart, plot, graph or trend, draw it with plt
   (Bar, Line, Scatter, Hist) and give it a plt.Title. Do not set result.
5. Use println only when the answer is a sentence built from several values.
6. No loops, if statements, functions, imports or package clauses. Chain
   method calls and use masks such as df[df["col"] > 10] instead.
`
}

// buildExamples writes the worked examples against the dataset's own
// columns so the model copies real names.
func buildExamples(desc *schema.Description) string {
	if len(desc.Columns) == 0 {
		return ""
	}
	text := first(desc.ColumnsOfKind(engine.KindCategorical), desc.Columns[0].Name)
	num := first(desc.ColumnsOfKind(engine.KindNumeric), "")
	date := first(desc.ColumnsOfKind(engine.KindDatetime), "")
	sample := "abc"
	for _, c := range desc.Columns {
		if c.Name == text && len(c.Samples) > 0 {
			sample = strings.ToLower(c.Samples[0])
			break
		}
	}

	q := strconv.Quote
	var b strings.Builder
	b.WriteString("EXAMPLES:\n")
	example := func(question, code string) {
		fmt.Fprintf(&b, "Q: %s\n```go\n%s\n```\n", question, code)
	}

	example("how many rows are there?", "result = len(df)")
	example(fmt.Sprintf("how many different %s contain %q?", text, sample),
		fmt.Sprintf("matches := df[df[%s].Contains(%s)]\nresult = matches[%s].NUnique()", q(text), q(sample), q(text)))
	if num != "" {
		example(fmt.Sprintf("total %s", num), fmt.Sprintf("result = df[%s].Sum()", q(num)))
		if text != num {
			example(fmt.Sprintf("average %s per %s", num, text),
				fmt.Sprintf("result = df.GroupBy(%s)[%s].Mean().SortDesc(%s)", q(text), q(num), q(num)))
			example(fmt.Sprintf("%s present both above and below the average %s", text, num),
				fmt.Sprintf("avg := df[%s].Mean()\nhigh := df[df[%s] > avg][%s].Unique()\nlow := df[df[%s] < avg][%s].Unique()\nresult = high.Intersect(low)",
					q(num), q(num), q(text), q(num), q(text)))
			example(fmt.Sprintf("bar chart of %s by %s", num, text),
				fmt.Sprintf("plt.Bar(df.GroupBy(%s)[%s].Sum())\nplt.Title(%s)", q(text), q(num), q(num+" by "+text)))
		}
		example(fmt.Sprintf("top 5 rows by %s", num), fmt.Sprintf("result = df.SortDesc(%s).Head(5)", q(num)))
		if date != "" {
			example(fmt.Sprintf("%s per month over time", num),
				fmt.Sprintf("df[\"month\"] = df[%s].Period()\nplt.Line(df.GroupBy(\"month\")[%s].Sum())\nplt.Title(%s)",
					q(date), q(num), q(num+" per month")))
		}
	} else {
		example(fmt.Sprintf("most frequent %s", text), fmt.Sprintf("result = df[%s].ValueCounts().Head(5)", q(text)))
	}
	return b.String()
}

func first(ss []string, def string) string {
	if len(ss) > 0 {
		return ss[0]
	}
	return def
}

// ============================================================================
// HELPERS
// ============================================================================

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
