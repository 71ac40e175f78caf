package sandbox

import (
	"sort"
	"strings"
)

// catalogEntries documents the callable surface for prompts. Method names
// are listed from the dispatch tables so the two cannot drift.
var catalogEntries = []struct {
	title   string
	table   *map[string]method
	example string
}{
	{"df (dataset)", &datasetMethods, `df.Where(df["Amount"] > 100).SortDesc("Amount").Head(10)`},
	{"column", &columnMethods, `df["Supplier"].Contains("acme").Sum()`},
	{"df.GroupBy(...)", &groupedMethods, `df.GroupBy("Region").Sum("Amount")`},
	{"df.GroupBy(...)[\"col\"]", &groupedColumnMethods, `df.GroupBy("Region")["Amount"].Mean()`},
	{"np", &numericMethods, `np.Corr(df["Amount"], df["Units"])`},
	{"plt", &plotMethods, `plt.Bar(df.GroupBy("Region").Sum("Amount")); plt.Title("Sales by region")`},
}

// Catalog describes the snippet language: statements, operators, the
// namespace and every callable method.
func Catalog() string {
	var b strings.Builder
	b.WriteString("SNIPPET LANGUAGE\n")
	b.WriteString("- Go statements only: x := expr, x = expr, df[\"col\"] = expr, and calls.\n")
	b.WriteString("- No loops, if, func literals, imports, return or type declarations.\n")
	b.WriteString("- Operators: + - * / %, == != < <= > >=, && || (also & | on masks), !.\n")
	b.WriteString("- Comparing a column with a value gives a mask; df[mask] keeps matching rows.\n")
	b.WriteString("- Assign the answer to result. print/println/printf write text output.\n")
	b.WriteString("- Builtins: len, print, println, printf. Constants: true, false, nil.\n\n")
	b.WriteString("METHODS (case-insensitive)\n")
	for _, e := range catalogEntries {
		names := make([]string, 0, len(*e.table))
		for name := range *e.table {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString(e.title)
		b.WriteString(": ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n  e.g. ")
		b.WriteString(e.example)
		b.WriteString("\n")
	}
	return b.String()
}
