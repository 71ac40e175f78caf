// Package chatyfile answers natural-language questions about tabular data.
//
// Usage:
//
//	import "github.com/spektr-org/chatyfile/session"
//
//	m := session.NewManager(client, sandbox.NewInterpreter())
//	m.LoadDataset(dataset)
//	turn, err := m.Ask(ctx, "total revenue by region")
//
// A question is turned into a short snippet by a language model (translator
// package), the snippet runs in a restricted interpreter over a copy of the
// dataset (sandbox package), and whatever it produced is classified into a
// table, a chart or a single value (engine.Result). The dataset never leaves
// the process except as the schema summary sent with each question.
package chatyfile
