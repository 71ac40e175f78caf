package engine

import (
	"errors"
	"fmt"
)

// ============================================================================
// ENGINE TYPES — Columnar data model and render-ready results
// ============================================================================
// The engine owns the in-memory Dataset and the Result union that every
// question eventually resolves to. It never calls an external service.
// ============================================================================

// ColumnKind is the semantic kind of a column.
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindDatetime    ColumnKind = "datetime"
	KindCategorical ColumnKind = "categorical"
	KindOther       ColumnKind = "other"
)

// ============================================================================
// RESULT — Discriminated union over table, plot, scalar and error
// ============================================================================

// ResultKind tags which field of a Result is populated.
type ResultKind string

const (
	ResultTable  ResultKind = "table"
	ResultPlot   ResultKind = "plot"
	ResultScalar ResultKind = "scalar"
	ResultError  ResultKind = "error"
)

// Result is the engine's render-ready output for one turn.
type Result struct {
	Kind ResultKind `json:"kind"`

	// Exactly one of these is populated based on Kind:
	Table  *Table  `json:"table,omitempty"`
	Plot   *Plot   `json:"plot,omitempty"`
	Scalar *Scalar `json:"scalar,omitempty"`
	Error  *Error  `json:"error,omitempty"`
}

// Table is a rendered tabular answer. Float cells are already rounded.
type Table struct {
	Columns []TableColumn `json:"columns"`
	Rows    [][]any       `json:"rows"`
}

// TableColumn describes one column of a Table.
type TableColumn struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Plot is a rendered figure.
type Plot struct {
	Title string `json:"title,omitempty"`
	PNG   []byte `json:"png,omitempty"`
}

// Scalar is a single textual answer.
type Scalar struct {
	Text string `json:"text"`
}

// Error is a classified failure recorded on a turn.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// TableResult wraps t as a Result.
func TableResult(t *Table) Result { return Result{Kind: ResultTable, Table: t} }

// PlotResult wraps p as a Result.
func PlotResult(p *Plot) Result { return Result{Kind: ResultPlot, Plot: p} }

// ScalarResult wraps text as a Result.
func ScalarResult(text string) Result {
	return Result{Kind: ResultScalar, Scalar: &Scalar{Text: text}}
}

// ErrorResult builds an error Result of the given kind.
func ErrorResult(kind ErrorKind, msg string) Result {
	return Result{Kind: ResultError, Error: &Error{Kind: kind, Message: msg}}
}

// FailureResult converts any error into an error Result. Errors that are not
// a *Failure are recorded as ExecutionFailed.
func FailureResult(err error) Result {
	var f *Failure
	if errors.As(err, &f) {
		return ErrorResult(f.Kind, f.Message)
	}
	return ErrorResult(ErrExecutionFailed, err.Error())
}

// Validate checks that exactly one payload matching Kind is set.
func (r Result) Validate() error {
	set := 0
	for _, ok := range []bool{r.Table != nil, r.Plot != nil, r.Scalar != nil, r.Error != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("result %q has %d payloads, want 1", r.Kind, set)
	}
	var match bool
	switch r.Kind {
	case ResultTable:
		match = r.Table != nil
	case ResultPlot:
		match = r.Plot != nil
	case ResultScalar:
		match = r.Scalar != nil
	case ResultError:
		match = r.Error != nil
	}
	if !match {
		return fmt.Errorf("result kind %q does not match its payload", r.Kind)
	}
	return nil
}

// ============================================================================
// FAILURES
// ============================================================================

// ErrorKind classifies why a question produced no answer.
type ErrorKind string

const (
	ErrEmptyGeneration    ErrorKind = "empty_generation"
	ErrInvalidSyntax      ErrorKind = "invalid_syntax"
	ErrExecutionFailed    ErrorKind = "execution_failed"
	ErrServiceUnavailable ErrorKind = "service_unavailable"
	ErrUnsupportedResult  ErrorKind = "unsupported_result"
	ErrTimeout            ErrorKind = "timeout"
)

// Failure is the error type returned by pipeline components. The session
// records it on the turn instead of propagating it.
type Failure struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Failf builds a Failure with a formatted message.
func Failf(kind ErrorKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a Failure around err, using err's text as the message.
func Wrap(kind ErrorKind, err error) *Failure {
	return &Failure{Kind: kind, Message: err.Error(), Err: err}
}

func (f *Failure) Error() string { return string(f.Kind) + ": " + f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// KindOf reports the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}
