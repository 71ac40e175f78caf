package sandbox

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// EVALUATOR — Tree-walking interpreter over a validated Program
// ============================================================================
// The namespace holds only the dataset copy, the numeric and plotting
// handles, the result binding and a few output builtins. Any other name is
// unresolved. The context is checked before every statement and call.
// ============================================================================

// ResultName is the binding a snippet assigns its answer to.
const ResultName = "result"

// builtin is a callable bound in the namespace.
type builtin func(ev *evaluator, args []any) (any, error)

var builtins = map[string]builtin{
	"len":     builtinLen,
	"print":   builtinPrint,
	"println": builtinPrintln,
	"printf":  builtinPrintf,
}

var constants = map[string]any{
	"true":  true,
	"false": false,
	"nil":   nil,
}

// reserved names cannot be rebound by a snippet.
var reserved = map[string]bool{
	"np":  true,
	"plt": true,
}

type evaluator struct {
	ctx    context.Context
	prog   *Program
	vars   map[string]any
	out    *limitedBuffer
	plot   *plotHandle
	result bool
}

func newEvaluator(ctx context.Context, p *Program, d *engine.Dataset, maxOutput int) *evaluator {
	return &evaluator{
		ctx:  ctx,
		prog: p,
		vars: map[string]any{"df": d},
		out:  &limitedBuffer{max: maxOutput},
		plot: &plotHandle{fig: &engine.Figure{}},
	}
}

// runtimeError carries the snippet line of a failing statement.
type runtimeError struct {
	line int
	err  error
}

func (e *runtimeError) Error() string { return fmt.Sprintf("line %d: %v", e.line, e.err) }
func (e *runtimeError) Unwrap() error { return e.err }

func (ev *evaluator) run() error {
	for _, s := range ev.prog.body {
		if err := ev.ctx.Err(); err != nil {
			return err
		}
		if err := ev.stmt(s); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return err
			}
			return &runtimeError{line: ev.prog.line(s), err: err}
		}
	}
	return nil
}

func (ev *evaluator) capture() *Capture {
	c := &Capture{
		Output:    ev.out.String(),
		Truncated: ev.out.truncated,
		Figure:    ev.plot.fig,
	}
	if ev.result {
		c.Result = ev.vars[ResultName]
		c.ResultBound = true
	}
	return c
}

// ── Statements ──────────────────────────────────────────────────────────────

func (ev *evaluator) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.EmptyStmt:
		return nil
	case *ast.ExprStmt:
		_, err := ev.expr(s.X)
		return err
	case *ast.AssignStmt:
		return ev.assign(s)
	}
	return fmt.Errorf("unsupported statement %T", s)
}

var assignOps = map[token.Token]engine.ArithOp{
	token.ADD_ASSIGN: engine.OpAdd,
	token.SUB_ASSIGN: engine.OpSub,
	token.MUL_ASSIGN: engine.OpMul,
	token.QUO_ASSIGN: engine.OpDiv,
}

func (ev *evaluator) assign(s *ast.AssignStmt) error {
	vals := make([]any, len(s.Rhs))
	for i, rhs := range s.Rhs {
		v, err := ev.expr(rhs)
		if err != nil {
			return err
		}
		if op, ok := assignOps[s.Tok]; ok {
			cur, err := ev.expr(s.Lhs[i])
			if err != nil {
				return err
			}
			if v, err = engine.Arith(op, cur, v); err != nil {
				return err
			}
		}
		vals[i] = v
	}
	for i, lhs := range s.Lhs {
		switch l := lhs.(type) {
		case *ast.Ident:
			if err := ev.bind(l.Name, vals[i]); err != nil {
				return err
			}
		case *ast.IndexExpr:
			if err := ev.setColumn(l, vals[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ev *evaluator) bind(name string, v any) error {
	if reserved[name] || builtins[name] != nil {
		return fmt.Errorf("cannot assign to %s", name)
	}
	if _, ok := constants[name]; ok {
		return fmt.Errorf("cannot assign to %s", name)
	}
	if name == "_" {
		return nil
	}
	if _, ok := v.(builtin); ok {
		return fmt.Errorf("cannot assign a builtin to %s", name)
	}
	if name == ResultName {
		ev.result = true
	}
	ev.vars[name] = v
	return nil
}

// setColumn handles `ds["name"] = value`. Only the dataset bound to the
// variable changes; the variable still points at the same Dataset value.
func (ev *evaluator) setColumn(l *ast.IndexExpr, v any) error {
	target, err := ev.expr(l.X)
	if err != nil {
		return err
	}
	d, ok := target.(*engine.Dataset)
	if !ok {
		return fmt.Errorf("only dataset columns can be assigned, not %s elements", engine.TypeName(target))
	}
	key, err := ev.expr(l.Index)
	if err != nil {
		return err
	}
	name, ok := key.(string)
	if !ok {
		return fmt.Errorf("column names must be strings, got %s", engine.TypeName(key))
	}
	switch x := v.(type) {
	case *engine.Column:
		return d.Set(x.Renamed(name))
	case *engine.Dataset, *engine.Grouped, *groupedColumn, builtin:
		return fmt.Errorf("cannot store a %s in column %q", engine.TypeName(v), name)
	}
	return d.Set(engine.Broadcast(name, v, d.NumRows()))
}

// ── Expressions ─────────────────────────────────────────────────────────────

func (ev *evaluator) lookup(name string) (any, error) {
	if v, ok := ev.vars[name]; ok {
		return v, nil
	}
	if v, ok := constants[name]; ok {
		return v, nil
	}
	switch name {
	case "np":
		return numericHandle{}, nil
	case "plt":
		return ev.plot, nil
	case ResultName:
		return nil, fmt.Errorf("result is not set yet")
	}
	if b, ok := builtins[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("undefined: %s", name)
}

func (ev *evaluator) expr(e ast.Expr) (any, error) {
	switch e := e.(type) {
	case *ast.BasicLit:
		return literal(e)
	case *ast.Ident:
		return ev.lookup(e.Name)
	case *ast.ParenExpr:
		return ev.expr(e.X)
	case *ast.UnaryExpr:
		return ev.unary(e)
	case *ast.BinaryExpr:
		return ev.binary(e)
	case *ast.SelectorExpr:
		return nil, fmt.Errorf("%s is a method; call it as %s()", selectorName(e), selectorName(e))
	case *ast.IndexExpr:
		return ev.index(e)
	case *ast.CallExpr:
		return ev.call(e)
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

func literal(e *ast.BasicLit) (any, error) {
	switch e.Kind {
	case token.INT:
		n, err := strconv.ParseInt(e.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer %s", e.Value)
		}
		return float64(n), nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %s", e.Value)
		}
		return f, nil
	case token.STRING:
		return strconv.Unquote(e.Value)
	}
	return nil, fmt.Errorf("unsupported literal %s", e.Value)
}

func selectorName(e *ast.SelectorExpr) string {
	if id, ok := e.X.(*ast.Ident); ok {
		return id.Name + "." + e.Sel.Name
	}
	return e.Sel.Name
}

func (ev *evaluator) unary(e *ast.UnaryExpr) (any, error) {
	x, err := ev.expr(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case token.SUB:
		return engine.Negate(x)
	case token.ADD:
		return engine.Arith(engine.OpMul, x, 1.0)
	case token.NOT:
		switch v := x.(type) {
		case bool:
			return !v, nil
		case *engine.Column:
			return engine.Not(v)
		}
		return nil, fmt.Errorf("cannot negate %s", engine.TypeName(x))
	}
	return nil, fmt.Errorf("unsupported operator %s", e.Op)
}

var compareOps = map[token.Token]engine.CompareOp{
	token.EQL: engine.OpEq,
	token.NEQ: engine.OpNe,
	token.LSS: engine.OpLt,
	token.LEQ: engine.OpLe,
	token.GTR: engine.OpGt,
	token.GEQ: engine.OpGe,
}

// flipped mirrors an operator so `lit OP col` can run as `col OP' lit`.
var flipped = map[engine.CompareOp]engine.CompareOp{
	engine.OpEq: engine.OpEq,
	engine.OpNe: engine.OpNe,
	engine.OpLt: engine.OpGt,
	engine.OpLe: engine.OpGe,
	engine.OpGt: engine.OpLt,
	engine.OpGe: engine.OpLe,
}

var arithOps = map[token.Token]engine.ArithOp{
	token.ADD: engine.OpAdd,
	token.SUB: engine.OpSub,
	token.MUL: engine.OpMul,
	token.QUO: engine.OpDiv,
	token.REM: engine.OpMod,
}

func (ev *evaluator) binary(e *ast.BinaryExpr) (any, error) {
	x, err := ev.expr(e.X)
	if err != nil {
		return nil, err
	}

	// Scalar && and || short-circuit like Go.
	if b, ok := x.(bool); ok && (e.Op == token.LAND || e.Op == token.LOR) {
		if (e.Op == token.LAND && !b) || (e.Op == token.LOR && b) {
			return b, nil
		}
	}

	y, err := ev.expr(e.Y)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case token.LAND, token.LOR, token.AND, token.OR:
		return logical(e.Op, x, y)
	}
	if op, ok := compareOps[e.Op]; ok {
		return compare(op, x, y)
	}
	if op, ok := arithOps[e.Op]; ok {
		return engine.Arith(op, x, y)
	}
	return nil, fmt.Errorf("unsupported operator %s", e.Op)
}

func logical(tok token.Token, x, y any) (any, error) {
	and := tok == token.LAND || tok == token.AND
	cx, xCol := x.(*engine.Column)
	cy, yCol := y.(*engine.Column)
	if xCol && yCol {
		if and {
			return engine.And(cx, cy)
		}
		return engine.Or(cx, cy)
	}
	bx, xok := x.(bool)
	by, yok := y.(bool)
	if xok && yok {
		if and {
			return bx && by, nil
		}
		return bx || by, nil
	}
	return nil, fmt.Errorf("operator %s needs two masks or two booleans, got %s and %s", tok, engine.TypeName(x), engine.TypeName(y))
}

func compare(op engine.CompareOp, x, y any) (any, error) {
	cx, xCol := x.(*engine.Column)
	cy, yCol := y.(*engine.Column)
	switch {
	case xCol && yCol:
		return engine.CompareColumns(op, cx, cy)
	case xCol:
		return cx.Compare(op, y)
	case yCol:
		return cy.Compare(flipped[op], x)
	}
	if x == nil || y == nil {
		switch op {
		case engine.OpEq:
			return x == y, nil
		case engine.OpNe:
			return x != y, nil
		}
		return nil, fmt.Errorf("cannot order nil")
	}
	if _, ok := x.(bool); ok && op != engine.OpEq && op != engine.OpNe {
		return nil, fmt.Errorf("cannot order booleans")
	}
	if _, ok := x.(time.Time); ok {
		if s, ok := y.(string); ok {
			if parsed, ok := engine.ParseTime(s); ok {
				y = parsed
			}
		}
	}
	if engine.TypeName(x) != engine.TypeName(y) {
		return nil, fmt.Errorf("cannot compare %s with %s", engine.TypeName(x), engine.TypeName(y))
	}
	switch x.(type) {
	case float64, string, bool, time.Time:
		return compareHolds(op, engine.CompareCells(x, y)), nil
	}
	return nil, fmt.Errorf("cannot compare %s values", engine.TypeName(x))
}

func compareHolds(op engine.CompareOp, cmp int) bool {
	switch op {
	case engine.OpEq:
		return cmp == 0
	case engine.OpNe:
		return cmp != 0
	case engine.OpLt:
		return cmp < 0
	case engine.OpLe:
		return cmp <= 0
	case engine.OpGt:
		return cmp > 0
	case engine.OpGe:
		return cmp >= 0
	}
	return false
}

func (ev *evaluator) index(e *ast.IndexExpr) (any, error) {
	x, err := ev.expr(e.X)
	if err != nil {
		return nil, err
	}
	i, err := ev.expr(e.Index)
	if err != nil {
		return nil, err
	}
	switch target := x.(type) {
	case *engine.Dataset:
		switch k := i.(type) {
		case string:
			return target.Col(k)
		case *engine.Column:
			return target.Where(k)
		}
	case *engine.Column:
		switch k := i.(type) {
		case float64:
			n, err := toInt(k)
			if err != nil {
				return nil, err
			}
			return target.At(n)
		case *engine.Column:
			return target.Where(k)
		}
	case *engine.Grouped:
		if k, ok := i.(string); ok {
			return &groupedColumn{g: target, col: k}, nil
		}
	case string:
		if k, ok := i.(float64); ok {
			n, err := toInt(k)
			if err != nil {
				return nil, err
			}
			r := []rune(target)
			if n < 0 {
				n += len(r)
			}
			if n < 0 || n >= len(r) {
				return nil, fmt.Errorf("index %d out of range", n)
			}
			return string(r[n]), nil
		}
	}
	return nil, fmt.Errorf("cannot index %s with %s", engine.TypeName(x), engine.TypeName(i))
}

func (ev *evaluator) call(e *ast.CallExpr) (any, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		v, err := ev.expr(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch fn := e.Fun.(type) {
	case *ast.Ident:
		v, err := ev.lookup(fn.Name)
		if err != nil {
			return nil, err
		}
		b, ok := v.(builtin)
		if !ok {
			return nil, fmt.Errorf("%s is a %s, not a function", fn.Name, engine.TypeName(v))
		}
		return b(ev, args)
	case *ast.SelectorExpr:
		recv, err := ev.expr(fn.X)
		if err != nil {
			return nil, err
		}
		return callMethod(recv, fn.Sel.Name, args)
	}
	return nil, fmt.Errorf("unsupported call")
}

// ── Builtins ────────────────────────────────────────────────────────────────

func builtinLen(_ *evaluator, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len takes 1 argument, got %d", len(args))
	}
	switch x := args[0].(type) {
	case *engine.Dataset:
		return float64(x.NumRows()), nil
	case *engine.Column:
		return float64(x.Len()), nil
	case *engine.Grouped:
		return float64(x.NumGroups()), nil
	case string:
		return float64(len([]rune(x))), nil
	}
	return nil, fmt.Errorf("len of %s", engine.TypeName(args[0]))
}

func joinValues(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}
	return strings.Join(parts, " ")
}

func formatArg(a any) string {
	switch x := a.(type) {
	case *groupedColumn:
		return "<grouped column " + strconv.Quote(x.col) + ">"
	case numericHandle:
		return "<np>"
	case *plotHandle:
		return "<plt>"
	case builtin:
		return "<builtin>"
	}
	return engine.FormatValue(a)
}

func builtinPrint(ev *evaluator, args []any) (any, error) {
	fmt.Fprint(ev.out, joinValues(args))
	return nil, nil
}

func builtinPrintln(ev *evaluator, args []any) (any, error) {
	fmt.Fprintln(ev.out, joinValues(args))
	return nil, nil
}

func builtinPrintf(ev *evaluator, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("printf needs a format string")
	}
	format, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("printf format must be a string")
	}
	verbs := printfVerbs(format)
	rest := make([]any, len(args)-1)
	for i, a := range args[1:] {
		switch x := a.(type) {
		case float64:
			rest[i] = x
			// Snippet numbers are floats; integer verbs get whole ones as int64.
			if i < len(verbs) && strings.ContainsRune("dxXobc", verbs[i]) && x == math.Trunc(x) && !math.IsInf(x, 0) {
				rest[i] = int64(x)
			}
		case string, bool, nil:
			rest[i] = a
		default:
			rest[i] = formatArg(a)
		}
	}
	fmt.Fprintf(ev.out, format, rest...)
	return nil, nil
}

// printfVerbs lists the verb of each operand-consuming directive in format.
func printfVerbs(format string) []rune {
	var out []rune
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		for i < len(format) && strings.IndexByte("+-# 0123456789.", format[i]) >= 0 {
			i++
		}
		if i < len(format) && format[i] != '%' {
			out = append(out, rune(format[i]))
		}
	}
	return out
}
