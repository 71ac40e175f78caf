package sandbox

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// COMPILE — Parse a snippet and check it against the allowed subset
// ============================================================================
// Snippets are Go statements. They are wrapped in a function body, parsed
// with go/parser and walked once: anything outside assignments, call
// statements and plain expressions is rejected before a single node runs.
// ============================================================================

const (
	wrapHead      = "package snippet\nfunc _() {\n"
	wrapTail      = "\n}\n"
	wrapHeadLines = 2
)

// Program is a parsed, validated snippet.
type Program struct {
	fset *token.FileSet
	body []ast.Stmt
}

// Compile parses src and validates every node. Failures are
// *engine.Failure values of kind ErrInvalidSyntax.
func Compile(src string) (*Program, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "snippet.go", wrapHead+src+wrapTail, parser.SkipObjectResolution)
	if err != nil {
		return nil, engine.Failf(engine.ErrInvalidSyntax, "%s", syntaxMessage(err))
	}
	if len(file.Decls) != 1 {
		return nil, engine.Failf(engine.ErrInvalidSyntax, "snippet must be a sequence of statements")
	}
	fn, ok := file.Decls[0].(*ast.FuncDecl)
	if !ok || fn.Name.Name != "_" || fn.Body == nil {
		return nil, engine.Failf(engine.ErrInvalidSyntax, "snippet must be a sequence of statements")
	}

	p := &Program{fset: fset, body: fn.Body.List}
	for _, s := range p.body {
		if err := p.checkStmt(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Check reports whether src would compile.
func Check(src string) error {
	_, err := Compile(src)
	return err
}

func syntaxMessage(err error) string {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		line := first.Pos.Line - wrapHeadLines
		if line < 1 {
			line = 1
		}
		msg := fmt.Sprintf("line %d:%d: %s", line, first.Pos.Column, first.Msg)
		if len(list) > 1 {
			msg += fmt.Sprintf(" (and %d more errors)", len(list)-1)
		}
		return msg
	}
	return err.Error()
}

// line maps a node back to its line in the original snippet.
func (p *Program) line(n ast.Node) int {
	return p.fset.Position(n.Pos()).Line - wrapHeadLines
}

func (p *Program) reject(n ast.Node, what string) error {
	return engine.Failf(engine.ErrInvalidSyntax, "line %d: %s is not allowed in snippets", p.line(n), what)
}

func (p *Program) checkStmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.EmptyStmt:
		return nil
	case *ast.ExprStmt:
		if _, ok := s.X.(*ast.CallExpr); !ok {
			return p.reject(s, "an expression whose value is discarded")
		}
		return p.checkExpr(s.X)
	case *ast.AssignStmt:
		switch s.Tok {
		case token.ASSIGN, token.DEFINE, token.ADD_ASSIGN, token.SUB_ASSIGN, token.MUL_ASSIGN, token.QUO_ASSIGN:
		default:
			return p.reject(s, "the "+s.Tok.String()+" operator")
		}
		if len(s.Lhs) != len(s.Rhs) {
			return p.reject(s, "multi-value assignment")
		}
		for _, lhs := range s.Lhs {
			switch l := lhs.(type) {
			case *ast.Ident:
			case *ast.IndexExpr:
				if _, ok := l.X.(*ast.Ident); !ok || s.Tok != token.ASSIGN {
					return p.reject(l, "this assignment target")
				}
				if err := p.checkExpr(l.Index); err != nil {
					return err
				}
			default:
				return p.reject(lhs, "this assignment target")
			}
		}
		for _, rhs := range s.Rhs {
			if err := p.checkExpr(rhs); err != nil {
				return err
			}
		}
		return nil
	}
	return p.reject(s, describeNode(s))
}

var allowedBinary = map[token.Token]bool{
	token.ADD: true, token.SUB: true, token.MUL: true, token.QUO: true, token.REM: true,
	token.EQL: true, token.NEQ: true, token.LSS: true, token.LEQ: true, token.GTR: true, token.GEQ: true,
	token.LAND: true, token.LOR: true, token.AND: true, token.OR: true,
}

func (p *Program) checkExpr(e ast.Expr) error {
	switch e := e.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.INT, token.FLOAT, token.STRING:
			return nil
		}
		return p.reject(e, "a "+e.Kind.String()+" literal")
	case *ast.Ident:
		return nil
	case *ast.ParenExpr:
		return p.checkExpr(e.X)
	case *ast.UnaryExpr:
		switch e.Op {
		case token.SUB, token.ADD, token.NOT:
			return p.checkExpr(e.X)
		}
		return p.reject(e, "the unary "+e.Op.String()+" operator")
	case *ast.BinaryExpr:
		if !allowedBinary[e.Op] {
			return p.reject(e, "the "+e.Op.String()+" operator")
		}
		if err := p.checkExpr(e.X); err != nil {
			return err
		}
		return p.checkExpr(e.Y)
	case *ast.SelectorExpr:
		return p.checkExpr(e.X)
	case *ast.IndexExpr:
		if err := p.checkExpr(e.X); err != nil {
			return err
		}
		return p.checkExpr(e.Index)
	case *ast.CallExpr:
		if e.Ellipsis.IsValid() {
			return p.reject(e, "a variadic spread")
		}
		switch e.Fun.(type) {
		case *ast.Ident, *ast.SelectorExpr:
		default:
			return p.reject(e, "calling a computed function")
		}
		if err := p.checkExpr(e.Fun); err != nil {
			return err
		}
		for _, a := range e.Args {
			if err := p.checkExpr(a); err != nil {
				return err
			}
		}
		return nil
	}
	return p.reject(e, describeNode(e))
}

func describeNode(n ast.Node) string {
	switch n := n.(type) {
	case *ast.ForStmt, *ast.RangeStmt:
		return "a for loop"
	case *ast.IfStmt:
		return "an if statement"
	case *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
		return "a switch or select statement"
	case *ast.ReturnStmt:
		return "a return statement"
	case *ast.GoStmt:
		return "a go statement"
	case *ast.DeferStmt:
		return "a defer statement"
	case *ast.DeclStmt:
		return "a declaration"
	case *ast.BranchStmt:
		return "a " + n.Tok.String() + " statement"
	case *ast.LabeledStmt:
		return "a labeled statement"
	case *ast.BlockStmt:
		return "a nested block"
	case *ast.IncDecStmt:
		return "the " + n.Tok.String() + " statement"
	case *ast.SendStmt:
		return "a channel send"
	case *ast.FuncLit:
		return "a function literal"
	case *ast.CompositeLit:
		return "a composite literal"
	case *ast.SliceExpr:
		return "a slice expression"
	case *ast.TypeAssertExpr:
		return "a type assertion"
	case *ast.StarExpr:
		return "a pointer expression"
	case *ast.KeyValueExpr:
		return "a key-value expression"
	case *ast.IndexListExpr:
		return "a multi-index expression"
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.InterfaceType, *ast.StructType:
		return "a type expression"
	}
	return fmt.Sprintf("%T", n)
}
