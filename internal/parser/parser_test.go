package parser

import (
	"testing"

	"sentra/internal/ast"
	"sentra/internal/lexer"
)

func parse(t *testing.T, src string) []ast.Node {
	t.Helper()
	toks, err := lexer.New(src).Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	nodes, err := New(toks).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return nodes
}

func TestParseSet(t *testing.T) {
	nodes := parse(t, "x = 5")
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(nodes))
	}
	set, ok := nodes[0].(*ast.Set)
	if !ok {
		t.Fatalf("got %T, want *ast.Set", nodes[0])
	}
	if set.Name != "x" {
		t.Errorf("Name = %q, want x", set.Name)
	}
	lit, ok := set.Value.(*ast.Int)
	if !ok || lit.Value != "5" {
		t.Errorf("Value = %#v, want Int(5)", set.Value)
	}
}

func TestParseEqStmt(t *testing.T) {
	nodes := parse(t, "x += 1")
	eq, ok := nodes[0].(*ast.EqStmt)
	if !ok {
		t.Fatalf("got %T, want *ast.EqStmt", nodes[0])
	}
	if eq.Name != "x" || eq.Op != "+" {
		t.Errorf("got name=%q op=%q", eq.Name, eq.Op)
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	// 1 + 2 * 3 should parse as 1 + (2 * 3)
	nodes := parse(t, "1 + 2 * 3")
	bin, ok := nodes[0].(*ast.Binary)
	if !ok {
		t.Fatalf("got %T, want *ast.Binary", nodes[0])
	}
	if bin.Op != "+" {
		t.Fatalf("top operator = %q, want +", bin.Op)
	}
	rhs, ok := bin.Right.(*ast.Binary)
	if !ok || rhs.Op != "*" {
		t.Fatalf("right operand = %#v, want a * binary", bin.Right)
	}
}

func TestParseComparisonLowerThanArithmetic(t *testing.T) {
	// 1 + 2 < 4 should parse as (1 + 2) < 4
	nodes := parse(t, "1 + 2 < 4")
	bin, ok := nodes[0].(*ast.Binary)
	if !ok || bin.Op != "<" {
		t.Fatalf("got %#v, want top-level <", nodes[0])
	}
	if _, ok := bin.Left.(*ast.Binary); !ok {
		t.Errorf("left operand should be the + subexpression, got %#v", bin.Left)
	}
}

func TestParseLogicalLowestPrecedence(t *testing.T) {
	// a == 1 and b == 2 should parse as (a==1) and (b==2)
	nodes := parse(t, "a == 1 and b == 2")
	bin, ok := nodes[0].(*ast.Binary)
	if !ok || bin.Op != "and" {
		t.Fatalf("got %#v, want top-level and", nodes[0])
	}
}

func TestParseIndexAndPostfix(t *testing.T) {
	nodes := parse(t, "arr[0]++")
	post, ok := nodes[0].(*ast.Postfix)
	if !ok || post.Op != "++" {
		t.Fatalf("got %#v, want Postfix ++", nodes[0])
	}
	idx, ok := post.Operand.(*ast.Index)
	if !ok {
		t.Fatalf("operand = %#v, want *ast.Index", post.Operand)
	}
	if ident, ok := idx.Array.(*ast.Ident); !ok || ident.Name != "arr" {
		t.Errorf("indexed array = %#v", idx.Array)
	}
}

func TestParseArrayLiteral(t *testing.T) {
	nodes := parse(t, "[1, 2, 3]")
	arr, ok := nodes[0].(*ast.Array)
	if !ok || len(arr.Elems) != 3 {
		t.Fatalf("got %#v", nodes[0])
	}
}

func TestParseFunctionCall(t *testing.T) {
	nodes := parse(t, "add(1, 2)")
	call, ok := nodes[0].(*ast.Call)
	if !ok || call.Name != "add" || len(call.Args) != 2 {
		t.Fatalf("got %#v", nodes[0])
	}
}

func TestParseInlineFunction(t *testing.T) {
	nodes := parse(t, "sq x = x * x")
	fn, ok := nodes[0].(*ast.InlineFunction)
	if !ok {
		t.Fatalf("got %T, want *ast.InlineFunction", nodes[0])
	}
	if fn.Name != "sq" || len(fn.Params) != 1 || fn.Params[0] != "x" {
		t.Errorf("got name=%q params=%v", fn.Name, fn.Params)
	}
}

func TestParseMultilineFunction(t *testing.T) {
	nodes := parse(t, "fn add(a, b) {\n return a + b\n}")
	fn, ok := nodes[0].(*ast.MultilineFunction)
	if !ok {
		t.Fatalf("got %T, want *ast.MultilineFunction", nodes[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("got name=%q params=%v", fn.Name, fn.Params)
	}
	if len(fn.Body) != 1 {
		t.Fatalf("body = %#v, want 1 statement", fn.Body)
	}
	if _, ok := fn.Body[0].(*ast.Return); !ok {
		t.Errorf("body[0] = %#v, want *ast.Return", fn.Body[0])
	}
}

func TestParseWhileLoop(t *testing.T) {
	nodes := parse(t, "while x < 5 {\n x++\n}")
	w, ok := nodes[0].(*ast.While)
	if !ok {
		t.Fatalf("got %T, want *ast.While", nodes[0])
	}
	if len(w.Body) != 1 {
		t.Fatalf("body = %#v", w.Body)
	}
}

func TestParseTernaryWithBlocks(t *testing.T) {
	nodes := parse(t, `x ? { 1 } : { 2 }`)
	tern, ok := nodes[0].(*ast.Ternary)
	if !ok {
		t.Fatalf("got %T, want *ast.Ternary", nodes[0])
	}
	if len(tern.Then) != 1 || len(tern.Else) != 1 {
		t.Errorf("then=%v else=%v", tern.Then, tern.Else)
	}
}

func TestParseFactorialPostfix(t *testing.T) {
	nodes := parse(t, "5!")
	post, ok := nodes[0].(*ast.Postfix)
	if !ok || post.Op != "!" {
		t.Fatalf("got %#v", nodes[0])
	}
}

func TestParseMultipleStatementsSeparatedByNewline(t *testing.T) {
	nodes := parse(t, "x = 1\ny = 2\n")
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
}

func TestParseUnexpectedTokenErrors(t *testing.T) {
	toks, err := lexer.New(")").Scan()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	if _, err := New(toks).Parse(); err == nil {
		t.Error("expected a parse error for a stray )")
	}
}
