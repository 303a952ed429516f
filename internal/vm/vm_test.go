package vm

import (
	"bytes"
	"strings"
	"testing"

	"sentra/internal/ast"
	"sentra/internal/compiler"
	"sentra/internal/errors"
	"sentra/internal/value"
)

// runProgram compiles nodes, runs them against a fresh VM with stdout
// captured, and returns everything written to stdout.
func runProgram(t *testing.T, nodes []ast.Node) string {
	t.Helper()
	report := errors.New("", "<test>")
	prog := compiler.New(report).Compile(nodes)
	machine := New(prog, report)
	var out bytes.Buffer
	machine.SetIO(&out, strings.NewReader(""))
	machine.Run()
	return out.String()
}

func println_(v ast.Node) *ast.Call { return &ast.Call{Name: "$", Args: []ast.Node{v}} }

func TestArithmeticEndToEnd(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
		want string
	}{
		{"add", &ast.Binary{Left: &ast.Int{Value: "10"}, Op: "+", Right: &ast.Int{Value: "20"}}, "30\n"},
		{"sub", &ast.Binary{Left: &ast.Int{Value: "50"}, Op: "-", Right: &ast.Int{Value: "20"}}, "30\n"},
		{"mul", &ast.Binary{Left: &ast.Int{Value: "5"}, Op: "*", Right: &ast.Int{Value: "6"}}, "30\n"},
		{"div truncates", &ast.Binary{Left: &ast.Int{Value: "7"}, Op: "/", Right: &ast.Int{Value: "2"}}, "3\n"},
		{"mod", &ast.Binary{Left: &ast.Int{Value: "17"}, Op: "%", Right: &ast.Int{Value: "5"}}, "2\n"},
		{"pow is float", &ast.Binary{Left: &ast.Int{Value: "2"}, Op: "**", Right: &ast.Int{Value: "10"}}, "1024\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runProgram(t, []ast.Node{println_(tt.node)})
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVariableBindingAndMutation(t *testing.T) {
	nodes := []ast.Node{
		&ast.Set{Name: "x", Value: &ast.Int{Value: "1"}},
		&ast.Postfix{Op: "++", Operand: &ast.Ident{Name: "x"}},
		&ast.Postfix{Op: "++", Operand: &ast.Ident{Name: "x"}},
		println_(&ast.Ident{Name: "x"}),
	}
	got := runProgram(t, nodes)
	if got != "3\n" {
		t.Errorf("got %q, want %q", got, "3\n")
	}
}

func TestArrayCreateAndIndex(t *testing.T) {
	arr := &ast.Array{Elems: []ast.Node{
		&ast.Int{Value: "10"}, &ast.Int{Value: "20"}, &ast.Int{Value: "30"},
	}}
	nodes := []ast.Node{
		println_(&ast.Index{Array: arr, At: &ast.Int{Value: "1"}}),
	}
	got := runProgram(t, nodes)
	if got != "20\n" {
		t.Errorf("got %q, want %q", got, "20\n")
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	nodes := []ast.Node{
		&ast.Set{Name: "i", Value: &ast.Int{Value: "0"}},
		&ast.Set{Name: "sum", Value: &ast.Int{Value: "0"}},
		&ast.While{
			Cond: &ast.Binary{Left: &ast.Ident{Name: "i"}, Op: "<", Right: &ast.Int{Value: "5"}},
			Body: []ast.Node{
				&ast.EqStmt{Name: "sum", Op: "+", Value: &ast.Ident{Name: "i"}},
				&ast.Postfix{Op: "++", Operand: &ast.Ident{Name: "i"}},
			},
		},
		println_(&ast.Ident{Name: "sum"}),
	}
	got := runProgram(t, nodes)
	if got != "10\n" { // 0+1+2+3+4
		t.Errorf("got %q, want %q", got, "10\n")
	}
}

func TestMultilineFunctionCallAndReturn(t *testing.T) {
	nodes := []ast.Node{
		&ast.MultilineFunction{
			Name:   "add",
			Params: []string{"a", "b"},
			Body: []ast.Node{
				&ast.Return{Value: &ast.Binary{Left: &ast.Ident{Name: "a"}, Op: "+", Right: &ast.Ident{Name: "b"}}},
			},
		},
		println_(&ast.Call{Name: "add", Args: []ast.Node{&ast.Int{Value: "3"}, &ast.Int{Value: "4"}}}),
	}
	got := runProgram(t, nodes)
	if got != "7\n" {
		t.Errorf("got %q, want %q", got, "7\n")
	}
}

func TestInlineFunctionCall(t *testing.T) {
	nodes := []ast.Node{
		&ast.InlineFunction{
			Name:   "sq",
			Params: []string{"x"},
			Body:   &ast.Binary{Left: &ast.Ident{Name: "x"}, Op: "*", Right: &ast.Ident{Name: "x"}},
		},
		println_(&ast.Call{Name: "sq", Args: []ast.Node{&ast.Int{Value: "6"}}}),
	}
	got := runProgram(t, nodes)
	if got != "36\n" {
		t.Errorf("got %q, want %q", got, "36\n")
	}
}

func TestFunctionWithNoReturnYieldsNil(t *testing.T) {
	nodes := []ast.Node{
		&ast.MultilineFunction{
			Name:   "noop",
			Params: nil,
			Body:   nil, // no statements, no Return: falls straight through to Ret
		},
		println_(&ast.Call{Name: "noop", Args: nil}),
	}
	got := runProgram(t, nodes)
	if got != "nil\n" {
		t.Errorf("got %q, want %q", got, "nil\n")
	}
}

func TestTernaryBranches(t *testing.T) {
	build := func(cond bool) []ast.Node {
		return []ast.Node{
			println_(&ast.Ternary{
				Cond: &ast.Bool{Value: cond},
				Then: []ast.Node{&ast.String{Value: "yes"}},
				Else: []ast.Node{&ast.String{Value: "no"}},
			}),
		}
	}
	if got := runProgram(t, build(true)); got != "yes\n" {
		t.Errorf("true branch: got %q", got)
	}
	if got := runProgram(t, build(false)); got != "no\n" {
		t.Errorf("false branch: got %q", got)
	}
}

func TestFactorial(t *testing.T) {
	got := runProgram(t, []ast.Node{println_(&ast.Postfix{Op: "!", Operand: &ast.Int{Value: "5"}})})
	if got != "120\n" {
		t.Errorf("got %q, want %q", got, "120\n")
	}
}

func TestNativeFunctionRegisteredThroughFnCall(t *testing.T) {
	report := errors.New("", "<test>")
	prog := compiler.New(report).Compile([]ast.Node{
		println_(&ast.Call{Name: "double", Args: []ast.Node{&ast.Int{Value: "21"}}}),
	})
	machine := New(prog, report)
	var out bytes.Buffer
	machine.SetIO(&out, strings.NewReader(""))
	machine.RegisterNative("double", Native{
		Arity: 1,
		Fn: func(args []value.Value) (value.Value, error) {
			n, _ := value.ToInt(args[0])
			doubled, _ := value.Mul(n, value.Int(2))
			return doubled, nil
		},
	})
	machine.Run()
	if out.String() != "42\n" {
		t.Errorf("got %q, want %q", out.String(), "42\n")
	}
}

func TestRunRangeSupportsIncrementalExecution(t *testing.T) {
	report := errors.New("", "<repl>")
	c := compiler.New(report)
	machine := New(c.Program(), report)
	var out bytes.Buffer
	machine.SetIO(&out, strings.NewReader(""))

	start, end := c.CompileStatements([]ast.Node{&ast.Set{Name: "x", Value: &ast.Int{Value: "5"}}})
	machine.RunRange(start, end)

	start, end = c.CompileStatements([]ast.Node{println_(&ast.Ident{Name: "x"})})
	machine.RunRange(start, end)

	if out.String() != "5\n" {
		t.Errorf("got %q, want %q", out.String(), "5\n")
	}
}

func TestDisplayStringConcat(t *testing.T) {
	got := runProgram(t, []ast.Node{
		println_(&ast.Binary{Left: &ast.String{Value: "n="}, Op: "+", Right: &ast.Int{Value: "5"}}),
	})
	if got != "n=5\n" {
		t.Errorf("got %q, want %q", got, "n=5\n")
	}
}
