// Package compiler implements the single-pass emitter described by the
// core's lowering table: it walks the AST sequence the parser produces
// and emits a flat bytecode.Program the VM can dispatch directly.
//
// Grounded on sentra-language-sentra/internal/vm/vm.go's compile_expr
// match-per-node-kind shape (and the original ShortLang vm/mod.rs it was
// itself translated from), restructured around bytecode.Program's
// []int-operand Instr instead of a byte-packed chunk, and around a real
// lexical scope chain instead of the single global name->slot map the
// source carries (see DESIGN.md for why).
package compiler

import (
	"fmt"
	"math/big"

	"sentra/internal/ast"
	"sentra/internal/bytecode"
	"sentra/internal/errors"
	"sentra/internal/value"
)

// Compiler turns a sequence of top-level ast.Node into a bytecode.Program.
// One Compiler compiles exactly one program; it is not reusable.
type Compiler struct {
	prog   *bytecode.Program
	report *errors.Reporter

	slotCounter int
	// scopes is the compile-time name resolution chain: scopes[0] is the
	// global scope, and compiling a function body pushes one more frame
	// for its parameters and locals, popped again when the body ends. A
	// function defined inside another function's body adds a further
	// frame.
	scopes []map[string]int
}

func New(report *errors.Reporter) *Compiler {
	return &Compiler{
		prog:   bytecode.NewProgram(),
		report: report,
		scopes: []map[string]int{{}},
	}
}

// Compile lowers every top-level node in order and terminates the stream
// with Halt.
func (c *Compiler) Compile(nodes []ast.Node) *bytecode.Program {
	for _, n := range nodes {
		c.compileNode(n)
	}
	c.emit(bytecode.Span{}, bytecode.Halt)
	return c.prog
}

func (c *Compiler) emit(span bytecode.Span, op bytecode.OpCode, operands ...int) int {
	return c.prog.Emit(bytecode.New(op, span, operands...))
}

// CompileStatements lowers nodes onto the existing instruction stream
// without appending Halt, returning the half-open range of newly
// emitted instructions. The REPL uses this to run one line at a time
// against a Program and Compiler that persist across lines, so names
// and function definitions from earlier lines stay resolvable.
func (c *Compiler) CompileStatements(nodes []ast.Node) (start, end int) {
	start = len(c.prog.Instructions)
	for _, n := range nodes {
		c.compileNode(n)
	}
	end = len(c.prog.Instructions)
	return start, end
}

// Program returns the Program this Compiler has been emitting into.
func (c *Compiler) Program() *bytecode.Program { return c.prog }

func (c *Compiler) nextSlot() int {
	s := c.slotCounter
	c.slotCounter++
	return s
}

// resolve walks the scope chain innermost-to-outermost, mirroring the
// VM's own GetVar scope walk (§4.4).
func (c *Compiler) resolve(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if slot, ok := c.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (c *Compiler) declare(name string) int {
	slot := c.nextSlot()
	c.scopes[len(c.scopes)-1][name] = slot
	return slot
}

func (c *Compiler) unresolved(name string, span bytecode.Span) {
	c.report.Report(errors.NameUnresolved, fmt.Sprintf("variable %q not found", name), span)
}

func (c *Compiler) compileNode(n ast.Node) {
	switch nd := n.(type) {
	case *ast.Int:
		c.loadConst(nd.Span(), intConst(nd.Value))
	case *ast.Float:
		c.loadConst(nd.Span(), floatConst(nd.Value))
	case *ast.String:
		c.loadConst(nd.Span(), value.Str(nd.Value))
	case *ast.Bool:
		c.loadConst(nd.Span(), value.Bool(nd.Value))
	case *ast.Nil:
		c.loadConst(nd.Span(), value.Nil())
	case *ast.Ident:
		c.compileIdent(nd)
	case *ast.Set:
		c.compileSet(nd)
	case *ast.EqStmt:
		c.compileEqStmt(nd)
	case *ast.Binary:
		c.compileBinary(nd)
	case *ast.Index:
		c.compileNode(nd.Array)
		c.compileNode(nd.At)
		c.emit(nd.Span(), bytecode.Index)
	case *ast.Array:
		for _, e := range nd.Elems {
			c.compileNode(e)
		}
		c.emit(nd.Span(), bytecode.Array, len(nd.Elems))
	case *ast.Postfix:
		c.compilePostfix(nd)
	case *ast.Ternary:
		c.compileTernary(nd)
	case *ast.While:
		c.compileWhile(nd)
	case *ast.Return:
		c.compileNode(nd.Value)
		c.emit(nd.Span(), bytecode.Ret)
	case *ast.MultilineFunction:
		c.compileMultilineFunction(nd)
	case *ast.InlineFunction:
		c.compileInlineFunction(nd)
	case *ast.Call:
		c.compileCall(nd)
	default:
		panic(fmt.Sprintf("compiler: unhandled node %T", n))
	}
}

func (c *Compiler) loadConst(span bytecode.Span, v value.Value) {
	idx := c.prog.AddConstant(v)
	c.emit(span, bytecode.LoadConst, idx)
}

func intConst(text string) value.Value {
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		n = big.NewInt(0)
	}
	return value.IntFromBig(n)
}

func floatConst(text string) value.Value {
	f, ok := new(big.Float).SetPrec(value.FloatPrec).SetString(text)
	if !ok {
		f = new(big.Float).SetPrec(value.FloatPrec)
	}
	return value.FloatFromBig(f)
}

func (c *Compiler) compileIdent(nd *ast.Ident) {
	slot, ok := c.resolve(nd.Name)
	if !ok {
		c.unresolved(nd.Name, nd.Span())
		return
	}
	c.emit(nd.Span(), bytecode.GetVar, slot)
}

// compileSet implements §4.3's Set row, including the data-model note
// that re-binding a name to an existing function's name aliases its
// FunctionData rather than creating a variable.
func (c *Compiler) compileSet(nd *ast.Set) {
	if rhs, ok := nd.Value.(*ast.Ident); ok {
		if fd, exists := c.prog.Functions[rhs.Name]; exists {
			c.prog.Functions[nd.Name] = fd
			return
		}
	}
	if slot, ok := c.resolve(nd.Name); ok {
		c.compileNode(nd.Value)
		c.emit(nd.Span(), bytecode.Replace, slot)
		return
	}
	slot := c.declare(nd.Name)
	c.emit(nd.Span(), bytecode.MakeVar, slot)
	c.compileNode(nd.Value)
	c.emit(nd.Span(), bytecode.Replace, slot)
}

var compoundOp = map[string]bytecode.OpCode{
	"+": bytecode.Add,
	"-": bytecode.Sub,
	"*": bytecode.Mul,
	"/": bytecode.Div,
}

func (c *Compiler) compileEqStmt(nd *ast.EqStmt) {
	slot, ok := c.resolve(nd.Name)
	if !ok {
		c.unresolved(nd.Name, nd.Span())
		return
	}
	c.emit(nd.Span(), bytecode.GetVar, slot)
	c.compileNode(nd.Value)
	c.emit(nd.Span(), compoundOp[nd.Op])
	c.emit(nd.Span(), bytecode.Replace, slot)
}

var binOp = map[string]bytecode.OpCode{
	"+": bytecode.Add, "-": bytecode.Sub, "*": bytecode.Mul, "/": bytecode.Div,
	"%": bytecode.Mod, "**": bytecode.Pow, "^": bytecode.BinaryPow,
	"<": bytecode.Lt, ">": bytecode.Gt, "<=": bytecode.Le, ">=": bytecode.Ge,
	"==": bytecode.Eq, "!=": bytecode.Neq, "and": bytecode.And, "or": bytecode.Or,
}

func (c *Compiler) compileBinary(nd *ast.Binary) {
	c.compileNode(nd.Left)
	c.compileNode(nd.Right)
	c.emit(nd.Span(), binOp[nd.Op])
}

// compilePostfix resolves "++"/"--" operands directly to their slot id,
// the same way an Ident reference does, rather than pushing the name as
// a string constant for the VM to re-resolve through a separate global
// name table - see DESIGN.md's note on the scope-walk Open Question.
func (c *Compiler) compilePostfix(nd *ast.Postfix) {
	switch nd.Op {
	case "++", "--":
		ident, ok := nd.Operand.(*ast.Ident)
		if !ok {
			c.report.Report(errors.NameUnresolved, "++/-- requires a variable operand", nd.Span())
			return
		}
		slot, ok := c.resolve(ident.Name)
		if !ok {
			c.unresolved(ident.Name, nd.Span())
			return
		}
		if nd.Op == "++" {
			c.emit(nd.Span(), bytecode.Inc, slot)
		} else {
			c.emit(nd.Span(), bytecode.Dec, slot)
		}
	case "!":
		c.compileNode(nd.Operand)
		c.emit(nd.Span(), bytecode.Factorial)
	}
}

// compileTernary implements §4.3's back-patching recipe: TernaryStart
// pops the condition and, if false, jumps to the else branch; the then
// branch ends with an unconditional jump past the else branch.
func (c *Compiler) compileTernary(nd *ast.Ternary) {
	c.compileNode(nd.Cond)
	startIdx := c.emit(nd.Span(), bytecode.TernaryStart, 0)
	for _, s := range nd.Then {
		c.compileNode(s)
	}
	jmpIdx := c.emit(nd.Span(), bytecode.Jmp, 0)
	elseStart := len(c.prog.Instructions)
	c.prog.Patch(startIdx, elseStart)
	for _, s := range nd.Else {
		c.compileNode(s)
	}
	c.prog.Patch(jmpIdx, len(c.prog.Instructions))
}

// compileWhile implements §4.3's loop recipe: While pops the condition
// each iteration and jumps past the body once it is false.
func (c *Compiler) compileWhile(nd *ast.While) {
	loopStart := len(c.prog.Instructions)
	c.compileNode(nd.Cond)
	whileIdx := c.emit(nd.Span(), bytecode.While, 0)
	for _, s := range nd.Body {
		c.compileNode(s)
	}
	c.emit(nd.Span(), bytecode.Jmp, loopStart)
	c.prog.Patch(whileIdx, len(c.prog.Instructions))
}

func containsReturn(nodes []ast.Node) bool {
	for _, n := range nodes {
		switch t := n.(type) {
		case *ast.Return:
			return true
		case *ast.While:
			if containsReturn(t.Body) {
				return true
			}
		case *ast.Ternary:
			if containsReturn(t.Then) || containsReturn(t.Else) {
				return true
			}
		}
	}
	return false
}

func (c *Compiler) compileMultilineFunction(nd *ast.MultilineFunction) {
	c.lowerFunction(nd.Span(), nd.Name, nd.Params, containsReturn(nd.Body), func() {
		for _, s := range nd.Body {
			c.compileNode(s)
		}
	})
}

func (c *Compiler) compileInlineFunction(nd *ast.InlineFunction) {
	c.lowerFunction(nd.Span(), nd.Name, nd.Params, true, func() {
		c.compileNode(&ast.Return{Base: nd.Base, Value: nd.Body})
	})
}

// lowerFunction implements §4.3's shared multi-line/inline protocol: a
// fresh scope with pre-allocated parameter slots, a name-then-Function
// prologue the VM uses to skip the body during top-level fall-through,
// the compiled body, and a trailing Ret as a fallthrough safety net for
// bodies that do not explicitly return.
func (c *Compiler) lowerFunction(span bytecode.Span, name string, params []string, returns bool, compileBody func()) {
	scope := map[string]int{}
	paramData := make([]bytecode.Param, 0, len(params))
	for _, p := range params {
		slot := c.nextSlot()
		scope[p] = slot
		paramData = append(paramData, bytecode.Param{Name: p, SlotID: slot})
	}
	scopeIdx := c.prog.ScopeCount
	c.prog.ScopeCount++

	c.loadConst(span, value.Str(name))
	fnIdx := c.emit(span, bytecode.Function, 0)
	bodyStart := len(c.prog.Instructions)

	c.scopes = append(c.scopes, scope)
	compileBody()
	c.scopes = c.scopes[:len(c.scopes)-1]
	c.emit(span, bytecode.Ret)

	bodyEnd := len(c.prog.Instructions)
	c.prog.Patch(fnIdx, bodyEnd)

	c.prog.Functions[name] = &bytecode.FunctionData{
		Name:       name,
		Params:     paramData,
		InstrStart: bodyStart,
		InstrEnd:   bodyEnd,
		ScopeIdx:   scopeIdx,
		Returns:    returns,
	}
}

var builtinOp = map[string]bytecode.OpCode{
	"$":     bytecode.Println,
	"$$":    bytecode.Print,
	"input": bytecode.Input,
	"to_i":  bytecode.ToInt,
	"to_f":  bytecode.ToFloat,
	"len":   bytecode.Len,
	"type":  bytecode.TypeOf,
}

// compileCall implements §4.3's built-in/generic call split. Built-ins
// lower to a single dedicated opcode; everything else - user functions
// and the native extensions registered alongside them (§4.9) - goes
// through FnCall, which the VM protocol (§4.4) guarantees nets exactly
// +1 on the operand stack whether or not the callee returns a value, so
// no extra compiler-side push is needed here.
func (c *Compiler) compileCall(nd *ast.Call) {
	if op, ok := builtinOp[nd.Name]; ok {
		if len(nd.Args) > 0 {
			c.compileNode(nd.Args[0])
		} else {
			c.loadConst(nd.Span(), value.Nil())
		}
		c.emit(nd.Span(), op)
		return
	}
	for _, a := range nd.Args {
		c.compileNode(a)
	}
	c.loadConst(nd.Span(), value.Str(nd.Name))
	c.emit(nd.Span(), bytecode.FnCall)
}
