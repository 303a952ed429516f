// Package vm implements the stack-based interpreter that dispatches a
// bytecode.Program: a linear program counter, an operand stack of heap
// pointers, a scope-indexed variable store, a call stack of return
// addresses, and the GC trigger cadence.
//
// Grounded on sentra-language-sentra/internal/vm's run_byte dispatch
// loop and the original ShortLang vm/vm.rs it was translated from,
// rebuilt around the Ret+call-stack protocol spec.md's Open Questions
// section resolves toward (the source's two variants disagree; see
// DESIGN.md) and around bytecode.Program's flat []int-operand Instr.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"sentra/internal/bytecode"
	"sentra/internal/errors"
	"sentra/internal/heap"
	"sentra/internal/value"
)

// Native is a builtin extension function (§4.9): registered into the
// same function table namespace as user functions, invoked the same
// way, through FnCall.
type Native struct {
	Arity int
	Fn    func(args []value.Value) (value.Value, error)
}

// scope is a slot-id -> value-pointer map. A present key with a nil
// pointer is "unbound" (declared, no value yet); an absent key is never
// valid at a GetVar/Replace/Inc/Dec site in a well-formed program.
type scope map[int]*value.Value

type frame struct {
	pcBefore  int
	prevScope int
}

// VM executes one compiled Program. It is not safe for concurrent use.
type VM struct {
	prog   *bytecode.Program
	heap   *heap.Heap
	report *errors.Reporter

	stack     []*value.Value
	scopes    []scope
	callStack []frame
	curScope  int
	pc        int
	iteration int

	natives map[string]Native

	out   *bufio.Writer
	in    *bufio.Reader
	trace bool
}

// New builds a VM over prog, pre-registering every function's parameter
// slots as unbound in their owning scope so the "slot ids referenced at
// execution time exist in at least one scope" invariant holds even
// before the function is ever called.
func New(prog *bytecode.Program, report *errors.Reporter) *VM {
	scopes := make([]scope, prog.ScopeCount)
	for i := range scopes {
		scopes[i] = scope{}
	}
	for _, fd := range prog.Functions {
		for _, p := range fd.Params {
			scopes[fd.ScopeIdx][p.SlotID] = nil
		}
	}
	return &VM{
		prog:    prog,
		heap:    heap.New(),
		report:  report,
		scopes:  scopes,
		natives: map[string]Native{},
		out:     bufio.NewWriter(os.Stdout),
		in:      bufio.NewReader(os.Stdin),
	}
}

// SetIO redirects stdout/stdin, used by tests and the REPL's scripted
// fixtures.
func (vm *VM) SetIO(out io.Writer, in io.Reader) {
	vm.out = bufio.NewWriter(out)
	vm.in = bufio.NewReader(in)
}

// RegisterNative wires a builtin extension (§4.9) into the function
// table namespace FnCall dispatches through.
func (vm *VM) RegisterNative(name string, n Native) {
	vm.natives[name] = n
}

// SetTrace enables per-instruction logging via the stdlib log package,
// wired to the CLI's -trace flag.
func (vm *VM) SetTrace(on bool) { vm.trace = on }

func (vm *VM) push(p *value.Value) { vm.stack = append(vm.stack, p) }

func (vm *VM) pop() *value.Value {
	n := len(vm.stack) - 1
	p := vm.stack[n]
	vm.stack = vm.stack[:n]
	return p
}

func (vm *VM) alloc(v value.Value) *value.Value { return vm.heap.Alloc(v) }

// lookupVar walks every scope from highest index to 0, giving the
// currently executing function's locals priority over globals - the
// scope-walk §4.4 specifies for GetVar.
func (vm *VM) lookupVar(slot int) (*value.Value, bool) {
	for i := len(vm.scopes) - 1; i >= 0; i-- {
		if p, ok := vm.scopes[i][slot]; ok {
			return p, true
		}
	}
	return nil, false
}

// Run dispatches instructions from pc 0 until Halt, collecting garbage
// at the configured trigger and unconditionally once more at the end.
func (vm *VM) Run() {
	for vm.pc < len(vm.prog.Instructions) {
		vm.iteration++
		if vm.iteration == heap.GCTrigger {
			vm.gc()
		}
		instr := vm.prog.Instructions[vm.pc]
		if vm.trace {
			log.Printf("pc=%d %s %v", vm.pc, instr.Op, instr.Operands)
		}
		if vm.dispatch(instr) {
			break
		}
		vm.pc++
	}
	vm.out.Flush()
	vm.gc()
}

// RunRange executes instructions in [start, end) against this VM's
// persistent state, first growing the scope table to match any scopes
// the compiler has added since the last call. Used by the REPL to run
// one freshly compiled line at a time against a long-lived VM.
func (vm *VM) RunRange(start, end int) {
	vm.growScopes()
	vm.pc = start
	for vm.pc < end {
		vm.iteration++
		if vm.iteration == heap.GCTrigger {
			vm.gc()
		}
		instr := vm.prog.Instructions[vm.pc]
		if vm.trace {
			log.Printf("pc=%d %s %v", vm.pc, instr.Op, instr.Operands)
		}
		if vm.dispatch(instr) {
			break
		}
		vm.pc++
	}
	vm.out.Flush()
}

func (vm *VM) growScopes() {
	for len(vm.scopes) < vm.prog.ScopeCount {
		vm.scopes = append(vm.scopes, scope{})
	}
	for _, fd := range vm.prog.Functions {
		for _, p := range fd.Params {
			if _, ok := vm.scopes[fd.ScopeIdx][p.SlotID]; !ok {
				vm.scopes[fd.ScopeIdx][p.SlotID] = nil
			}
		}
	}
}

func (vm *VM) gc() {
	for _, p := range vm.stack {
		vm.heap.Mark(p)
	}
	for _, sc := range vm.scopes {
		for _, p := range sc {
			if p != nil {
				vm.heap.Mark(p)
			}
		}
	}
	vm.heap.Sweep()
}

func (vm *VM) fatal(kind errors.Kind, msg string, span bytecode.Span) {
	vm.out.Flush()
	vm.report.Report(kind, msg, span)
}

// dispatch executes one instruction and reports whether the run should
// stop (Halt, or a fatal error once the Reporter's osExit indirection is
// mocked out in tests).
func (vm *VM) dispatch(instr bytecode.Instr) bool {
	switch instr.Op {
	case bytecode.LoadConst:
		vm.push(vm.alloc(vm.prog.Constants[instr.Arg(0)].Clone()))

	case bytecode.MakeVar:
		vm.scopes[vm.curScope][instr.Arg(0)] = nil

	case bytecode.Replace:
		vm.scopes[vm.curScope][instr.Arg(0)] = vm.pop()

	case bytecode.GetVar:
		ptr, ok := vm.lookupVar(instr.Arg(0))
		if !ok {
			vm.fatal(errors.NameUnresolved, "variable slot not bound in any visible scope", instr.Span)
			return true
		}
		if ptr == nil {
			vm.push(vm.alloc(value.Nil()))
		} else {
			vm.push(ptr)
		}

	case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod, bytecode.Pow, bytecode.BinaryPow:
		return vm.binaryArith(instr)

	case bytecode.Lt, bytecode.Gt, bytecode.Le, bytecode.Ge:
		return vm.binaryCompare(instr)

	case bytecode.Eq:
		b, a := vm.pop(), vm.pop()
		vm.push(vm.alloc(value.Eq(*a, *b)))

	case bytecode.Neq:
		b, a := vm.pop(), vm.pop()
		vm.push(vm.alloc(value.Neq(*a, *b)))

	case bytecode.And:
		b, a := vm.pop(), vm.pop()
		vm.push(vm.alloc(value.And(*a, *b)))

	case bytecode.Or:
		b, a := vm.pop(), vm.pop()
		vm.push(vm.alloc(value.Or(*a, *b)))

	case bytecode.Inc, bytecode.Dec:
		ptr, ok := vm.lookupVar(instr.Arg(0))
		if !ok || ptr == nil {
			vm.fatal(errors.NameUnresolved, "variable slot not bound in any visible scope", instr.Span)
			return true
		}
		var mutated bool
		if instr.Op == bytecode.Inc {
			mutated = value.Inc(ptr)
		} else {
			mutated = value.Dec(ptr)
		}
		if !mutated {
			vm.fatal(errors.DomainError, fmt.Sprintf("cannot inc/dec value of type %s", ptr.TypeName()), instr.Span)
			return true
		}

	case bytecode.Factorial:
		a := vm.pop()
		result, ok := value.Factorial(*a)
		if !ok {
			vm.fatal(errors.DomainError, fmt.Sprintf("cannot take factorial of type %s", a.TypeName()), instr.Span)
			return true
		}
		vm.push(vm.alloc(result))

	case bytecode.Array:
		n := instr.Arg(0)
		elems := make([]value.Value, n)
		for i := n - 1; i >= 0; i-- {
			elems[i] = *vm.pop()
		}
		vm.push(vm.alloc(value.Array(elems)))

	case bytecode.Index:
		return vm.index(instr)

	case bytecode.Print:
		v := vm.pop()
		fmt.Fprint(vm.out, v.Display())
		if err := vm.out.Flush(); err != nil {
			vm.fatal(errors.IOError, err.Error(), instr.Span)
			return true
		}

	case bytecode.Println:
		v := vm.pop()
		fmt.Fprintln(vm.out, v.Display())

	case bytecode.Input:
		return vm.input(instr)

	case bytecode.Len:
		v := vm.pop()
		if v.Kind != value.KindArray {
			vm.fatal(errors.DomainError, fmt.Sprintf("len: not an array (%s)", v.TypeName()), instr.Span)
			return true
		}
		vm.push(vm.alloc(value.Int(int64(len(v.Arr)))))

	case bytecode.ToInt:
		return vm.coerce(instr, value.ToInt)

	case bytecode.ToFloat:
		return vm.coerce(instr, value.ToFloat)

	case bytecode.TypeOf:
		v := vm.pop()
		vm.push(vm.alloc(value.Str(v.TypeName())))

	case bytecode.Function:
		vm.pop() // function name; already recorded in Program.Functions at compile time
		vm.pc = instr.Arg(0) - 1

	case bytecode.FnCall:
		return vm.call(instr)

	case bytecode.Ret:
		n := len(vm.callStack) - 1
		f := vm.callStack[n]
		vm.callStack = vm.callStack[:n]
		vm.pc = f.pcBefore
		vm.curScope = f.prevScope

	case bytecode.Jmp:
		vm.pc = instr.Arg(0) - 1

	case bytecode.TernaryStart, bytecode.While:
		cond := vm.pop()
		if !cond.Truthy() {
			vm.pc = instr.Arg(0) - 1
		}

	case bytecode.Halt:
		return true

	default:
		panic(fmt.Sprintf("vm: unhandled opcode %s", instr.Op))
	}
	return false
}

// opSymbol maps an arithmetic or comparison opcode back to the source
// operator it was compiled from, so diagnostics read like the program
// text instead of the internal opcode name.
var opSymbol = map[bytecode.OpCode]string{
	bytecode.Add:       "+",
	bytecode.Sub:       "-",
	bytecode.Mul:       "*",
	bytecode.Div:       "/",
	bytecode.Mod:       "%",
	bytecode.Pow:       "**",
	bytecode.BinaryPow: "^",
	bytecode.Lt:        "<",
	bytecode.Gt:        ">",
	bytecode.Le:        "<=",
	bytecode.Ge:        ">=",
}

func opText(op bytecode.OpCode) string {
	if s, ok := opSymbol[op]; ok {
		return s
	}
	return op.String()
}

func (vm *VM) binaryArith(instr bytecode.Instr) bool {
	b, a := vm.pop(), vm.pop()
	av, bv := *a, *b
	if (instr.Op == bytecode.Div || instr.Op == bytecode.Mod) && bv.IsZero() {
		vm.fatal(errors.DivisionByZero, fmt.Sprintf("divide by zero: %s %s %s", av.Display(), opText(instr.Op), bv.Display()), instr.Span)
		return true
	}
	var result value.Value
	var ok bool
	switch instr.Op {
	case bytecode.Add:
		result, ok = value.Add(av, bv)
	case bytecode.Sub:
		result, ok = value.Sub(av, bv)
	case bytecode.Mul:
		result, ok = value.Mul(av, bv)
	case bytecode.Div:
		result, ok = value.Div(av, bv)
	case bytecode.Mod:
		result, ok = value.Mod(av, bv)
	case bytecode.Pow:
		result, ok = value.Pow(av, bv)
	case bytecode.BinaryPow:
		result, ok = value.BitwiseXor(av, bv)
	}
	if !ok {
		if instr.Op == bytecode.Mul && value.IsRepeatDomain(av, bv) {
			vm.fatal(errors.DomainError, fmt.Sprintf("invalid repeat count for %s %s %s", av.Display(), opText(instr.Op), bv.Display()), instr.Span)
			return true
		}
		vm.fatal(errors.TypeMismatch, fmt.Sprintf("cannot %s values of type %s and %s", opText(instr.Op), av.TypeName(), bv.TypeName()), instr.Span)
		return true
	}
	vm.push(vm.alloc(result))
	return false
}

func (vm *VM) binaryCompare(instr bytecode.Instr) bool {
	b, a := vm.pop(), vm.pop()
	av, bv := *a, *b
	var result value.Value
	var ok bool
	switch instr.Op {
	case bytecode.Lt:
		result, ok = value.Lt(av, bv)
	case bytecode.Gt:
		result, ok = value.Gt(av, bv)
	case bytecode.Le:
		result, ok = value.Le(av, bv)
	case bytecode.Ge:
		result, ok = value.Ge(av, bv)
	}
	if !ok {
		vm.fatal(errors.TypeMismatch, fmt.Sprintf("cannot compare values of type %s and %s", av.TypeName(), bv.TypeName()), instr.Span)
		return true
	}
	vm.push(vm.alloc(result))
	return false
}

func (vm *VM) index(instr bytecode.Instr) bool {
	idxPtr, arrPtr := vm.pop(), vm.pop()
	arr := *arrPtr
	if arr.Kind != value.KindArray {
		vm.fatal(errors.TypeMismatch, fmt.Sprintf("cannot index value of type %s", arr.TypeName()), instr.Span)
		return true
	}
	idx := *idxPtr
	if idx.Kind != value.KindInt {
		vm.fatal(errors.TypeMismatch, fmt.Sprintf("array index must be int, got %s", idx.TypeName()), instr.Span)
		return true
	}
	i := int(idx.Int.Int64())
	if i < 0 || i >= len(arr.Arr) {
		vm.fatal(errors.DomainError, fmt.Sprintf("index %d out of bounds for array of length %d", i, len(arr.Arr)), instr.Span)
		return true
	}
	vm.push(vm.alloc(arr.Arr[i].Clone()))
	return false
}

func (vm *VM) input(instr bytecode.Instr) bool {
	prompt := vm.pop()
	if prompt.Kind != value.KindNil {
		fmt.Fprint(vm.out, prompt.Display())
		if err := vm.out.Flush(); err != nil {
			vm.fatal(errors.IOError, err.Error(), instr.Span)
			return true
		}
	}
	line, err := vm.in.ReadString('\n')
	if err != nil && line == "" {
		vm.fatal(errors.IOError, err.Error(), instr.Span)
		return true
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	vm.push(vm.alloc(value.Str(line)))
	return false
}

func (vm *VM) coerce(instr bytecode.Instr, fn func(value.Value) (value.Value, error)) bool {
	v := vm.pop()
	result, err := fn(*v)
	if err != nil {
		kind := errors.DomainError
		if v.Kind == value.KindString {
			kind = errors.ParseError
		}
		vm.fatal(kind, err.Error(), instr.Span)
		return true
	}
	vm.push(vm.alloc(result))
	return false
}

// call implements the FnCall protocol (§4.4): pop the callee name, pop
// exactly its parameter count of arguments (or its registered native
// arity), write them into the callee's owning scope, and guarantee a
// net +1 operand-stack delta regardless of whether the callee returns a
// value naturally.
func (vm *VM) call(instr bytecode.Instr) bool {
	namePtr := vm.pop()
	name := namePtr.Str

	if fd, ok := vm.prog.Functions[name]; ok {
		n := len(fd.Params)
		args := make([]*value.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = vm.pop()
		}
		for i, p := range fd.Params {
			vm.scopes[fd.ScopeIdx][p.SlotID] = args[i]
		}
		vm.callStack = append(vm.callStack, frame{pcBefore: vm.pc, prevScope: vm.curScope})
		vm.curScope = fd.ScopeIdx
		if !fd.Returns {
			vm.push(vm.alloc(value.Nil()))
		}
		vm.pc = fd.InstrStart - 1
		return false
	}

	if nf, ok := vm.natives[name]; ok {
		args := make([]value.Value, nf.Arity)
		for i := nf.Arity - 1; i >= 0; i-- {
			args[i] = *vm.pop()
		}
		result, err := nf.Fn(args)
		if err != nil {
			vm.fatal(errors.DomainError, err.Error(), instr.Span)
			return true
		}
		vm.push(vm.alloc(result))
		return false
	}

	vm.fatal(errors.UnknownFunc, fmt.Sprintf("function %q not found", name), instr.Span)
	return true
}
