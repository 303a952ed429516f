// Package commands implements the sentra CLI's subcommands: run, repl
// and disasm. Grounded on informatter-nilan's cmd_run.go/cmd_repl.go/
// cmd_emit_bytecode.go, the one example repo that wires
// github.com/google/subcommands for exactly this split.
package commands

import (
	"fmt"
	"os"

	"sentra/internal/bytecode"
	"sentra/internal/compiler"
	"sentra/internal/errors"
	"sentra/internal/lexer"
	"sentra/internal/parser"
	"sentra/internal/stdlib"
	"sentra/internal/vm"
)

// compileFile runs the lexer/parser/compiler pipeline over a source
// file's contents, returning any read/lex/parse error to the caller
// (those occur before a Reporter's span-aware diagnostics are used),
// and otherwise the Reporter the VM should go on to use for runtime
// errors.
func compileFile(path string) (*bytecode.Program, *errors.Reporter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	src := string(data)

	toks, err := lexer.New(src).Scan()
	if err != nil {
		return nil, nil, fmt.Errorf("lex error: %w", err)
	}

	nodes, err := parser.New(toks).Parse()
	if err != nil {
		return nil, nil, fmt.Errorf("parse error: %w", err)
	}

	report := errors.New(src, path)
	prog := compiler.New(report).Compile(nodes)
	return prog, report, nil
}

// newVM builds a VM over prog and wires every builtin extension (§4.9).
func newVM(prog *bytecode.Program, report *errors.Reporter, trace bool) *vm.VM {
	machine := vm.New(prog, report)
	machine.SetTrace(trace)
	stdlib.Register(machine)
	return machine
}
