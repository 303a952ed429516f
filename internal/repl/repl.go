// Package repl implements the interactive line-at-a-time driver: one
// lexer/parser/compiler pass per line, all sharing a single persistent
// Compiler and VM so variable bindings and function definitions survive
// across lines. Grounded on sentra-language-sentra/internal/repl's
// read-eval-print loop shape, adapted to run against the shared
// Program/VM pair instead of resetting a chunk every line.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"sentra/internal/compiler"
	"sentra/internal/errors"
	"sentra/internal/lexer"
	"sentra/internal/parser"
	"sentra/internal/vm"
)

const banner = "sentra repl - type 'exit' or Ctrl-D to quit"

// Run starts the interactive loop, reading lines from in and writing
// prompts, program output and lex/parse errors to out. Compile-time and
// runtime diagnostics go through the Reporter, which writes to stderr
// and exits the process. register is invoked once with the VM so
// the caller can wire native builtins (§4.9) before the loop starts.
func Run(in io.Reader, out io.Writer, register func(*vm.VM)) {
	fmt.Fprintln(out, banner)
	scanner := bufio.NewScanner(in)

	source := ""
	report := errors.New(source, "<repl>")
	c := compiler.New(report)
	machine := vm.New(c.Program(), report)
	machine.SetIO(out, os.Stdin)
	if register != nil {
		register(machine)
	}

	for {
		fmt.Fprint(out, ">>> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}

		report.Source = line

		toks, err := lexer.New(line).Scan()
		if err != nil {
			fmt.Fprintln(out, "lex error:", err)
			continue
		}
		nodes, err := parser.New(toks).Parse()
		if err != nil {
			fmt.Fprintln(out, "parse error:", err)
			continue
		}

		start, end := c.CompileStatements(nodes)
		machine.RunRange(start, end)
	}
}
