package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type DisasmCmd struct{}

func (*DisasmCmd) Name() string     { return "disasm" }
func (*DisasmCmd) Synopsis() string { return "print the compiled instruction stream" }
func (*DisasmCmd) Usage() string {
	return "disasm <file>: lex, parse, compile and print the instruction stream. No semantic effect.\n"
}

func (*DisasmCmd) SetFlags(f *flag.FlagSet) {}

func (*DisasmCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "disasm: expected exactly one source file")
		return subcommands.ExitUsageError
	}

	prog, _, err := compileFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	prog.Disassemble(os.Stdout)
	return subcommands.ExitSuccess
}
