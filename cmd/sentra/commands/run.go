package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type RunCmd struct {
	trace bool
}

func (*RunCmd) Name() string     { return "run" }
func (*RunCmd) Synopsis() string { return "compile and execute a source file" }
func (*RunCmd) Usage() string {
	return "run <file>: lex, parse, compile and execute a sentra source file.\n"
}

func (c *RunCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.trace, "trace", false, "log every dispatched instruction")
}

func (c *RunCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "run: expected exactly one source file")
		return subcommands.ExitUsageError
	}

	prog, report, err := compileFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	newVM(prog, report, c.trace).Run()
	return subcommands.ExitSuccess
}
