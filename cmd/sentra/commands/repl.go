package commands

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"sentra/internal/repl"
	"sentra/internal/stdlib"
	"sentra/internal/vm"
)

type ReplCmd struct{}

func (*ReplCmd) Name() string     { return "repl" }
func (*ReplCmd) Synopsis() string { return "start an interactive session" }
func (*ReplCmd) Usage() string {
	return "repl: start a line-at-a-time interactive session against a persistent VM.\n"
}

func (*ReplCmd) SetFlags(f *flag.FlagSet) {}

func (*ReplCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repl.Run(os.Stdin, os.Stdout, func(m *vm.VM) { stdlib.Register(m) })
	return subcommands.ExitSuccess
}
