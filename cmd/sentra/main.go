// Command sentra is the CLI entry point: lex -> parse -> compile -> run,
// plus a REPL and a disassembler, wired as github.com/google/subcommands
// subcommands the way informatter-nilan's cmd_run.go/cmd_repl.go/
// cmd_emit_bytecode.go wire theirs.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"sentra/cmd/sentra/commands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&commands.RunCmd{}, "")
	subcommands.Register(&commands.ReplCmd{}, "")
	subcommands.Register(&commands.DisasmCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
