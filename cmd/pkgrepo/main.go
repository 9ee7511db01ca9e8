package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pkgrepo/cmd/pkgrepo/commands"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := commands.NewGlobal(os.Stdout)

	ctx := kong.Parse(cli,
		kong.Name("pkgrepo"),
		kong.Description("Keep a live registry of the package archives in a directory."),
		kong.UsageOnError(),
		kong.Bind(global),
		kong.Vars{"version": version.String()},
	)

	if err := ctx.Run(cli); err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger)
		adapter.Log(err)
		fmt.Fprintln(os.Stderr, adapter.FormatError(err))
		os.Exit(adapter.ExitCodeFor(err))
	}
	slog.Debug("Command completed", "command", ctx.Command())
}
