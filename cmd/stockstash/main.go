// Command stockstash is the operator tool: it runs the server, lists users,
// bootstraps admins and checks quotes from the command line.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	e := &env{out: os.Stdout}
	flag.StringVar(&e.configPath, "config", "", "path to stockstash.toml (default: STOCKSTASH_CONFIG or next to the binary)")
	flag.BoolVar(&e.plain, "plain", false, "print markdown without terminal styling")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands(e) {
		commander.Register(c, "")
	}

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
