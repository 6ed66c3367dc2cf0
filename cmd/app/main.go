// app is the terminal front end. With arguments it runs one command
// ("app batch today"); without, it starts an interactive shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"demand-ledger/internal/adapters/cli"
	"demand-ledger/internal/adapters/repl"
	"demand-ledger/internal/bootstrap"
	"demand-ledger/internal/config"
	"demand-ledger/internal/logging"

	urfave "github.com/urfave/cli/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Keep the terminal for command output; only warnings reach stderr.
	logger, err := logging.New("warn", "text", os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	if len(os.Args) > 1 {
		err = cli.Run(ctx, rt.Service, rt.Pusher(), os.Args)
	} else {
		err = repl.Run(ctx, rt.Service, rt.Pusher(), os.Stdin, os.Stdout)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		code := 1
		var exit urfave.ExitCoder
		if errors.As(err, &exit) {
			code = exit.ExitCode()
		}
		rt.Close()
		os.Exit(code)
	}
}
