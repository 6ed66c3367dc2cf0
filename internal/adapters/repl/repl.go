package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"demand-ledger/internal/adapters/cli"
	"demand-ledger/internal/app"
)

// Run starts the interactive loop. Each line is parsed as a CLI command
// ("batch today", "stock adjust <id> 5") and run against svc. Errors are
// printed and the loop continues; "exit" or EOF ends it.
func Run(ctx context.Context, svc app.ApplicationService, push cli.Pusher, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Demand ledger")
	if st, err := svc.SyncStatus(ctx); err == nil {
		fmt.Fprintf(out, "Sync: %s\n", st.Message)
	}
	fmt.Fprintln(out, "Type a command, help for the list, or exit.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit", "/exit":
			return nil
		}
		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if args[0] == "help" {
			args = []string{"--help"}
		}
		// A fresh app per line so flag state never leaks between commands.
		if err := cli.NewApp(svc, push, out).RunContext(ctx, append([]string{"demand"}, args...)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

var errUnterminatedQuote = errors.New("unterminated quote")

// splitArgs splits a line on whitespace, keeping single- or double-quoted
// runs together so names like "Milk 500ml" stay one argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		started bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			started = true
		case r == ' ' || r == '\t':
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quote != 0 {
		return nil, errUnterminatedQuote
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
