package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx))
}

func run(ctx context.Context) int {
	// If the user asked for help, avoid initializing the full app (which may prompt)
	var a *app.App
	if !wantsHelp(os.Args[1:]) {
		var err error
		a, err = app.New(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize app: %v\n", err)
			return 1
		}
		defer a.Close()
	}

	if err := cli.ExecuteContext(ctx, a); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.Describe(err))
		return 1
	}
	return 0
}

func wantsHelp(args []string) bool {
	if len(args) == 0 {
		return false
	}
	for _, a := range args {
		if a == "-h" || a == "--help" || a == "help" || a == "completion" {
			return true
		}
	}
	return false
}
