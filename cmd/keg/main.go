// Package main is the entry point for the keg package manager.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/keg/cmd/keg/commands"
	"go.trai.ch/keg/internal/app"
	_ "go.trai.ch/keg/internal/wiring"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize the application through the dependency graph
	application, _, err := graft.ExecuteFor[*app.App](ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	// 2. Interface - CLI
	cli := commands.New(application)

	// 3. Execution
	if err := cli.Execute(ctx); err != nil {
		var conflict *app.ConflictError
		if errors.As(err, &conflict) {
			// Conflicts are expected outcomes; render them without a trace.
			_, _ = fmt.Fprintln(os.Stderr, conflict.Error())
			return 1
		}
		// zerr prints a pretty error report with stack trace and metadata when using %+v
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		return 1
	}
	return 0
}
