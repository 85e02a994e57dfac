package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adlift/adlift/internal/cmd"
	"github.com/adlift/adlift/internal/server/handlers"
)

// Set at link time with -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	handlers.Version = version
	handlers.Commit = commit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
