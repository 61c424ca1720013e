package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/matthoffner/wizardcoder-sandbox/cmd"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd.SetVersion(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
