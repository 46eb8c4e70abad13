// Command meshmark watermarks STL meshes through the order of their facets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/idelchi/meshmark/internal/commands"
	"github.com/idelchi/meshmark/internal/config"
)

// version is set at build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}

	if err := commands.NewRootCommand(cfg, version).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "meshmark: %v\n", err)

		return 1
	}

	return 0
}
