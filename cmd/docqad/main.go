package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/cli/admin"
)

func main() {
	rootCmd := admin.NewRootCmd()

	// a bare invocation starts the server
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"serve"})
	}
	cli.CheckHelpJSON(rootCmd)

	// SIGINT and SIGTERM cancel the command context; serve shuts down gracefully on it
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
