package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grant-insights/cmd"
	"grant-insights/internal/common/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.NewRootCommand(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errors.UserMessage(err))
		stop()
		os.Exit(1)
	}
}
