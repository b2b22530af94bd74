package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"receipt-verification-api/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, cli.ErrInvalidReceipt) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(1)
}
