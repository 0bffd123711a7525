package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rewardjar-service/internal/cli"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
