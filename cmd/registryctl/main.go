package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okian/talentboard/internal/cli"
	"github.com/okian/talentboard/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	if err := logger.InitWith(os.Stderr, logger.FormatText); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("registryctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
