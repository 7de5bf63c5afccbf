package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/monuchauhan/InstaBot/common/id"
	"github.com/monuchauhan/InstaBot/common/logger"
	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/internal/cli"
)

func main() {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(2)
	}

	// stdout carries command output, so diagnostics go to stderr
	slog.SetDefault(slog.New(logger.NewHandler(cfg, os.Stderr)))

	if err := id.Init(id.NodeCLI); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize snowflake id generator:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := cli.NewEnvBackend(cfg)
	defer backend.Close()

	if err := cli.NewRootCommand(backend).ExecuteContext(ctx); err != nil {
		// cobra already printed the error
		backend.Close()
		os.Exit(1)
	}
}
