package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/pdfconv/internal/buildinfo"
	"github.com/dmitrijs2005/pdfconv/internal/client/cli"
	"github.com/dmitrijs2005/pdfconv/internal/client/config"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewTextLogger(os.Stderr, slog.LevelWarn)

	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg, logger)

	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)

}
