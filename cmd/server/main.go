package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/pdfconv/internal/buildinfo"
	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/server"
	"github.com/dmitrijs2005/pdfconv/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg, logger)

	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Run(ctx)

}
