// Package server assembles the reference backend: Postgres repositories,
// S3 presigning, the services on top of them and the HTTP API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/dmitrijs2005/pdfconv/internal/server/api"
	"github.com/dmitrijs2005/pdfconv/internal/server/config"
	"github.com/dmitrijs2005/pdfconv/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pdfconv/internal/server/services"
	"github.com/dmitrijs2005/pdfconv/internal/server/storage"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	logger  logging.Logger
	handler *api.Handler
}

// NewApp connects to the database, applies migrations and wires the
// services. The caller owns the returned App and must Close it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := repomanager.OpenDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	st, err := storage.NewS3Storage(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	app := &App{config: c, db: db, logger: logger}
	app.handler = newHandler(db, rm, st, c, logger)
	return app, nil
}

func newHandler(db *sql.DB, rm repomanager.RepositoryManager, st storage.Presigner, c *config.Config, logger logging.Logger) *api.Handler {
	us := services.NewUserService(db, rm, services.NewLogMailer(logger), c, logger)
	ups := services.NewUploadService(db, rm, st, c.MaxUploadSize, logger)
	js := services.NewJobService(db, rm, st, logger)
	ws := services.NewWorkerService(db, rm, st, logger)

	return api.NewHandler(us, ups, js, ws, c.WorkerToken, api.NewMetrics(), logger)
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := api.NewHTTPServer(app.config.ListenAddr, app.handler.Routes(), app.config.ShutdownTimeout, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server stopped", "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled or the server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
}

func (app *App) Close() error {
	return app.db.Close()
}
