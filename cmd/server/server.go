package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wzin/datawipe/internal/api"
)

// Run starts the engine loops and the HTTP server, then blocks until
// the context is cancelled. Engine loops drain before the database is
// closed so no in-flight transition is cut off mid-write.
func (app *application) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for name, run := range map[string]func(context.Context) error{
		"dispatcher": app.dispatcher.Run,
		"correlator": app.correlator.Run,
		"retention":  app.retention.Run,
	} {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && ctx.Err() == nil {
				app.logger.Error("engine component exited",
					slog.String("component", name),
					slog.String("error", err.Error()))
			}
		}(name, run)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           api.NewRouter(app.handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", slog.Int("port", app.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		app.logger.Info("shutting down")
	case err := <-serverErr:
		app.logger.Error("server failed", slog.String("error", err.Error()))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error("closing database failed", slog.String("error", err.Error()))
	}

	app.logger.Info("shutdown complete")
	return nil
}
