package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/gqlbridge/internal/gqlbridge/http"
	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
	"github.com/aussiebroadwan/gqlbridge/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application is the SSR server with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	site     *Site
	resolved *bridge.Resolved
	hooks    *bridge.Hooks

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New resolves every client configuration up front so misconfiguration
// fails at startup, not on the first request.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gqlbridge",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	site, err := LoadSite(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	app.site = site

	resolved, err := site.Clients.Resolve(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve clients: %w", err)
	}
	app.resolved = resolved
	app.logger.Info("graphql clients resolved", "clients", len(resolved.Clients), "default", resolved.DefaultName)

	hooks, err := NewHooks()
	if err != nil {
		return nil, err
	}
	app.hooks = hooks

	if err := app.initHTTP(); err != nil {
		return nil, err
	}
	return app, nil
}

// NewHooks forwards the request id upstream so both logs line up, and logs
// errors reported by the link chains.
func NewHooks() (*bridge.Hooks, error) {
	h := bridge.NewHooks()

	err := h.OnAppendHeaders(func(ctx context.Context, p *bridge.HeadersParams) {
		if id := slogx.RequestID(ctx); id != "" {
			p.Headers.Set(slogx.RequestIDHeader, id)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register headers hook: %w", err)
	}

	err = h.OnError(func(ctx context.Context, p *bridge.ErrorParams) {
		logger := slogx.FromContext(ctx).With("gql_client", p.Client)
		if p.Error.NetworkError != nil {
			logger.Warn("graphql network error", "err", p.Error.NetworkError)
			return
		}
		for _, e := range p.Error.GraphQLErrors {
			logger.Info("graphql error", "message", e.Message, "code", e.Code())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register error hook: %w", err)
	}
	return h, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gqlbridge starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gqlbridge...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
		return err
	}

	app.logger.Info("gqlbridge stopped")
	return nil
}

// Handler exposes the router, e.g. for httptest.
func (app *Application) Handler() http.Handler { return app.router }

func (app *Application) initHTTP() error {
	pages, err := httpapi.NewPages(app.site.Pages)
	if err != nil {
		return err
	}

	router, err := httpapi.NewRouter(app.resolved, pages, app.hooks, BuildVersion, app.logger)
	if err != nil {
		return err
	}
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return nil
}
