package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"restaurants/internal/config"
	"restaurants/internal/etl"
	_ "restaurants/internal/etl/sources"
	"restaurants/internal/geocode"
	mcpserver "restaurants/internal/mcp"
	"restaurants/internal/secret"
	"restaurants/internal/server"
	"restaurants/internal/service"
	"restaurants/internal/storage"
)

// Version is set at build time.
var Version = "dev"

// App wires storage, secrets, the pipeline and the service from one Config.
type App struct {
	cfg *config.Config
	log *slog.Logger

	db        *storage.DB
	runs      *storage.RunStore
	variables *storage.VariableStore
	secrets   secret.SecretStore
	pipeline  *etl.Pipeline
	svc       *service.PipelineService
}

// New opens the run-history database and builds every component.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &App{
		cfg:       cfg,
		log:       logger,
		db:        db,
		runs:      storage.NewRunStore(db),
		variables: storage.NewVariableStore(db),
	}

	a.secrets, err = a.secretStore(cfg.Secrets.Backend)
	if err != nil {
		db.Close()
		return nil, err
	}

	a.pipeline = etl.New(etl.Options{
		Paths:     cfg.Paths(),
		Columns:   cfg.Columns,
		Secrets:   a.secrets,
		Geocoder:  geocode.NewOpenCage(cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout),
		CacheSize: cfg.Geocoder.CacheSize,
		Logger:    logger.With("component", "pipeline"),
	})

	svcLog := logger.With("component", "service")
	a.svc = service.NewPipelineService(a.pipeline, a.runs, &service.LogEmitter{Logger: svcLog}, svcLog)
	if cfg.Publish.Enabled {
		a.svc.SetPublisher(a.publisher())
	}
	return a, nil
}

func (a *App) secretStore(backend string) (secret.SecretStore, error) {
	switch backend {
	case "", "env":
		return secret.NewEnvStore(), nil
	case "sqlite":
		return a.variables, nil
	case "keychain":
		return secret.NewKeychainStore(secret.DefaultKeychainService), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend: %q", backend)
	}
}

// publisher resolves the publish password from the secret store when the
// config file leaves it empty.
func (a *App) publisher() *service.SinkPublisher {
	cfg := a.cfg.Publish
	if cfg.Password == "" {
		if l, err := secret.Resolve(a.secrets, config.PublishPasswordKey); err == nil && l.Found {
			cfg.Password = l.Value
		}
	}
	return &service.SinkPublisher{Config: cfg, Columns: a.cfg.Columns}
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Service returns the pipeline service every trigger goes through.
func (a *App) Service() *service.PipelineService { return a.svc }

// Secrets returns the configured secret backend.
func (a *App) Secrets() secret.SecretStore { return a.secrets }

// Variables returns the SQLite-backed variable store.
func (a *App) Variables() *storage.VariableStore { return a.variables }

// Publish copies the final output to the configured database, whether or
// not publishing after each run is enabled.
func (a *App) Publish(ctx context.Context) (int, error) {
	if a.cfg.Publish.Driver == "" {
		return 0, errors.New("publish.driver is not configured")
	}
	return a.publisher().Publish(ctx, a.cfg.Paths().OutputParquet)
}

// Serve runs the HTTP API plus the optional cron schedule and file watch
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if expr := a.cfg.Server.Schedule; expr != "" {
		if err := a.svc.Schedule(ctx, expr); err != nil {
			return err
		}
	}
	if a.cfg.Server.Watch {
		if err := a.svc.Watch(ctx); err != nil {
			return err
		}
	}

	srv := server.New(ctx, a.svc, a.log.With("component", "http"))
	return srv.Run(ctx, a.cfg.Server.Addr)
}

// ServeMCP runs the MCP server on stdin/stdout.
func (a *App) ServeMCP(ctx context.Context) error {
	srv := mcpserver.New(mcpserver.Deps{
		Pipeline: a.svc,
		Logger:   a.log.With("component", "mcp"),
		Version:  Version,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Close stops triggers, waits briefly for a running pipeline and closes
// the database.
func (a *App) Close() error {
	a.svc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.svc.WaitRunning(ctx)
	return a.db.Close()
}
