package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"pagewright/internal/config"
	"pagewright/internal/db"
	"pagewright/internal/definitions"
	"pagewright/internal/engine"
	"pagewright/internal/logging"
	"pagewright/internal/metrics"
	"pagewright/internal/migrate"
)

// Runtime is everything a command needs to work on one workspace.
type Runtime struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Open loads the workspace config, migrates the database and wires the
// engine.
func Open(ctx context.Context, workspace string) (*Runtime, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	defs, err := Registry(cfg, workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	m := metrics.New()
	eng := engine.New(conn, defs)
	eng.Logger = logger
	eng.Metrics = m
	return &Runtime{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    eng,
		Logger:    logger,
		Metrics:   m,
	}, nil
}

// Registry builds the definition registry from the builtin types plus the
// configured definitions file. Redefining a builtin type is an error.
func Registry(cfg *config.Config, workspace string) (*definitions.Registry, error) {
	reg := definitions.NewRegistry()
	if err := reg.Register(definitions.Builtin()); err != nil {
		return nil, fmt.Errorf("register builtin definitions: %w", err)
	}
	path := cfg.DefinitionsPath(workspace)
	if path == "" {
		return reg, nil
	}
	extra, err := definitions.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(extra); err != nil {
		return nil, fmt.Errorf("register %s: %w", path, err)
	}
	return reg, nil
}

func (r *Runtime) Close() error {
	_ = r.Logger.Sync()
	return r.DB.Close()
}
