package main

import (
	"context"
	"log/slog"

	"github.com/syssam/relkit/dialect"
	"github.com/syssam/relkit/dialect/sql"
	"github.com/syssam/relkit/internal/cli"
	"github.com/syssam/relkit/query"
)

// conn is an open database wrapped for statement counting.
type conn struct {
	db    *query.DB
	stats *sql.StatsDriver
	close func() error
}

// open connects to the configured database. Statements are counted and slow
// ones are logged; with --debug every statement is logged as well.
func (a *app) open(ctx context.Context, logger *slog.Logger) (*conn, error) {
	dbc := a.cfg.Database
	if dbc.DSN == "" {
		return nil, cli.ConfigError("database.dsn is required", nil)
	}
	drv, err := sql.Open(dbc.Dialect, dbc.DSN)
	if err != nil {
		return nil, cli.DBError("opening database", err)
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		_ = drv.Close()
		return nil, cli.DBError("connecting to database", err)
	}
	var d dialect.Driver = drv
	if dbc.Debug {
		d = sql.NewDebugDriver(d, sql.DebugWithLogger(logger))
	}
	stats := sql.NewStatsDriver(d,
		sql.WithSlowThreshold(dbc.SlowThreshold),
		sql.WithSlowQueryLog(logger),
	)
	return &conn{db: query.New(stats), stats: stats, close: drv.Close}, nil
}

// offline returns a DB for rendering statements in the configured dialect.
// It has no connection and must not execute anything.
func (a *app) offline() *query.DB {
	return query.New(sql.OpenDB(a.cfg.Database.Dialect, nil))
}
