package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName tags backoffice sessions in pg_stat_activity unless the
// database URL already names one.
const ApplicationName = "backoffice"

// PoolOptions configures the shared connection pool.
type PoolOptions struct {
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
	// TimeZone is the session time zone. Dates written with NOW() and
	// CURRENT_DATE then fall on the same calendar day the services use.
	TimeZone string
}

// PoolConfig parses the database URL and applies opts without connecting.
func PoolConfig(opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = opts.MinConns

	params := cfg.ConnConfig.RuntimeParams
	if opts.TimeZone != "" {
		params["timezone"] = opts.TimeZone
	}
	if params["application_name"] == "" {
		params["application_name"] = ApplicationName
	}
	return cfg, nil
}

func NewPool(ctx context.Context, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
