// Package database owns the dispatcher's PostgreSQL pool and schema
// migrations. The queue coordinates through single-statement status updates,
// so the pool carries no special isolation setup.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LuxRender/LuxFire/internal/config"
)

// Connect opens the pool described by cfg and pings it before handing it
// out, so a bad URL or unreachable server fails at startup instead of on the
// first queue operation.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConnections > 0 {
		pc.MaxConns = int32(cfg.MaxConnections)
	}
	// Ticks arrive in bursts; idle connections between them are cheap to
	// re-open, so let them go.
	pc.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
