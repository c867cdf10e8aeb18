package main

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crosstalkbot/crosstalk/internal/observability"
	"github.com/crosstalkbot/crosstalk/internal/record"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolOpener opens a PostgreSQL connection pool.
	// Default: record.OpenPool
	PoolOpener func(ctx context.Context, dsn string) (*pgxpool.Pool, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// Input is the console input stream. Default: os.Stdin
	Input io.Reader

	// Output is the console output stream. Default: os.Stdout
	Output io.Writer
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// storeSet holds the per-concern record stores backing the engine.
type storeSet struct {
	accounts    record.Store
	blacklist   record.Store
	permissions record.Store
}
