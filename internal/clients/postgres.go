package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"

	"github.com/s-celles/bemserver-core/internal/config"
	"github.com/s-celles/bemserver-core/internal/prepare"
)

const pgProbeName = "postgres"

// dbConn abstracts the pgx.Conn methods used by PostgresClient so tests can
// inject a fake without standing up a real database.
type dbConn interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// PostgresClient provisions and probes the application database. Connections
// are opened per call and closed before returning; the bootstrap holds no
// storage resources once it hands off to the server.
type PostgresClient struct {
	cfg     config.DatabaseConfig
	cb      *gobreaker.CircuitBreaker
	connect func(ctx context.Context, dsn string) (dbConn, error)
}

// NewPostgresClient creates a PostgresClient. No connection is made at
// construction time.
func NewPostgresClient(cfg config.DatabaseConfig, cb *gobreaker.CircuitBreaker) *PostgresClient {
	return &PostgresClient{
		cfg:     cfg,
		cb:      cb,
		connect: realConnect,
	}
}

// EnsureDatabase creates the application database when it does not exist
// yet, then verifies it accepts connections. Creation goes through the
// maintenance database because Postgres cannot create a database from a
// connection to itself. Safe to run on every boot.
func (c *PostgresClient) EnsureDatabase(ctx context.Context) error {
	_, err := c.cb.Execute(func() (any, error) {
		admin, err := c.connect(ctx, c.cfg.MaintenanceDSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to maintenance database: %w", err)
		}
		defer admin.Close(ctx) //nolint:errcheck

		var one int
		row := admin.QueryRow(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", c.cfg.Name)
		switch err := row.Scan(&one); {
		case err == nil:
			// Database already exists.
		case errors.Is(err, pgx.ErrNoRows):
			stmt := "CREATE DATABASE " + pgx.Identifier{c.cfg.Name}.Sanitize()
			if _, err := admin.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("creating database %s: %w", c.cfg.Name, err)
			}
			slog.InfoContext(ctx, "database created", "name", c.cfg.Name)
		default:
			return nil, fmt.Errorf("checking database existence: %w", err)
		}

		app, err := c.connect(ctx, c.cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to database %s: %w", c.cfg.Name, err)
		}
		defer app.Close(ctx) //nolint:errcheck

		if err := app.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		return errors.New("postgres circuit open")
	}
	return err
}

// Probe pings the application database and reports whether the migration
// bookkeeping table is present. A missing table is not an error here — the
// application applies its own migrations — but it is worth surfacing in the
// preflight report.
func (c *PostgresClient) Probe(ctx context.Context) prepare.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		conn, err := c.connect(ctx, c.cfg.DSN())
		if err != nil {
			return nil, err
		}
		defer conn.Close(ctx) //nolint:errcheck

		if err := conn.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}

		var one int
		row := conn.QueryRow(ctx,
			"SELECT 1 FROM information_schema.tables WHERE table_schema='public' AND table_name='alembic_version'",
		)
		if err := row.Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				slog.WarnContext(ctx, "migration table absent; database not yet initialised")
				return nil, nil
			}
			return nil, fmt.Errorf("checking migration table: %w", err)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return prepare.ProbeResult{
			Name:      pgProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return prepare.ProbeResult{
		Name:      pgProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// realConnect opens a single pgx connection to the given DSN.
func realConnect(ctx context.Context, dsn string) (dbConn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	return conn, nil
}
