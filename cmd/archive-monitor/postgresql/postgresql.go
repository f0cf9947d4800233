// Package postgresql is the persistence layer: append-only config versions,
// the status event log, sensor readings, tag sightings and the audit trail.
package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"go.uber.org/zap"
)

// pgxIface is the pool surface the store uses. Satisfied by pgxpool.Pool and
// by pgxmock pools in tests.
type pgxIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Connection wraps the connection pool and implements collection.Store and
// sampler.TagDirectory.
type Connection struct {
	db pgxIface
}

// New connects to postgres using the POSTGRES_* environment variables and
// creates the schema if it does not exist yet.
func New(ctx context.Context) (*Connection, error) {
	PQHost, err := env.GetAsString("POSTGRES_HOST", false, "db")
	if err != nil {
		return nil, err
	}
	PQPort, err := env.GetAsInt("POSTGRES_PORT", false, 5432)
	if err != nil {
		return nil, err
	}
	PQUser, err := env.GetAsString("POSTGRES_USER", true, "")
	if err != nil {
		return nil, err
	}
	PQPassword, err := env.GetAsString("POSTGRES_PASSWORD", true, "")
	if err != nil {
		return nil, err
	}
	PQDBName, err := env.GetAsString("POSTGRES_DATABASE", true, "")
	if err != nil {
		return nil, err
	}
	PQSSLMode, err := env.GetAsString("POSTGRES_SSL_MODE", false, "require")
	if err != nil {
		return nil, err
	}

	zap.S().Infof("Connecting to %s@%s:%d/%s [%s]", PQUser, PQHost, PQPort, PQDBName, PQSSLMode)

	conString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		PQHost, PQPort, PQUser, PQPassword, PQDBName, PQSSLMode)

	establishCtx, cncl := context.WithTimeout(ctx, 5*time.Second)
	defer cncl()
	db, err := pgxpool.New(establishCtx, conString)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to postgres: %w", err)
	}

	c := &Connection{db: db}
	if err = c.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS collection_configs (
		id bigserial PRIMARY KEY,
		sensor_interval integer NOT NULL,
		rfid_interval integer NOT NULL,
		is_paused boolean NOT NULL DEFAULT false,
		updated_by varchar(100) NOT NULL DEFAULT 'system',
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_collection_configs_updated_at
		ON collection_configs (updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS collection_status (
		id bigserial PRIMARY KEY,
		timestamp timestamptz NOT NULL DEFAULT now(),
		is_running boolean NOT NULL,
		sensor_last_collection timestamptz,
		rfid_last_collection timestamptz,
		cpu_usage double precision,
		memory_usage double precision,
		error_message text
	)`,
	`CREATE INDEX IF NOT EXISTS idx_collection_status_timestamp
		ON collection_status (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS environment_data (
		id bigserial PRIMARY KEY,
		sensor_id varchar(50) NOT NULL,
		temperature double precision NOT NULL,
		humidity double precision NOT NULL,
		light_intensity double precision NOT NULL,
		location varchar(100) NOT NULL,
		timestamp timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_environment_data_timestamp
		ON environment_data (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS rfid_tags (
		tag_id varchar(100) PRIMARY KEY,
		status varchar(20) NOT NULL DEFAULT 'active',
		current_location varchar(100),
		last_seen_device integer,
		last_seen_at timestamptz
	)`,
	`CREATE TABLE IF NOT EXISTS location_history (
		id bigserial PRIMARY KEY,
		tag_id varchar(100) NOT NULL,
		device_id integer NOT NULL,
		location varchar(100) NOT NULL,
		timestamp timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_location_history_timestamp
		ON location_history (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS system_logs (
		id bigserial PRIMARY KEY,
		log_level varchar(10) NOT NULL,
		module varchar(50) NOT NULL,
		message text NOT NULL,
		user_id varchar(100),
		timestamp timestamptz NOT NULL DEFAULT now()
	)`,
}

func (c *Connection) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := c.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// HealthCheck returns a readiness check that pings the database.
func (c *Connection) HealthCheck() healthcheck.Check {
	return func() error {
		ctx, cncl := context.WithTimeout(context.Background(), 5*time.Second)
		defer cncl()
		return c.db.Ping(ctx)
	}
}

// IsAvailable reports whether the database answers a ping.
func (c *Connection) IsAvailable() bool {
	ctx, cncl := context.WithTimeout(context.Background(), 5*time.Second)
	defer cncl()
	if err := c.db.Ping(ctx); err != nil {
		zap.S().Debugf("Failed to ping database: %s", err)
		return false
	}
	return true
}

// Close shuts down the connection pool.
func (c *Connection) Close() {
	c.db.Close()
}

// AppendAudit writes one system log row.
func (c *Connection) AppendAudit(ctx context.Context, level string, module string, message string, actor string) error {
	_, err := c.db.Exec(ctx,
		`INSERT INTO system_logs (log_level, module, message, user_id) VALUES ($1, $2, $3, $4)`,
		level, module, message, actor)
	return err
}
