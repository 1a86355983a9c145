// Package postgres provides PostgreSQL-based implementations of the store interfaces.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lifebox-go/internal/config"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MaxIdleConns
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// RunMigrations creates the required database tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS alarm_rules (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			device_id VARCHAR(64),
			metric_name VARCHAR(255) NOT NULL,
			operator VARCHAR(20) NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			threshold_duration_seconds INTEGER DEFAULT 0,
			severity VARCHAR(20) NOT NULL,
			enabled BOOLEAN DEFAULT TRUE,
			dashboard_message TEXT,
			sms_message TEXT,
			email_message TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alarm_rules_device ON alarm_rules(device_id);
		CREATE INDEX IF NOT EXISTS idx_alarm_rules_enabled ON alarm_rules(enabled);

		CREATE TABLE IF NOT EXISTS alarm_reactions (
			id VARCHAR(36) PRIMARY KEY,
			rule_id VARCHAR(36) NOT NULL REFERENCES alarm_rules(id) ON DELETE CASCADE,
			type VARCHAR(20) NOT NULL,
			enabled BOOLEAN DEFAULT TRUE,
			config JSONB,
			position INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_alarm_reactions_rule ON alarm_reactions(rule_id);

		CREATE TABLE IF NOT EXISTS alarm_events (
			id VARCHAR(36) PRIMARY KEY,
			rule_id VARCHAR(36) NOT NULL,
			device_id VARCHAR(64) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			triggered_value DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL,
			triggered_at TIMESTAMP WITH TIME ZONE NOT NULL,
			acknowledged BOOLEAN DEFAULT FALSE,
			acknowledged_by VARCHAR(255),
			acknowledged_at TIMESTAMP WITH TIME ZONE,
			resolved_at TIMESTAMP WITH TIME ZONE
		);

		CREATE INDEX IF NOT EXISTS idx_alarm_events_rule_device ON alarm_events(rule_id, device_id);
		CREATE INDEX IF NOT EXISTS idx_alarm_events_triggered_at ON alarm_events(triggered_at);
		CREATE INDEX IF NOT EXISTS idx_alarm_events_open ON alarm_events(rule_id, device_id) WHERE resolved_at IS NULL;

		CREATE TABLE IF NOT EXISTS clients (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			phone_numbers TEXT[],
			primary_email VARCHAR(255)
		);

		CREATE TABLE IF NOT EXISTS devices (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			client_id VARCHAR(36) REFERENCES clients(id)
		);
	`

	_, err := db.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
