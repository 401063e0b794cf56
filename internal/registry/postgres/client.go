// Package postgres provides the PostgreSQL-backed bill registry.
// It handles persistent storage of issued bills keyed by serial.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL driver for database/sql
	_ "github.com/lib/pq"
)

// Client wraps PostgreSQL database operations
type Client struct {
	db *sql.DB
}

// Config holds PostgreSQL connection configuration
type Config struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// NewClient creates a new PostgreSQL client and ensures the bills schema
// exists.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &Client{db: db}
	if err := client.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return client, nil
}

// migrate creates the bills table if it does not exist yet.
func (c *Client) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS bills (
			bill_serial      TEXT PRIMARY KEY,
			denomination     BIGINT NOT NULL,
			user_address     TEXT NOT NULL,
			hash             TEXT NOT NULL,
			mining_time      DOUBLE PRECISION NOT NULL,
			difficulty       BIGINT NOT NULL,
			luna_value       DOUBLE PRECISION NOT NULL,
			timestamp        DOUBLE PRECISION NOT NULL,
			verification_url TEXT NOT NULL DEFAULT '',
			image_url        TEXT NOT NULL DEFAULT '',
			metadata         JSONB NOT NULL DEFAULT '{}',
			status           TEXT NOT NULL DEFAULT 'active'
		);
		CREATE INDEX IF NOT EXISTS idx_bills_user_address ON bills (user_address, timestamp DESC);`

	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Health checks database connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sql.DB for advanced operations
func (c *Client) DB() *sql.DB {
	return c.db
}
