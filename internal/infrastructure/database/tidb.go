// Package database owns the MySQL-protocol (TiDB compatible) connection pool.
package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
)

// Connection wraps the pooled *sql.DB.
// sql.DB is already safe for concurrent use; no extra locking is layered on top.
type Connection struct {
	db *sql.DB
}

var tlsOnce sync.Once

// Open connects to the configured database and verifies the connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Connection, error) {
	db, err := sql.Open("mysql", BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	// MaxIdleConns matches MaxOpenConns to keep connections alive under load.
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	lifetime := cfg.MaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{db: db}, nil
}

// NewConnection wraps an existing pool (used by tests with sqlmock).
func NewConnection(db *sql.DB) *Connection {
	return &Connection{db: db}
}

// BuildDSN renders the driver DSN. Remote hosts use TLS with server name verification.
func BuildDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}

	if IsRemoteHost(cfg.Host) {
		tlsOnce.Do(func() {
			// Registration only fails for reserved names; "tidb" is not one.
			_ = mysql.RegisterTLSConfig("tidb", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.Host,
			})
		})
		mc.TLSConfig = "tidb"
	}

	return mc.FormatDSN()
}

// IsRemoteHost reports whether host is anything other than the loopback interface.
func IsRemoteHost(host string) bool {
	return host != "" && host != "127.0.0.1" && host != "localhost"
}

func (c *Connection) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a new transaction with context
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// PingContext is used by the health endpoint.
func (c *Connection) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying *sql.DB connection
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.db.Close()
}
