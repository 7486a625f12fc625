// Package db owns the Postgres connection and the tenant-scoped transaction
// helper that sets the row level security session variable.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/groundwork-cm/groundwork-backend/config"
)

// TenantSetting is the session variable read by every row level security policy.
const TenantSetting = "app.current_tenant"

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner runs fn inside a transaction bound to one tenant.
type TxRunner interface {
	WithTenant(ctx context.Context, tenantID string, fn func(q Querier) error) error
}

// DB wraps *sql.DB with tenant-scoped transactions.
type DB struct {
	*sql.DB
}

func New(sqlDB *sql.DB) *DB {
	return &DB{DB: sqlDB}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(sqlDB), nil
}

// WithTenant begins a transaction, scopes it to tenantID for row level
// security, and commits when fn returns nil.
func (d *DB) WithTenant(ctx context.Context, tenantID string, fn func(q Querier) error) (err error) {
	if tenantID == "" {
		return fmt.Errorf("tenant id required")
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT set_config($1, $2, true)`, TenantSetting, tenantID); err != nil {
		return fmt.Errorf("set tenant: %w", err)
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ValidID reports whether s can be compared against a uuid column. Ids that
// fail this check are treated as missing rows instead of driver errors.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
