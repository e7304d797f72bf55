// Package persistence implements the SQL repositories. Every tenant-owned query is
// filtered by a domain.Scope so rows outside the caller's window are never read or written.
package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

// Executor is the common subset of *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// txContextKey is the key for storing transaction in context
type txContextKey struct{}

// InjectTx injects a transaction into the context
func InjectTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// ExtractTx extracts a transaction from the context
func ExtractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// repo is embedded by every repository; it resolves the executor for a call.
type repo struct {
	db *sql.DB
}

func (r repo) exec(ctx context.Context) Executor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// scopeFilter renders the tenant predicate for a table alias ("" for none).
// Owner filtering is applied only when the table has an owner column.
func scopeFilter(s domain.Scope, alias string, hasOwner bool) (string, []interface{}) {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	clauses := []string{prefix + "company_id = ?"}
	args := []interface{}{s.CompanyID}
	if hasOwner && s.OwnerID != "" {
		clauses = append(clauses, prefix+"owner_id = ?")
		args = append(args, s.OwnerID)
	}
	return strings.Join(clauses, " AND "), args
}

// affectedOne maps a zero-row write to sql.ErrNoRows so callers can report not-found.
// placeholders returns n comma separated bind markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrFromNull(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	v := ns.String
	return &v
}

func timePtrFromNull(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
