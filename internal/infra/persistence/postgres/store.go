// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics while keeping every record in normalized tables.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"agroqc/internal/infra/persistence/sqlstore"
	"agroqc/pkg/domain"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/jmoiron/sqlx"
)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with the configuration defaults.
	defaultDSN = "postgres://localhost/agroqc?sslmode=disable"
)

// SQLSTATE codes for constraint failures.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect describes Postgres column types and constraint errors.
var Dialect = sqlstore.Dialect{
	Name: "postgres",
	Types: map[string]string{
		sqlstore.KindText:    "TEXT",
		sqlstore.KindReal:    "DOUBLE PRECISION",
		sqlstore.KindBool:    "BOOLEAN",
		sqlstore.KindTime:    "TIMESTAMPTZ",
		sqlstore.KindDecimal: "NUMERIC(14,3)",
		sqlstore.KindList:    "JSONB",
	},
	Classify: classify,
}

// Store persists records to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*sqlstore.Store
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN),
// applies the schema and hydrates the in-memory state from the tables.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	raw, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store, err := sqlstore.Open(ctx, sqlx.NewDb(raw, defaultDriver), Dialect, engine)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Store{Store: store}, nil
}

func classify(err error) (sqlstore.ErrorKind, string) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return sqlstore.ErrorOther, ""
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return sqlstore.ErrorUnique, pgErr.ConstraintName
	case codeForeignKeyViolation:
		return sqlstore.ErrorForeignKey, pgErr.ConstraintName
	}
	return sqlstore.ErrorOther, pgErr.ConstraintName
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
