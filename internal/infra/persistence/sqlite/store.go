// Package sqlite provides the default durable store: a single SQLite file
// accessed through the pure Go modernc driver.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"agroqc/internal/infra/persistence/sqlstore"
	"agroqc/pkg/domain"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	driverName  = "sqlite"
	defaultPath = "agroqc.db"
	dsnOptions  = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
)

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Dialect describes SQLite column types and constraint errors.
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Types: map[string]string{
		sqlstore.KindText:    "TEXT",
		sqlstore.KindReal:    "REAL",
		sqlstore.KindBool:    "BOOLEAN",
		sqlstore.KindTime:    "TIMESTAMP",
		sqlstore.KindDecimal: "TEXT",
		sqlstore.KindList:    "TEXT",
	},
	Classify: classify,
}

// Store is a SQLite-backed persistent store.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the database file at path, applies the
// schema and hydrates the in-memory state.
func NewStore(ctx context.Context, path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sqlx.Open(driverName, path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store, err := sqlstore.Open(ctx, db, Dialect, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: store, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func classify(err error) (sqlstore.ErrorKind, string) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return sqlstore.ErrorOther, ""
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return sqlstore.ErrorUnique, se.Error()
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return sqlstore.ErrorForeignKey, se.Error()
	}
	return sqlstore.ErrorOther, se.Error()
}
