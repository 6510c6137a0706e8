package dialect

import (
	"context"
	"database/sql/driver"
)

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two statement entry points shared by drivers and
// transactions. args is expected to be a []any. For Exec, v is either nil or
// a *sql.Result; for Query, v is a *sql.Rows from dialect/sql.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface implemented by every relkit database driver.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection pool.
	Close() error
	// Dialect returns the engine name.
	Dialect() string
}

// Tx is a transaction bound to a single connection.
type Tx interface {
	ExecQuerier
	driver.Tx
}

// Supported reports whether name is one of the known dialects.
func Supported(name string) bool {
	switch name {
	case MySQL, SQLite, Postgres:
		return true
	}
	return false
}
