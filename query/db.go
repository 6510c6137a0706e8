package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/relkit"
	"github.com/syssam/relkit/dialect"
	"github.com/syssam/relkit/dialect/sql"
)

// Row is one result row keyed by column name or alias.
type Row map[string]any

// DB is the entry point of the facade. It is bound either to a driver or,
// inside Transaction, to a single transaction.
type DB struct {
	drv     dialect.Driver
	conn    dialect.ExecQuerier
	tx      dialect.Tx
	dialect string
}

// New returns a DB executing statements through drv.
func New(drv dialect.Driver) *DB {
	return &DB{drv: drv, conn: drv, dialect: drv.Dialect()}
}

// Dialect returns the dialect of the underlying driver.
func (db *DB) Dialect() string { return db.dialect }

// Driver returns the driver the DB was created with.
func (db *DB) Driver() dialect.Driver { return db.drv }

// InTx reports whether the DB is bound to a transaction.
func (db *DB) InTx() bool { return db.tx != nil }

// Tx returns the bound transaction, or nil.
func (db *DB) Tx() dialect.Tx { return db.tx }

// SQL returns a statement factory for the DB dialect.
func (db *DB) SQL() *sql.DialectBuilder { return sql.Dialect(db.dialect) }

// Table starts a select builder on table.
func (db *DB) Table(name string) Builder {
	return Builder{
		db:    db,
		label: name,
		sel:   sql.Dialect(db.dialect).Select().From(sql.Table(name)),
	}
}

// TableAs starts a select builder on table under an alias.
func (db *DB) TableAs(name, alias string) Builder {
	return Builder{
		db:    db,
		label: name,
		sel:   sql.Dialect(db.dialect).Select().From(sql.Table(name).As(alias)),
	}
}

// FromSubquery starts a select builder reading from b as a derived table.
func (db *DB) FromSubquery(b Builder, alias string) Builder {
	return Builder{
		db:    db,
		label: alias,
		sel:   sql.Dialect(db.dialect).Select().From(b.sel.Clone().As(alias)),
		err:   b.err,
	}
}

// Exec executes a statement built by the sql package.
func (db *DB) Exec(ctx context.Context, q sql.Querier) (sql.Result, error) {
	query, args, err := sql.Render(q)
	if err != nil {
		return nil, err
	}
	var res sql.Result
	if err := db.conn.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Rows executes a statement and returns its rows.
func (db *DB) Rows(ctx context.Context, q sql.Querier) ([]Row, error) {
	query, args, err := sql.Render(q)
	if err != nil {
		return nil, err
	}
	return db.rows(ctx, query, args)
}

func (db *DB) rows(ctx context.Context, query string, args []any) ([]Row, error) {
	rows := &sql.Rows{}
	if err := db.conn.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	ms, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, err
	}
	out := make([]Row, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out, nil
}

// TxFunc is the function run by Transaction.
type TxFunc func(ctx context.Context, tx *DB) error

// Transaction runs fn inside a new transaction. The transaction is committed
// if fn returns nil and rolled back otherwise, including when fn panics, in
// which case the panic is propagated after the rollback.
func (db *DB) Transaction(ctx context.Context, fn TxFunc) error {
	if db.tx != nil {
		return relkit.ErrTxStarted
	}
	tx, err := db.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("relkit: starting a transaction: %w", err)
	}
	txDB := &DB{drv: db.drv, conn: tx, tx: tx, dialect: db.dialect}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(ctx, txDB); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return &relkit.RollbackError{Err: errors.Join(err, rerr)}
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("relkit: committing transaction: %w", err)
	}
	return nil
}
