package upsert

import (
	"context"

	"github.com/syssam/relkit/query"
)

// TxFunc is the function run by Transaction.
type TxFunc func(ctx context.Context, tx *query.DB, b *Builder) error

// Transaction runs fn with a new builder inside a transaction of db. The
// transaction is rolled back if fn fails or leaves rows unflushed, in which
// case a *relkit.PendingRowsError is returned.
//
//	err := upsert.Transaction(ctx, db, func(ctx context.Context, tx *query.DB, b *upsert.Builder) error {
//		acme := b.Register("companies", map[string]any{"name": "Acme"})
//		b.Register("departments", map[string]any{"name": "Eng", "company_id": acme})
//		if _, err := b.Upsert(ctx, tx, "companies"); err != nil {
//			return err
//		}
//		_, err := b.Upsert(ctx, tx, "departments")
//		return err
//	})
func Transaction(ctx context.Context, db *query.DB, fn TxFunc, opts ...Option) error {
	return db.Transaction(ctx, func(ctx context.Context, tx *query.DB) error {
		b := New(opts...)
		if err := fn(ctx, tx, b); err != nil {
			return err
		}
		return b.Done()
	})
}
