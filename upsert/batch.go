package upsert

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/relkit/dialect/sql"
	"github.com/syssam/relkit/query"
)

// BatchOptions configures UpdateBatch.
type BatchOptions struct {
	// ChunkSize is the number of rows per UPDATE statement. Zero or less
	// writes all rows with one statement.
	ChunkSize int
	// Where lists the columns matching a staged row to a stored row.
	// Defaults to the id column.
	Where []string
}

// UpdateBatch flushes the staged rows of table as partial updates. Each chunk
// of rows is written by one statement assigning
//
//	col = CASE WHEN <row matches> THEN <value> ... ELSE col END
//
// for every column present on at least one row of the chunk. Columns no row
// of the chunk carries are left out of the statement, and stored values of
// rows the chunk does not set are kept.
func (b *Builder) UpdateBatch(ctx context.Context, tx *query.DB, table string, opts BatchOptions) error {
	if err := b.bind(tx); err != nil {
		return err
	}
	rows := b.pending[table]
	if len(rows) == 0 {
		return nil
	}
	vals, err := b.resolve(table, rows)
	if err != nil {
		return err
	}
	match := opts.Where
	if len(match) == 0 {
		match = []string{b.id}
	}
	for i, m := range vals {
		for _, c := range match {
			if m[c] == nil {
				return &MatchError{Table: table, Row: i, Column: c}
			}
		}
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = len(vals)
	}
	statements := 0
	for chunk := range slices.Chunk(vals, size) {
		u := updateChunk(tx.SQL().Update(table), chunk, match)
		if u.Empty() {
			continue
		}
		if _, err := tx.Exec(ctx, u); err != nil {
			return mutationError(table, "update", err)
		}
		statements++
	}
	for _, m := range vals {
		b.flushed[table] = append(b.flushed[table], m[b.id])
	}
	delete(b.pending, table)
	b.logger.DebugContext(ctx, "upsert batch updated", "table", table, "rows", len(vals), "statements", statements)
	return nil
}

func updateChunk(u *sql.UpdateBuilder, chunk []map[string]any, match []string) *sql.UpdateBuilder {
	set := make(map[string]struct{})
	preds := make([]*sql.Predicate, len(chunk))
	for i, m := range chunk {
		for c := range m {
			if !slices.Contains(match, c) {
				set[c] = struct{}{}
			}
		}
		preds[i] = matchRow(m, match)
	}
	for _, col := range slices.Sorted(maps.Keys(set)) {
		c := sql.Case()
		for i, m := range chunk {
			if v, ok := m[col]; ok {
				c.When(preds[i], v)
			}
		}
		u.Set(col, c.ElseColumn(col))
	}
	if len(match) == 1 {
		keys := make([]any, len(chunk))
		for i, m := range chunk {
			keys[i] = m[match[0]]
		}
		return u.Where(sql.In(match[0], keys...))
	}
	return u.Where(sql.Or(preds...))
}

func matchRow(m map[string]any, match []string) *sql.Predicate {
	ps := make([]*sql.Predicate, len(match))
	for i, c := range match {
		ps[i] = sql.EQ(c, m[c])
	}
	return sql.And(ps...)
}

// MatchError is returned by UpdateBatch for a staged row lacking a match
// column.
type MatchError struct {
	Table  string
	Row    int
	Column string
}

// Error implements the error interface.
func (e *MatchError) Error() string {
	return fmt.Sprintf("upsert: %s row %d has no value for match column %q", e.Table, e.Row, e.Column)
}

// PruneOptions configures Prune.
type PruneOptions struct {
	// ParentColumn is the join table column holding the parent id.
	ParentColumn string
	// ParentIDs are the parents that were just saved.
	ParentIDs []any
	// Keep are the join table ids returned by the last Upsert of the table.
	Keep []any
	// IDColumn defaults to "id".
	IDColumn string
}

// Prune deletes the join table rows of the given parents that are not in
// Keep, which is how a many-to-many relation is replaced after an Upsert.
// It returns the number of deleted rows.
func Prune(ctx context.Context, tx *query.DB, table string, opts PruneOptions) (int64, error) {
	if opts.ParentColumn == "" {
		return 0, errors.New("upsert: prune requires a parent column")
	}
	if len(opts.ParentIDs) == 0 {
		return 0, nil
	}
	id := opts.IDColumn
	if id == "" {
		id = "id"
	}
	del := tx.SQL().Delete(table).
		Where(sql.In(opts.ParentColumn, opts.ParentIDs...)).
		Where(sql.NotIn(id, opts.Keep...))
	res, err := tx.Exec(ctx, del)
	if err != nil {
		return 0, mutationError(table, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mutationError(table, "delete", err)
	}
	return n, nil
}
