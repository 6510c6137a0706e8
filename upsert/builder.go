package upsert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/relkit"
	"github.com/syssam/relkit/dialect"
	"github.com/syssam/relkit/dialect/sql"
	"github.com/syssam/relkit/query"
)

var (
	// ErrNoTx is returned when a flush is attempted outside a transaction.
	ErrNoTx = errors.New("upsert: statements must run inside a transaction")
	// ErrTxMismatch is returned when a builder is used with a second transaction.
	ErrTxMismatch = errors.New("upsert: builder is bound to another transaction")
)

// Ref stands for the id a staged row will receive once its table is flushed.
// It is only valid in the builder that returned it.
type Ref struct {
	session uuid.UUID
	table   string
	index   int
}

// Table returns the table of the referenced row.
func (r Ref) Table() string { return r.table }

// Index returns the position of the referenced row among the rows registered
// for its table.
func (r Ref) Index() int { return r.index }

// String implements fmt.Stringer.
func (r Ref) String() string { return fmt.Sprintf("%s[%d]", r.table, r.index) }

// value is a staged column value: either a literal or a reference.
type value struct {
	lit any
	ref *Ref
}

type pendingRow struct {
	cols map[string]value
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithIDColumn sets the primary key column of every table. Defaults to "id".
func WithIDColumn(name string) Option {
	return func(b *Builder) { b.id = name }
}

// Builder stages rows per table and flushes them table by table. Rows may
// reference rows of other tables through the Ref returned by Register; the
// reference is replaced by the real id when the referencing table is flushed,
// which requires the referenced table to be flushed first.
//
// A Builder belongs to one transaction and is not safe for concurrent use.
type Builder struct {
	session uuid.UUID
	id      string
	logger  *slog.Logger
	tx      *query.DB
	pending map[string][]pendingRow
	flushed map[string][]any
}

// New returns an empty builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		session: uuid.New(),
		id:      "id",
		logger:  slog.Default(),
		pending: make(map[string][]pendingRow),
		flushed: make(map[string][]any),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Session returns the id identifying the refs of this builder.
func (b *Builder) Session() uuid.UUID { return b.session }

// Register stages a row of table and returns a reference to its future id.
// Values of cols may be refs returned by earlier Register calls. A row with a
// non-nil id column is upserted, any other row is inserted.
func (b *Builder) Register(table string, cols map[string]any) Ref {
	idx := len(b.flushed[table]) + len(b.pending[table])
	row := pendingRow{cols: make(map[string]value, len(cols))}
	for k, v := range cols {
		if r, ok := v.(Ref); ok {
			row.cols[k] = value{ref: &r}
		} else {
			row.cols[k] = value{lit: v}
		}
	}
	b.pending[table] = append(b.pending[table], row)
	return Ref{session: b.session, table: table, index: idx}
}

// Pending returns the number of staged rows per table.
func (b *Builder) Pending() map[string]int {
	m := make(map[string]int, len(b.pending))
	for t, rows := range b.pending {
		if len(rows) > 0 {
			m[t] = len(rows)
		}
	}
	return m
}

// Flushed returns the ids flushed so far for table, in registration order.
func (b *Builder) Flushed(table string) []any {
	return slices.Clone(b.flushed[table])
}

// Done reports rows that were registered but never flushed.
func (b *Builder) Done() error {
	if p := b.Pending(); len(p) > 0 {
		return &relkit.PendingRowsError{Tables: p}
	}
	return nil
}

func (b *Builder) bind(tx *query.DB) error {
	switch {
	case tx == nil || !tx.InTx():
		return ErrNoTx
	case b.tx == nil:
		b.tx = tx
	case b.tx != tx:
		return ErrTxMismatch
	}
	return nil
}

// resolve returns the column values of rows with every reference replaced by
// the id it denotes.
func (b *Builder) resolve(table string, rows []pendingRow) ([]map[string]any, error) {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := make(map[string]any, len(r.cols))
		for col, v := range r.cols {
			if v.ref == nil {
				m[col] = v.lit
				continue
			}
			id, err := b.deref(table, col, *v.ref)
			if err != nil {
				return nil, err
			}
			m[col] = id
		}
		out[i] = m
	}
	return out, nil
}

func (b *Builder) deref(table, col string, r Ref) (any, error) {
	err := &relkit.UnresolvedReferenceError{Table: table, Column: col, Referenced: r.table, Index: r.index}
	if r.session != b.session {
		err.Reason = "reference belongs to another builder"
		return nil, err
	}
	ids := b.flushed[r.table]
	if r.index >= len(ids) {
		return nil, err
	}
	if ids[r.index] == nil {
		err.Reason = "referenced row has no id"
		return nil, err
	}
	return ids[r.index], nil
}

// group is a set of rows sharing the same columns, written by one statement.
type group struct {
	columns   []string
	positions []int
	hasID     bool
}

func groupRows(vals []map[string]any, id string) []*group {
	var groups []*group
	index := make(map[string]*group)
	for i, m := range vals {
		cols := slices.Sorted(maps.Keys(m))
		key := strings.Join(cols, "\x00")
		g := index[key]
		// Rows without columns are written one by one with DEFAULT VALUES.
		if g == nil || len(cols) == 0 {
			_, hasID := m[id]
			g = &group{columns: cols, hasID: hasID}
			index[key] = g
			groups = append(groups, g)
		}
		g.positions = append(g.positions, i)
	}
	return groups
}

func (g *group) values(vals []map[string]any) [][]any {
	rows := make([][]any, len(g.positions))
	for i, pos := range g.positions {
		row := make([]any, len(g.columns))
		for j, c := range g.columns {
			row[j] = vals[pos][c]
		}
		rows[i] = row
	}
	return rows
}

// Upsert flushes the staged rows of table and returns their ids in
// registration order. Rows sharing the same columns are written by one
// statement. Every reference must point to a table flushed earlier by this
// builder, otherwise a *relkit.UnresolvedReferenceError is returned. The queue
// of table is empty afterwards: a second call returns no ids.
func (b *Builder) Upsert(ctx context.Context, tx *query.DB, table string) ([]any, error) {
	if err := b.bind(tx); err != nil {
		return nil, err
	}
	rows := b.pending[table]
	if len(rows) == 0 {
		return []any{}, nil
	}
	vals, err := b.resolve(table, rows)
	if err != nil {
		return nil, err
	}
	for _, m := range vals {
		if v, ok := m[b.id]; ok && v == nil {
			delete(m, b.id)
		}
	}
	ids := make([]any, len(vals))
	groups := groupRows(vals, b.id)
	for _, g := range groups {
		var got []any
		if g.hasID {
			got, err = b.upsertGroup(ctx, tx, table, g, vals)
		} else {
			got, err = b.insertGroup(ctx, tx, table, g, vals)
		}
		if err != nil {
			return nil, err
		}
		for i, pos := range g.positions {
			ids[pos] = got[i]
		}
	}
	b.flushed[table] = append(b.flushed[table], ids...)
	delete(b.pending, table)
	b.logger.DebugContext(ctx, "upsert flushed", "table", table, "rows", len(ids), "statements", len(groups))
	return ids, nil
}

func (b *Builder) upsertGroup(ctx context.Context, tx *query.DB, table string, g *group, vals []map[string]any) ([]any, error) {
	update := slices.DeleteFunc(slices.Clone(g.columns), func(c string) bool { return c == b.id })
	ins := tx.SQL().Insert(table).Columns(g.columns...).OnConflict([]string{b.id}, update...)
	ids := make([]any, len(g.positions))
	for i, row := range g.values(vals) {
		ins.Values(row...)
		ids[i] = vals[g.positions[i]][b.id]
	}
	if _, err := tx.Exec(ctx, ins); err != nil {
		return nil, mutationError(table, "upsert", err)
	}
	return ids, nil
}

func (b *Builder) insertGroup(ctx context.Context, tx *query.DB, table string, g *group, vals []map[string]any) ([]any, error) {
	ins := tx.SQL().Insert(table).Columns(g.columns...)
	for _, row := range g.values(vals) {
		if len(row) > 0 {
			ins.Values(row...)
		}
	}
	if tx.Dialect() == dialect.MySQL {
		res, err := tx.Exec(ctx, ins)
		if err != nil {
			return nil, mutationError(table, "insert", err)
		}
		// MySQL reports the id of the first row of a multi-row insert.
		first, err := res.LastInsertId()
		if err != nil {
			return nil, mutationError(table, "insert", err)
		}
		ids := make([]any, len(g.positions))
		for i := range ids {
			ids[i] = first + int64(i)
		}
		return ids, nil
	}
	rows, err := tx.Rows(ctx, ins.Returning(b.id))
	if err != nil {
		return nil, mutationError(table, "insert", err)
	}
	if len(rows) != len(g.positions) {
		return nil, mutationError(table, "insert", fmt.Errorf("expected %d ids, got %d", len(g.positions), len(rows)))
	}
	ids := make([]any, len(rows))
	for i, r := range rows {
		ids[i] = r[b.id]
	}
	return ids, nil
}

func mutationError(table, op string, err error) error {
	if k := sql.ConstraintKindOf(err); k != sql.NoConstraint {
		return relkit.NewConstraintError(k.String(), table, err)
	}
	return relkit.NewMutationError(table, op, err)
}
