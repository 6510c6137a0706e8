package query

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/syssam/relkit"
	"github.com/syssam/relkit/dialect/sql"
)

// Direction is an ORDER BY direction.
type Direction string

// Directions accepted by OrderBy.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection parses "asc" or "desc", ignoring case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Asc, Desc:
		return d, nil
	}
	return "", fmt.Errorf("query: unknown order direction %q", s)
}

// Builder is an immutable select statement. Every method returns a new
// Builder and leaves the receiver untouched; nothing is executed until one of
// All, First or Count is called.
type Builder struct {
	db    *DB
	label string
	sel   *sql.Selector
	kinds map[string]Kind
	err   error
}

func (b Builder) clone() Builder {
	b.sel = b.sel.Clone()
	return b
}

func (b Builder) withKind(alias string, k Kind) Builder {
	kinds := make(map[string]Kind, len(b.kinds)+1)
	maps.Copy(kinds, b.kinds)
	kinds[alias] = k
	b.kinds = kinds
	return b
}

// Select appends items to the projection.
func (b Builder) Select(items ...Selection) Builder {
	c := b.clone()
	for _, it := range items {
		c = it.apply(c)
	}
	return c
}

// Columns appends plain columns to the projection.
func (b Builder) Columns(columns ...string) Builder {
	c := b.clone()
	c.sel.AppendSelect(columns...)
	return c
}

// Where ANDs p with the current filter.
func (b Builder) Where(p *sql.Predicate) Builder {
	c := b.clone()
	c.sel.Where(p)
	return c
}

// WhereIn ANDs "column IN (values...)" with the current filter.
func (b Builder) WhereIn(column string, values ...any) Builder {
	return b.Where(sql.In(column, values...))
}

// WhereGroup ANDs a parenthesized group built by fn with the current filter.
func (b Builder) WhereGroup(fn func(*Group)) Builder {
	g := &Group{}
	fn(g)
	return b.Where(g.Predicate())
}

// Join adds an INNER JOIN on "left = right". t is a table (sql.Table) or an
// aliased subquery (Builder.As).
func (b Builder) Join(t sql.TableView, left, right string) Builder {
	c := b.clone()
	c.sel.Join(t).On(left, right)
	return c
}

// LeftJoin adds a LEFT JOIN on "left = right".
func (b Builder) LeftJoin(t sql.TableView, left, right string) Builder {
	c := b.clone()
	c.sel.LeftJoin(t).On(left, right)
	return c
}

// GroupBy appends GROUP BY columns.
func (b Builder) GroupBy(columns ...string) Builder {
	c := b.clone()
	c.sel.GroupBy(columns...)
	return c
}

// Having ANDs p with the current HAVING filter.
func (b Builder) Having(p *sql.Predicate) Builder {
	c := b.clone()
	c.sel.Having(p)
	return c
}

// OrderBy appends an ORDER BY column.
func (b Builder) OrderBy(column string, dir Direction) Builder {
	c := b.clone()
	switch dir {
	case Asc, "":
		c.sel.OrderBy(column)
	case Desc:
		c.sel.OrderByDesc(column)
	default:
		c.err = fmt.Errorf("query: unknown order direction %q", dir)
	}
	return c
}

// Limit sets LIMIT.
func (b Builder) Limit(n int) Builder {
	c := b.clone()
	c.sel.Limit(n)
	return c
}

// Offset sets OFFSET.
func (b Builder) Offset(n int) Builder {
	c := b.clone()
	c.sel.Offset(n)
	return c
}

// As returns the builder as an aliased subquery usable in Join and FromSubquery.
func (b Builder) As(alias string) sql.TableView {
	return b.sel.Clone().As(alias)
}

// Selector returns a copy of the underlying selector.
func (b Builder) Selector() *sql.Selector { return b.sel.Clone() }

// Label returns the table name used in error messages.
func (b Builder) Label() string { return b.label }

// Err returns the first error recorded while building.
func (b Builder) Err() error {
	if b.err != nil {
		return b.err
	}
	return b.sel.Err()
}

// Query returns the statement text and arguments.
func (b Builder) Query() (string, []any) { return b.sel.Query() }

// Debug renders the statement with its arguments inlined. The result is meant
// for logs and inspection and is never executed.
func (b Builder) Debug() string {
	query, args := b.sel.Query()
	return Interpolate(b.sel.Dialect(), query, args)
}

// All executes the statement and returns every row.
func (b Builder) All(ctx context.Context) ([]Row, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	query, args := b.sel.Query()
	rows, err := b.db.rows(ctx, query, args)
	if err != nil {
		return nil, relkit.NewQueryError(b.label, "select", err)
	}
	for _, r := range rows {
		b.shape(r)
	}
	return rows, nil
}

// First executes the statement with LIMIT 1 and returns the row, or a
// NotFoundError when nothing matched.
func (b Builder) First(ctx context.Context) (Row, error) {
	rows, err := b.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, relkit.NewNotFoundError(b.label)
	}
	return rows[0], nil
}

// Count returns the number of rows the statement matches, ignoring ORDER BY,
// LIMIT and OFFSET. Grouped statements are counted through a subquery.
func (b Builder) Count(ctx context.Context) (int, error) {
	if err := b.Err(); err != nil {
		return 0, err
	}
	query, args := b.CountSelector().Query()
	rows, err := b.db.rows(ctx, query, args)
	if err != nil {
		return 0, relkit.NewQueryError(b.label, "count", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, ok := sql.ToInt64(rows[0]["count"])
	if !ok {
		return 0, relkit.NewQueryError(b.label, "count", fmt.Errorf("unexpected count type %T", rows[0]["count"]))
	}
	return int(n), nil
}

// CountSelector returns the selector Count executes.
func (b Builder) CountSelector() *sql.Selector {
	inner := b.sel.Clone().ClearOrder()
	if inner.HasGroup() {
		return sql.Dialect(inner.Dialect()).Select().
			AppendSelectExprAs(sql.Raw("COUNT(*)"), "count").
			From(inner.As("t"))
	}
	return inner.Select().AppendSelectExprAs(sql.Raw("COUNT(*)"), "count")
}

// Group builds a parenthesized tree of predicates combined left to right.
type Group struct {
	pred *sql.Predicate
}

// Where ANDs p into the group.
func (g *Group) Where(p *sql.Predicate) *Group {
	g.pred = sql.And(g.pred, p)
	return g
}

// OrWhere ORs p into the group.
func (g *Group) OrWhere(p *sql.Predicate) *Group {
	if g.pred == nil {
		g.pred = p
		return g
	}
	g.pred = sql.Or(g.pred, p)
	return g
}

// WhereIn ANDs "column IN (values...)" into the group.
func (g *Group) WhereIn(column string, values ...any) *Group {
	return g.Where(sql.In(column, values...))
}

// Group ANDs a nested group into the group.
func (g *Group) Group(fn func(*Group)) *Group {
	n := &Group{}
	fn(n)
	return g.Where(n.Predicate())
}

// OrGroup ORs a nested group into the group.
func (g *Group) OrGroup(fn func(*Group)) *Group {
	n := &Group{}
	fn(n)
	return g.OrWhere(n.Predicate())
}

// Predicate returns the group predicate. An empty group always matches.
func (g *Group) Predicate() *sql.Predicate {
	if g.pred == nil {
		return sql.And()
	}
	return g.pred
}
