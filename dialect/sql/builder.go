package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/relkit/dialect"
)

// Querier wraps the Query method implemented by every statement builder.
type Querier interface {
	// Query returns the statement text and its arguments.
	Query() (string, []any)
}

// renderer is implemented by nodes that can be written into a shared Builder,
// so placeholders are numbered across nested statements.
type renderer interface {
	render(b *Builder)
}

type renderFunc func(*Builder)

func (f renderFunc) render(b *Builder) { f(b) }

// Builder accumulates statement text and arguments for one dialect.
type Builder struct {
	sb      strings.Builder
	dialect string
	args    []any
	errs    []error
}

// NewBuilder returns an empty Builder for the given dialect.
func NewBuilder(name string) *Builder {
	return &Builder{dialect: name}
}

// Dialect returns the builder dialect.
func (b *Builder) Dialect() string { return b.dialect }

func (b *Builder) postgres() bool { return b.dialect == dialect.Postgres }

// WriteString appends s verbatim.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends c verbatim.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad appends a single space.
func (b *Builder) Pad() *Builder { return b.WriteByte(' ') }

// Quote quotes a single identifier for the builder dialect.
func (b *Builder) Quote(ident string) string {
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

// Ident writes a possibly qualified identifier ("t.c" becomes "t"."c").
// Expressions such as "COUNT(*)" or "a AS b" are written as is.
func (b *Builder) Ident(s string) *Builder {
	switch {
	case s == "*":
		b.WriteString(s)
	case strings.HasSuffix(s, ".*") && !isExpr(strings.TrimSuffix(s, ".*")):
		b.Ident(strings.TrimSuffix(s, ".*")).WriteString(".*")
	case isExpr(s):
		b.WriteString(s)
	default:
		for i, p := range strings.Split(s, ".") {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(b.Quote(p))
		}
	}
	return b
}

// IdentComma writes the identifiers separated by commas.
func (b *Builder) IdentComma(idents ...string) *Builder {
	for i, s := range idents {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(s)
	}
	return b
}

func isExpr(s string) bool {
	return strings.ContainsAny(s, "()` \"'*")
}

// Arg writes a placeholder for a and records it. Builders and expressions are
// rendered inline instead, with subqueries wrapped in parentheses.
func (b *Builder) Arg(a any) *Builder {
	switch a := a.(type) {
	case *Selector:
		b.WriteByte('(')
		a.render(b)
		b.WriteByte(')')
	case renderer:
		a.render(b)
	default:
		b.args = append(b.args, a)
		if b.postgres() {
			b.WriteString("$" + strconv.Itoa(len(b.args)))
		} else {
			b.WriteByte('?')
		}
	}
	return b
}

// Args writes the arguments separated by commas.
func (b *Builder) Args(as ...any) *Builder {
	for i, a := range as {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Arg(a)
	}
	return b
}

// Wrap writes the output of f between parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	b.WriteByte(')')
	return b
}

// AddError records a build error returned by Err.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns the accumulated build errors.
func (b *Builder) Err() error { return errors.Join(b.errs...) }

// String returns the statement text.
func (b *Builder) String() string { return b.sb.String() }

// Query returns the statement text and arguments.
func (b *Builder) Query() (string, []any) { return b.sb.String(), b.args }

func build(name string, r renderer) (string, []any) {
	b := NewBuilder(name)
	r.render(b)
	return b.Query()
}

// ExprNode is a raw SQL fragment whose "?" marks are bound to args.
type ExprNode struct {
	raw  string
	args []any
}

// Expr returns a raw SQL fragment. Each "?" in raw is replaced by the
// dialect placeholder of the next argument.
func Expr(raw string, args ...any) *ExprNode {
	return &ExprNode{raw: raw, args: args}
}

// Raw returns a raw SQL fragment without arguments.
func Raw(raw string) *ExprNode { return &ExprNode{raw: raw} }

func (e *ExprNode) render(b *Builder) {
	if len(e.args) == 0 {
		b.WriteString(e.raw)
		return
	}
	n := 0
	for _, r := range e.raw {
		if r != '?' {
			b.sb.WriteRune(r)
			continue
		}
		if n < len(e.args) {
			b.Arg(e.args[n])
		} else {
			b.sb.WriteRune(r)
		}
		n++
	}
	if n != len(e.args) {
		b.AddError(fmt.Errorf("sql: expression %q has %d placeholders, got %d args", e.raw, n, len(e.args)))
	}
}

// Query implements Querier.
func (e *ExprNode) Query() (string, []any) { return build("", e) }

// DialectBuilder creates statement builders for one dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect returns a DialectBuilder for the given dialect.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Select returns a Selector for the dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return Select(columns...).SetDialect(d.dialect)
}

// Insert returns an InsertBuilder for the dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	i := Insert(table)
	i.dialect = d.dialect
	return i
}

// Update returns an UpdateBuilder for the dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	u := Update(table)
	u.dialect = d.dialect
	return u
}

// Delete returns a DeleteBuilder for the dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	del := Delete(table)
	del.dialect = d.dialect
	return del
}

// TableView is a FROM or JOIN source: a table or an aliased subquery.
type TableView interface {
	view()
	renderer
}

// SelectTable is a named table with an optional alias.
type SelectTable struct {
	name string
	as   string
}

// Table returns a new table selector.
func Table(name string) *SelectTable {
	return &SelectTable{name: name}
}

// As sets the table alias.
func (t *SelectTable) As(alias string) *SelectTable {
	t.as = alias
	return t
}

// Name returns the table name.
func (t *SelectTable) Name() string { return t.name }

// C returns a column qualified by the table alias or name.
func (t *SelectTable) C(column string) string {
	if t.as != "" {
		return t.as + "." + column
	}
	return t.name + "." + column
}

func (*SelectTable) view() {}

func (t *SelectTable) render(b *Builder) {
	b.Ident(t.name)
	if t.as != "" {
		b.WriteString(" AS ").Ident(t.as)
	}
}

type selection struct {
	column string
	expr   renderer
	as     string
}

type join struct {
	kind  string
	table TableView
	on    *Predicate
}

type order struct {
	column string
	desc   bool
}

// Selector builds SELECT statements.
type Selector struct {
	dialect   string
	as        string
	distinct  bool
	selection []selection
	from      []TableView
	joins     []join
	where     *Predicate
	group     []string
	having    *Predicate
	order     []order
	limit     *int
	offset    *int
}

// Select returns a Selector projecting the given columns.
func Select(columns ...string) *Selector {
	return new(Selector).Select(columns...)
}

// SetDialect sets the dialect used by Query.
func (s *Selector) SetDialect(name string) *Selector {
	s.dialect = name
	return s
}

// Dialect returns the selector dialect.
func (s *Selector) Dialect() string { return s.dialect }

// Select replaces the projection with the given columns.
func (s *Selector) Select(columns ...string) *Selector {
	s.selection = s.selection[:0:0]
	return s.AppendSelect(columns...)
}

// AppendSelect appends columns to the projection.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	for _, c := range columns {
		s.selection = append(s.selection, selection{column: c})
	}
	return s
}

// AppendSelectAs appends "column AS alias" to the projection.
func (s *Selector) AppendSelectAs(column, alias string) *Selector {
	s.selection = append(s.selection, selection{column: column, as: alias})
	return s
}

// AppendSelectExprAs appends "(expr) AS alias" to the projection.
func (s *Selector) AppendSelectExprAs(expr Querier, alias string) *Selector {
	var r renderer
	switch e := expr.(type) {
	case *Selector:
		r = renderFunc(func(b *Builder) { b.Arg(e) })
	case renderer:
		r = e
	default:
		query, args := expr.Query()
		r = Expr(query, args...)
	}
	s.selection = append(s.selection, selection{expr: r, as: alias})
	return s
}

// SelectedColumns returns the projected column names and aliases.
func (s *Selector) SelectedColumns() []string {
	names := make([]string, 0, len(s.selection))
	for _, sel := range s.selection {
		if sel.as != "" {
			names = append(names, sel.as)
		} else {
			names = append(names, sel.column)
		}
	}
	return names
}

// Distinct adds DISTINCT to the projection.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// From sets the source of the selector.
func (s *Selector) From(t TableView) *Selector {
	s.from = []TableView{t}
	return s
}

// As aliases the selector for use as a subquery source.
func (s *Selector) As(alias string) *Selector {
	s.as = alias
	return s
}

// Alias returns the subquery alias.
func (s *Selector) Alias() string { return s.as }

// C returns a column qualified by the selector alias.
func (s *Selector) C(column string) string {
	if s.as == "" {
		return column
	}
	return s.as + "." + column
}

func (*Selector) view() {}

// Join appends an INNER JOIN. The condition is set with On or OnP.
func (s *Selector) Join(t TableView) *Selector {
	s.joins = append(s.joins, join{kind: "JOIN", table: t})
	return s
}

// LeftJoin appends a LEFT JOIN. The condition is set with On or OnP.
func (s *Selector) LeftJoin(t TableView) *Selector {
	s.joins = append(s.joins, join{kind: "LEFT JOIN", table: t})
	return s
}

// On sets "c1 = c2" as the condition of the last join.
func (s *Selector) On(c1, c2 string) *Selector {
	return s.OnP(ColumnsEQ(c1, c2))
}

// OnP sets the condition of the last join.
func (s *Selector) OnP(p *Predicate) *Selector {
	if len(s.joins) > 0 {
		j := &s.joins[len(s.joins)-1]
		if j.on == nil {
			j.on = p
		} else {
			j.on = And(j.on, p)
		}
	}
	return s
}

// Where ANDs p with the current WHERE predicate.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil {
		return s
	}
	if s.where == nil {
		s.where = p
	} else {
		s.where = And(s.where, p)
	}
	return s
}

// WherePredicate returns the current WHERE predicate.
func (s *Selector) WherePredicate() *Predicate { return s.where }

// GroupBy appends GROUP BY columns.
func (s *Selector) GroupBy(columns ...string) *Selector {
	s.group = append(s.group, columns...)
	return s
}

// Having ANDs p with the current HAVING predicate.
func (s *Selector) Having(p *Predicate) *Selector {
	if s.having == nil {
		s.having = p
	} else {
		s.having = And(s.having, p)
	}
	return s
}

// OrderBy appends ascending ORDER BY columns.
func (s *Selector) OrderBy(columns ...string) *Selector {
	for _, c := range columns {
		s.order = append(s.order, order{column: c})
	}
	return s
}

// OrderByDesc appends a descending ORDER BY column.
func (s *Selector) OrderByDesc(column string) *Selector {
	s.order = append(s.order, order{column: column, desc: true})
	return s
}

// ClearOrder removes ORDER BY, LIMIT and OFFSET.
func (s *Selector) ClearOrder() *Selector {
	s.order, s.limit, s.offset = nil, nil, nil
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// HasGroup reports whether the selector has GROUP BY or DISTINCT.
func (s *Selector) HasGroup() bool { return len(s.group) > 0 || s.distinct }

// Clone returns a copy of the selector. Slices are copied; predicates are
// shared because they are never mutated once built.
func (s *Selector) Clone() *Selector {
	if s == nil {
		return nil
	}
	c := *s
	c.selection = append([]selection(nil), s.selection...)
	c.from = append([]TableView(nil), s.from...)
	c.joins = append([]join(nil), s.joins...)
	c.group = append([]string(nil), s.group...)
	c.order = append([]order(nil), s.order...)
	if s.limit != nil {
		n := *s.limit
		c.limit = &n
	}
	if s.offset != nil {
		n := *s.offset
		c.offset = &n
	}
	return &c
}

// Query implements Querier.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.render(b)
	return b.Query()
}

// Err returns the errors found while rendering the selector.
func (s *Selector) Err() error {
	b := NewBuilder(s.dialect)
	s.render(b)
	return b.Err()
}

func (s *Selector) render(b *Builder) { s.renderSelect(b) }

func (s *Selector) renderSelect(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.selection) == 0 {
		b.WriteByte('*')
	}
	for i, sel := range s.selection {
		if i > 0 {
			b.WriteString(", ")
		}
		if sel.expr != nil {
			sel.expr.render(b)
		} else {
			b.Ident(sel.column)
		}
		if sel.as != "" {
			b.WriteString(" AS ").WriteString(b.Quote(sel.as))
		}
	}
	if len(s.from) == 0 {
		b.AddError(errors.New("sql: missing FROM clause"))
	}
	for i, t := range s.from {
		if i == 0 {
			b.WriteString(" FROM ")
		} else {
			b.WriteString(", ")
		}
		renderSource(b, t)
	}
	for _, j := range s.joins {
		b.Pad().WriteString(j.kind).Pad()
		renderSource(b, j.table)
		if j.on != nil {
			b.WriteString(" ON ")
			j.on.render(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.render(b)
	}
	if len(s.group) > 0 {
		b.WriteString(" GROUP BY ").IdentComma(s.group...)
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		s.having.render(b)
	}
	for i, o := range s.order {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.Ident(o.column)
		if o.desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
	switch {
	case s.limit != nil:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	case s.offset != nil && b.dialect == dialect.SQLite:
		b.WriteString(" LIMIT -1")
	case s.offset != nil && b.dialect == dialect.MySQL:
		b.WriteString(" LIMIT 18446744073709551615")
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*s.offset))
	}
}

func renderSource(b *Builder, t TableView) {
	if sel, ok := t.(*Selector); ok {
		b.WriteByte('(')
		sel.renderSelect(b)
		b.WriteByte(')')
		if sel.as != "" {
			b.WriteString(" AS ").Ident(sel.as)
		} else {
			b.AddError(errors.New("sql: subquery source requires an alias"))
		}
		return
	}
	t.render(b)
}

// InsertBuilder builds INSERT statements.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    [][]any
	returning []string
	conflict  *conflict
}

type conflict struct {
	target []string
	update []string
}

// Insert returns an InsertBuilder for table.
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// Columns sets the inserted columns.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values appends one row of values.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Returning sets the RETURNING columns. It is ignored on MySQL.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// OnConflict turns the insert into an upsert keyed on target. The listed
// update columns take the proposed values; with none, conflicting rows are
// left untouched.
func (i *InsertBuilder) OnConflict(target []string, update ...string) *InsertBuilder {
	i.conflict = &conflict{target: target, update: update}
	return i
}

// Query implements Querier.
func (i *InsertBuilder) Query() (string, []any) { return build(i.dialect, i) }

func (i *InsertBuilder) render(b *Builder) {
	b.WriteString("INSERT INTO ").Ident(i.table)
	if len(i.columns) == 0 {
		if b.dialect == dialect.MySQL {
			b.WriteString(" () VALUES ()")
		} else {
			b.WriteString(" DEFAULT VALUES")
		}
	} else {
		b.Pad().Wrap(func(b *Builder) { b.IdentComma(i.columns...) })
		b.WriteString(" VALUES ")
		for j, row := range i.values {
			if j > 0 {
				b.WriteString(", ")
			}
			if len(row) != len(i.columns) {
				b.AddError(fmt.Errorf("sql: insert row %d has %d values for %d columns", j, len(row), len(i.columns)))
			}
			b.Wrap(func(b *Builder) { b.Args(row...) })
		}
	}
	if i.conflict != nil {
		i.renderConflict(b)
	}
	if len(i.returning) > 0 && b.dialect != dialect.MySQL {
		b.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
}

func (i *InsertBuilder) renderConflict(b *Builder) {
	c := i.conflict
	if b.dialect == dialect.MySQL {
		b.WriteString(" ON DUPLICATE KEY UPDATE ")
		update := c.update
		if len(update) == 0 && len(c.target) > 0 {
			// MySQL has no DO NOTHING form; a self assignment is a no-op.
			b.Ident(c.target[0]).WriteString(" = ").Ident(c.target[0])
			return
		}
		for j, col := range update {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Ident(col).WriteString(" = VALUES(").Ident(col).WriteByte(')')
		}
		return
	}
	b.WriteString(" ON CONFLICT ").Wrap(func(b *Builder) { b.IdentComma(c.target...) })
	if len(c.update) == 0 {
		b.WriteString(" DO NOTHING")
		return
	}
	b.WriteString(" DO UPDATE SET ")
	for j, col := range c.update {
		if j > 0 {
			b.WriteString(", ")
		}
		b.Ident(col).WriteString(" = ").WriteString("excluded.").Ident(col)
	}
}

// UpdateBuilder builds UPDATE statements.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Update returns an UpdateBuilder for table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set assigns a value or an expression to column.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Where ANDs p with the current WHERE predicate.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where == nil {
		u.where = p
	} else {
		u.where = And(u.where, p)
	}
	return u
}

// Empty reports whether the update has no assignments.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Query implements Querier.
func (u *UpdateBuilder) Query() (string, []any) { return build(u.dialect, u) }

func (u *UpdateBuilder) render(b *Builder) {
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.render(b)
	}
}

// DeleteBuilder builds DELETE statements.
type DeleteBuilder struct {
	dialect string
	table   string
	where   *Predicate
}

// Delete returns a DeleteBuilder for table.
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// Where ANDs p with the current WHERE predicate.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where == nil {
		d.where = p
	} else {
		d.where = And(d.where, p)
	}
	return d
}

// Query implements Querier.
func (d *DeleteBuilder) Query() (string, []any) { return build(d.dialect, d) }

func (d *DeleteBuilder) render(b *Builder) {
	b.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.render(b)
	}
}

// CaseBuilder builds searched CASE expressions.
type CaseBuilder struct {
	whens []caseWhen
	els   any
	elsC  string
}

type caseWhen struct {
	cond *Predicate
	then any
}

// Case returns an empty CASE expression.
func Case() *CaseBuilder { return &CaseBuilder{} }

// When appends "WHEN cond THEN v".
func (c *CaseBuilder) When(cond *Predicate, v any) *CaseBuilder {
	c.whens = append(c.whens, caseWhen{cond: cond, then: v})
	return c
}

// Else sets the ELSE value.
func (c *CaseBuilder) Else(v any) *CaseBuilder {
	c.els, c.elsC = v, ""
	return c
}

// ElseColumn sets the ELSE branch to a column reference.
func (c *CaseBuilder) ElseColumn(column string) *CaseBuilder {
	c.els, c.elsC = nil, column
	return c
}

// Query implements Querier.
func (c *CaseBuilder) Query() (string, []any) { return build("", c) }

func (c *CaseBuilder) render(b *Builder) {
	b.WriteString("CASE")
	for _, w := range c.whens {
		b.WriteString(" WHEN ")
		w.cond.render(b)
		b.WriteString(" THEN ").Arg(w.then)
	}
	switch {
	case c.elsC != "":
		b.WriteString(" ELSE ").Ident(c.elsC)
	case c.els != nil:
		b.WriteString(" ELSE ").Arg(c.els)
	}
	b.WriteString(" END")
}

// Render returns the statement text and arguments of q together with the
// errors found while building it.
func Render(q Querier) (string, []any, error) {
	var name string
	switch q := q.(type) {
	case *Selector:
		name = q.dialect
	case *InsertBuilder:
		name = q.dialect
	case *UpdateBuilder:
		name = q.dialect
	case *DeleteBuilder:
		name = q.dialect
	}
	r, ok := q.(renderer)
	if !ok {
		query, args := q.Query()
		return query, args, nil
	}
	b := NewBuilder(name)
	r.render(b)
	query, args := b.Query()
	return query, args, b.Err()
}
