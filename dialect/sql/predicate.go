package sql

import "strings"

// Predicate is a boolean expression rendered into a Builder on demand, so its
// placeholders follow the numbering of the enclosing statement.
type Predicate struct {
	fns []func(*Builder)
}

// P creates a predicate from rendering functions.
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

func (p *Predicate) render(b *Builder) {
	for _, f := range p.fns {
		f(b)
	}
}

// Query implements Querier using "?" placeholders.
func (p *Predicate) Query() (string, []any) { return build("", p) }

// QueryDialect renders the predicate for the given dialect.
func (p *Predicate) QueryDialect(name string) (string, []any) { return build(name, p) }

func compare(column, op string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(column).WriteString(op).Arg(v)
	})
}

// EQ returns "column = v".
func EQ(column string, v any) *Predicate { return compare(column, " = ", v) }

// NEQ returns "column <> v".
func NEQ(column string, v any) *Predicate { return compare(column, " <> ", v) }

// GT returns "column > v".
func GT(column string, v any) *Predicate { return compare(column, " > ", v) }

// GTE returns "column >= v".
func GTE(column string, v any) *Predicate { return compare(column, " >= ", v) }

// LT returns "column < v".
func LT(column string, v any) *Predicate { return compare(column, " < ", v) }

// LTE returns "column <= v".
func LTE(column string, v any) *Predicate { return compare(column, " <= ", v) }

// Like returns "column LIKE pattern".
func Like(column, pattern string) *Predicate { return compare(column, " LIKE ", pattern) }

// ContainsFold returns a case-insensitive substring match on column.
func ContainsFold(column, sub string) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("LOWER(").Ident(column).WriteString(") LIKE ").Arg("%" + strings.ToLower(sub) + "%")
	})
}

// In returns "column IN (vs...)". A single *Selector argument is rendered as
// a subquery. An empty list never matches.
func In(column string, vs ...any) *Predicate {
	return P(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.Ident(column).WriteString(" IN ")
		if s, ok := vs[0].(*Selector); ok && len(vs) == 1 {
			b.Arg(s)
			return
		}
		b.Wrap(func(b *Builder) { b.Args(vs...) })
	})
}

// NotIn returns "column NOT IN (vs...)". An empty list always matches.
func NotIn(column string, vs ...any) *Predicate {
	return P(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("1 = 1")
			return
		}
		b.Ident(column).WriteString(" NOT IN ").Wrap(func(b *Builder) { b.Args(vs...) })
	})
}

// IsNull returns "column IS NULL".
func IsNull(column string) *Predicate {
	return P(func(b *Builder) { b.Ident(column).WriteString(" IS NULL") })
}

// NotNull returns "column IS NOT NULL".
func NotNull(column string) *Predicate {
	return P(func(b *Builder) { b.Ident(column).WriteString(" IS NOT NULL") })
}

// ColumnsEQ returns "c1 = c2".
func ColumnsEQ(c1, c2 string) *Predicate {
	return P(func(b *Builder) { b.Ident(c1).WriteString(" = ").Ident(c2) })
}

// ExprP returns a predicate from a raw expression with "?" placeholders.
func ExprP(raw string, args ...any) *Predicate {
	e := Expr(raw, args...)
	return P(e.render)
}

// And joins the predicates with AND. Nil predicates are skipped.
func And(preds ...*Predicate) *Predicate { return junction(" AND ", preds) }

// Or joins the predicates with OR. Nil predicates are skipped.
func Or(preds ...*Predicate) *Predicate { return junction(" OR ", preds) }

func junction(op string, preds []*Predicate) *Predicate {
	ps := make([]*Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			ps = append(ps, p)
		}
	}
	if len(ps) == 1 {
		return ps[0]
	}
	return P(func(b *Builder) {
		if len(ps) == 0 {
			b.WriteString("1 = 1")
			return
		}
		for i, p := range ps {
			if i > 0 {
				b.WriteString(op)
			}
			b.Wrap(p.render)
		}
	})
}

// Not negates p.
func Not(p *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT ").Wrap(p.render)
	})
}
