package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/relkit/dialect"
	"github.com/syssam/relkit/dialect/sql"
)

// Kind is the result type a selected expression is shaped to.
type Kind uint8

// Result kinds.
const (
	KindAny Kind = iota
	// KindInt converts the value to int64.
	KindInt
	// KindNumber keeps int64 values and converts anything else to float64.
	KindNumber
	// KindString converts the value to string.
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "any"
	}
}

// ParseKind parses a kind name as written in subset specifications.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return KindAny, nil
	case "int", "integer", "count":
		return KindInt, nil
	case "number", "float", "numeric":
		return KindNumber, nil
	case "string", "text":
		return KindString, nil
	}
	return KindAny, fmt.Errorf("query: unknown kind %q", s)
}

// Selection is an item of a select list.
type Selection interface {
	apply(Builder) Builder
}

type column struct {
	name, as string
}

func (c column) apply(b Builder) Builder {
	if c.as == "" {
		b.sel.AppendSelect(c.name)
	} else {
		b.sel.AppendSelectAs(c.name, c.as)
	}
	return b
}

// Col selects a column.
func Col(name string) Selection { return column{name: name} }

// ColAs selects a column under an alias.
func ColAs(name, alias string) Selection { return column{name: name, as: alias} }

// Expr is a raw SQL expression tagged with the kind of its result.
type Expr struct {
	raw  string
	args []any
	kind Kind
}

// Count returns COUNT(column), or COUNT(*) without column.
func Count(col ...string) Expr {
	if len(col) == 0 {
		return Expr{raw: "COUNT(*)", kind: KindInt}
	}
	return Expr{raw: "COUNT(" + col[0] + ")", kind: KindInt}
}

// RawNumber returns a numeric expression.
func RawNumber(raw string, args ...any) Expr {
	return Expr{raw: raw, args: args, kind: KindNumber}
}

// RawString returns a string expression.
func RawString(raw string, args ...any) Expr {
	return Expr{raw: raw, args: args, kind: KindString}
}

// Raw returns an expression of the given kind.
func Raw(raw string, kind Kind, args ...any) Expr {
	return Expr{raw: raw, args: args, kind: kind}
}

// Kind returns the expression result kind.
func (e Expr) Kind() Kind { return e.kind }

// As aliases the expression so it can be selected.
func (e Expr) As(alias string) Selection { return aliasedExpr{e, alias} }

type aliasedExpr struct {
	Expr
	as string
}

func (a aliasedExpr) apply(b Builder) Builder {
	b.sel.AppendSelectExprAs(sql.Expr(a.raw, a.args...), a.as)
	if a.kind != KindAny {
		b = b.withKind(a.as, a.kind)
	}
	return b
}

// shape converts the tagged columns of r in place.
func (b Builder) shape(r Row) {
	for alias, k := range b.kinds {
		v, ok := r[alias]
		if !ok || v == nil {
			continue
		}
		r[alias] = Convert(v, k)
	}
}

// Convert converts a driver value to kind k. Values that cannot be converted
// are returned unchanged.
func Convert(v any, k Kind) any {
	switch k {
	case KindInt:
		if n, ok := sql.ToInt64(v); ok {
			return n
		}
	case KindNumber:
		if n, ok := v.(int64); ok {
			return n
		}
		if f, ok := sql.ToFloat64(v); ok {
			return f
		}
	case KindString:
		switch v := v.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		default:
			return fmt.Sprint(v)
		}
	}
	return v
}

// Interpolate inlines args into query for display. The output is not safe
// to execute.
func Interpolate(name, query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	if name == dialect.Postgres {
		return interpolateNumbered(query, args)
	}
	var (
		sb strings.Builder
		n  int
	)
	for _, r := range query {
		if r == '?' && n < len(args) {
			sb.WriteString(literal(args[n]))
			n++
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// interpolateNumbered replaces $n placeholders in one pass, so a value that
// itself contains "$2" is written as is.
func interpolateNumbered(query string, args []any) string {
	var sb strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			sb.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			sb.WriteString(query[i:j])
		} else {
			sb.WriteString(literal(args[n-1]))
		}
		i = j - 1
	}
	return sb.String()
}

func literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(v), "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'"
	default:
		return fmt.Sprint(v)
	}
}
