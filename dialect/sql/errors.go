package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes of class 23.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	mysqlCheckConstraint  = 3819
	mysqlRowIsReferenced2 = 1217
	mysqlNoReferencedRow2 = 1216
)

// sqlStateError is implemented by pgx errors and a few other drivers.
type sqlStateError interface {
	SQLState() string
}

// ConstraintKind classifies a constraint violation.
type ConstraintKind int

// Constraint kinds returned by ConstraintKindOf.
const (
	NoConstraint ConstraintKind = iota
	UniqueConstraint
	ForeignKeyConstraint
	CheckConstraint
)

// String returns the kind name.
func (k ConstraintKind) String() string {
	switch k {
	case UniqueConstraint:
		return "unique"
	case ForeignKeyConstraint:
		return "foreign key"
	case CheckConstraint:
		return "check"
	default:
		return "none"
	}
}

// ConstraintKindOf classifies err. Typed driver errors are inspected first;
// SQLite and unknown drivers fall back to message matching.
func ConstraintKindOf(err error) ConstraintKind {
	if err == nil {
		return NoConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgKind(string(pqErr.Code))
	}
	if e, ok := asError[sqlStateError](err); ok {
		if k := pgKind(e.SQLState()); k != NoConstraint {
			return k
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return UniqueConstraint
		case mysqlRowIsReferenced, mysqlNoReferencedRow, mysqlRowIsReferenced2, mysqlNoReferencedRow2:
			return ForeignKeyConstraint
		case mysqlCheckConstraint:
			return CheckConstraint
		}
		return NoConstraint
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "violates unique constraint", "Error 1062"):
		return UniqueConstraint
	case containsAny(msg, "FOREIGN KEY constraint failed", "violates foreign key constraint", "Error 1451", "Error 1452"):
		return ForeignKeyConstraint
	case containsAny(msg, "CHECK constraint failed", "violates check constraint", "Error 3819"):
		return CheckConstraint
	}
	return NoConstraint
}

func pgKind(code string) ConstraintKind {
	switch code {
	case pgUniqueViolation:
		return UniqueConstraint
	case pgForeignKeyViolation:
		return ForeignKeyConstraint
	case pgCheckViolation:
		return CheckConstraint
	}
	return NoConstraint
}

// IsUniqueConstraintError reports whether err is a uniqueness violation.
func IsUniqueConstraintError(err error) bool {
	return ConstraintKindOf(err) == UniqueConstraint
}

// IsForeignKeyConstraintError reports whether err is a foreign-key violation.
func IsForeignKeyConstraintError(err error) bool {
	return ConstraintKindOf(err) == ForeignKeyConstraint
}

// IsCheckConstraintError reports whether err is a check violation.
func IsCheckConstraintError(err error) bool {
	return ConstraintKindOf(err) == CheckConstraint
}

func asError[T any](err error) (T, bool) {
	var zero T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return zero, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
