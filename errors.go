package relkit

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("relkit: record not found")

	// ErrTxStarted is returned when a transaction is started inside another one.
	ErrTxStarted = errors.New("relkit: cannot start a transaction within a transaction")

	// ErrBadRequest is matched by every BadRequestError.
	ErrBadRequest = errors.New("relkit: bad request")
)

// NotFoundError is returned by single-row lookups that matched nothing.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("relkit: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("relkit: %s not found", e.label)
}

// Is reports whether err is ErrNotFound.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity or table name.
func (e *NotFoundError) Label() string { return e.label }

// ID returns the looked-up id, if any.
func (e *NotFoundError) ID() any { return e.id }

// NewNotFoundError returns a NotFoundError for label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a NotFoundError carrying the looked-up id.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// BadRequestError reports a list parameter the kernel refuses, such as a
// search field outside the entity allow-list. Param names the parameter and
// Value the rejected value.
type BadRequestError struct {
	Param  string
	Value  string
	Reason string
}

// Error returns the error string.
func (e *BadRequestError) Error() string {
	return fmt.Sprintf("relkit: invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

// Is reports whether err is ErrBadRequest.
func (e *BadRequestError) Is(err error) bool {
	return err == ErrBadRequest
}

// NewBadRequestError returns a new BadRequestError.
func NewBadRequestError(param, value, reason string) *BadRequestError {
	return &BadRequestError{Param: param, Value: value, Reason: reason}
}

// IsBadRequest reports whether err is a BadRequestError.
func IsBadRequest(err error) bool {
	return err != nil && errors.Is(err, ErrBadRequest)
}

// UnresolvedReferenceError is returned when a staged row references a row of
// a table that has not been flushed yet in the same transaction.
type UnresolvedReferenceError struct {
	Table      string // table being flushed
	Column     string // column holding the reference
	Referenced string // table the reference points to
	Index      int    // position in the referenced table queue
	Reason     string
}

// Error returns the error string.
func (e *UnresolvedReferenceError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = fmt.Sprintf("%s has not been flushed in this transaction", e.Referenced)
	}
	return fmt.Sprintf("relkit: unresolved reference %s.%s -> %s[%d]: %s", e.Table, e.Column, e.Referenced, e.Index, reason)
}

// IsUnresolvedReference reports whether err is an UnresolvedReferenceError.
func IsUnresolvedReference(err error) bool {
	var e *UnresolvedReferenceError
	return errors.As(err, &e)
}

// PendingRowsError is returned when a write transaction ends with staged rows
// that were never flushed.
type PendingRowsError struct {
	Tables map[string]int
}

// Error returns the error string.
func (e *PendingRowsError) Error() string {
	parts := make([]string, 0, len(e.Tables))
	for t, n := range e.Tables {
		parts = append(parts, fmt.Sprintf("%s=%d", t, n))
	}
	slices.Sort(parts)
	return "relkit: transaction ended with unflushed rows: " + strings.Join(parts, ", ")
}

// IsPendingRows reports whether err is a PendingRowsError.
func IsPendingRows(err error) bool {
	var e *PendingRowsError
	return errors.As(err, &e)
}

// ConfigError reports an invalid subset specification. It is raised when the
// specification is loaded, never per request.
type ConfigError struct {
	Entity string
	Subset string
	Msg    string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	switch {
	case e.Subset != "":
		return fmt.Sprintf("relkit: config: %s/%s: %s", e.Entity, e.Subset, e.Msg)
	case e.Entity != "":
		return fmt.Sprintf("relkit: config: %s: %s", e.Entity, e.Msg)
	default:
		return "relkit: config: " + e.Msg
	}
}

// NewConfigError returns a new ConfigError with a formatted message.
func NewConfigError(entity, subset, format string, args ...any) *ConfigError {
	return &ConfigError{Entity: entity, Subset: subset, Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// ConstraintError wraps a unique, foreign-key or check violation.
type ConstraintError struct {
	Kind  string
	Table string
	wrap  error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("relkit: %s constraint failed on %s: %v", e.Kind, e.Table, e.wrap)
}

// Unwrap returns the driver error.
func (e *ConstraintError) Unwrap() error { return e.wrap }

// NewConstraintError returns a new ConstraintError.
func NewConstraintError(kind, table string, wrap error) *ConstraintError {
	return &ConstraintError{Kind: kind, Table: table, wrap: wrap}
}

// IsConstraintError reports whether err is a ConstraintError.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e)
}

// RollbackError is returned when rolling back after a failure also failed.
// Err carries both errors.
type RollbackError struct {
	Err error
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("relkit: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error { return e.Err }

// QueryError wraps an engine error raised by a read.
type QueryError struct {
	Entity string // table or entity being read
	Op     string // "select", "count", "load <alias>"
	Err    error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("relkit: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("relkit: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError reports whether err is a QueryError.
func IsQueryError(err error) bool {
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps an engine error raised by a write.
type MutationError struct {
	Entity string // table being written
	Op     string // "insert", "upsert", "update", "delete"
	Err    error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("relkit: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error { return e.Err }

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError reports whether err is a MutationError.
func IsMutationError(err error) bool {
	var e *MutationError
	return errors.As(err, &e)
}
