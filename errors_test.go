package relkit_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/relkit"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		assert.Equal(t, "relkit: users not found", relkit.NewNotFoundError("users").Error())
		assert.Equal(t, "relkit: users not found (id=7)", relkit.NewNotFoundErrorWithID("users", 7).Error())
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := relkit.NewNotFoundErrorWithID("users", 1)
		assert.True(t, errors.Is(err, relkit.ErrNotFound))
		assert.True(t, relkit.IsNotFound(fmt.Errorf("wrapped: %w", err)))
		assert.True(t, relkit.IsNotFound(relkit.ErrNotFound))
		assert.False(t, relkit.IsNotFound(errors.New("other")))
		assert.False(t, relkit.IsNotFound(nil))
		assert.Equal(t, 1, err.ID())
		assert.Equal(t, "users", err.Label())
	})
}

func TestBadRequestError(t *testing.T) {
	err := relkit.NewBadRequestError("search", "not_allowed", "not a searchable field")
	assert.Equal(t, `relkit: invalid search "not_allowed": not a searchable field`, err.Error())
	assert.True(t, relkit.IsBadRequest(fmt.Errorf("resolve: %w", err)))
	assert.False(t, relkit.IsBadRequest(relkit.ErrNotFound))

	var target *relkit.BadRequestError
	assert.True(t, errors.As(fmt.Errorf("x: %w", err), &target))
	assert.Equal(t, "not_allowed", target.Value)
}

func TestUnresolvedReferenceError(t *testing.T) {
	err := &relkit.UnresolvedReferenceError{Table: "departments", Column: "company_id", Referenced: "companies", Index: 0}
	assert.Equal(t, "relkit: unresolved reference departments.company_id -> companies[0]: companies has not been flushed in this transaction", err.Error())
	assert.True(t, relkit.IsUnresolvedReference(fmt.Errorf("tx: %w", err)))
	assert.False(t, relkit.IsUnresolvedReference(nil))
}

func TestPendingRowsError(t *testing.T) {
	err := &relkit.PendingRowsError{Tables: map[string]int{"b": 2, "a": 1}}
	assert.Equal(t, "relkit: transaction ended with unflushed rows: a=1, b=2", err.Error())
	assert.True(t, relkit.IsPendingRows(err))
}

func TestConfigError(t *testing.T) {
	tests := []struct {
		err  *relkit.ConfigError
		want string
	}{
		{relkit.NewConfigError("users", "list", "duplicate alias %q", "d"), `relkit: config: users/list: duplicate alias "d"`},
		{relkit.NewConfigError("users", "", "missing table"), "relkit: config: users: missing table"},
		{relkit.NewConfigError("", "", "empty"), "relkit: config: empty"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
		assert.True(t, relkit.IsConfigError(tt.err))
	}
}

func TestWrappedErrors(t *testing.T) {
	cause := errors.New("driver failure")

	t.Run("QueryError", func(t *testing.T) {
		err := relkit.NewQueryError("users", "count", cause)
		assert.Equal(t, "relkit: querying users (count): driver failure", err.Error())
		assert.Equal(t, "relkit: querying users: driver failure", relkit.NewQueryError("users", "", cause).Error())
		assert.ErrorIs(t, err, cause)
		assert.True(t, relkit.IsQueryError(err))
	})

	t.Run("MutationError", func(t *testing.T) {
		err := relkit.NewMutationError("users", "insert", cause)
		assert.Equal(t, "relkit: insert users: driver failure", err.Error())
		assert.ErrorIs(t, err, cause)
		assert.True(t, relkit.IsMutationError(err))
		assert.False(t, relkit.IsQueryError(err))
	})

	t.Run("ConstraintError", func(t *testing.T) {
		err := relkit.NewConstraintError("unique", "users", cause)
		assert.Equal(t, "relkit: unique constraint failed on users: driver failure", err.Error())
		assert.ErrorIs(t, relkit.NewMutationError("users", "insert", err), cause)
		assert.True(t, relkit.IsConstraintError(relkit.NewMutationError("users", "insert", err)))
	})

	t.Run("RollbackError", func(t *testing.T) {
		err := &relkit.RollbackError{Err: cause}
		assert.Equal(t, "relkit: rollback failed: driver failure", err.Error())
		assert.ErrorIs(t, err, cause)
	})
}
