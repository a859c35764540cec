package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProductMissing = errors.New("product not found")

func TestErrorUnwrapsKindAndCause(t *testing.T) {
	err := fmt.Errorf("settle line 2: %w", NotFound("product", 42, errProductMissing))
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, errProductMissing)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "product 42")

	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "42", domainErr.ID)
}

func TestInsufficientStockErrorKind(t *testing.T) {
	err := error(&InsufficientStockError{ProductID: 1, Requested: 3, Available: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Equal(t, "insufficient stock for product 1: requested 3, available 1", err.Error())
}

func TestPartialCommitErrorKind(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&PartialCommitError{InvoiceNumber: "INV-2025-000001", Stage: "commit", MarkerID: "m", Cause: cause})
	require.ErrorIs(t, err, ErrPartialCommit)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindPartialCommit, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "", KindOf(nil))
	assert.Equal(t, KindValidation, KindOf(Validation("quantity", "must be >= 1")))
	assert.Equal(t, KindConflict, KindOf(Conflict("tally", "closed", nil)))
	assert.Equal(t, KindState, KindOf(State("invoice", 7, "terminal", nil)))
	assert.Equal(t, KindUnauthorized, KindOf(ErrInvalidCredentials))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}
