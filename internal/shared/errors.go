package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every domain failure unwraps to exactly one of these.
var (
	// ErrValidation indicates a malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a withdrawal larger than the available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict indicates a uniqueness or concurrency conflict.
	ErrConflict = errors.New("conflict")
	// ErrState indicates an operation not allowed in the current state.
	ErrState = errors.New("illegal state")
	// ErrPartialCommit indicates a write whose outcome could not be confirmed.
	ErrPartialCommit = errors.New("partial commit")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or invalid access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the actor lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Error carries the kind of a failure together with the offending field or identifier.
type Error struct {
	Kind     error
	Resource string
	Field    string
	ID       string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Resource != "" {
		b.WriteString(": ")
		b.WriteString(e.Resource)
		if e.ID != "" {
			b.WriteString(" ")
			b.WriteString(e.ID)
		}
	}
	if e.Field != "" {
		b.WriteString(": field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Validation builds a validation error for a field.
func Validation(field, message string) error {
	return &Error{Kind: ErrValidation, Field: field, Message: message}
}

// NotFound builds a not-found error for a resource identifier.
func NotFound(resource string, id any, cause error) error {
	return &Error{Kind: ErrNotFound, Resource: resource, ID: fmt.Sprint(id), Cause: cause}
}

// Conflict builds a conflict error.
func Conflict(resource, message string, cause error) error {
	return &Error{Kind: ErrConflict, Resource: resource, Message: message, Cause: cause}
}

// State builds an illegal-state error.
func State(resource string, id any, message string, cause error) error {
	return &Error{Kind: ErrState, Resource: resource, ID: fmt.Sprint(id), Message: message, Cause: cause}
}

// InsufficientStockError reports a rejected withdrawal.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// PartialCommitError reports a write whose commit outcome is unknown. A reconciliation
// marker identified by MarkerID was recorded for the operator sweep.
type PartialCommitError struct {
	InvoiceNumber string
	Stage         string
	MarkerID      string
	Cause         error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("partial commit of invoice %s at %s (marker %s): %v", e.InvoiceNumber, e.Stage, e.MarkerID, e.Cause)
}

func (e *PartialCommitError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrPartialCommit}
	}
	return []error{ErrPartialCommit, e.Cause}
}

// Kind names used on the wire.
const (
	KindValidation        = "validation"
	KindNotFound          = "not_found"
	KindInsufficientStock = "insufficient_stock"
	KindConflict          = "conflict"
	KindState             = "state"
	KindPartialCommit     = "partial_commit"
	KindUnauthorized      = "unauthorized"
	KindForbidden         = "forbidden"
	KindInternal          = "internal"
)

// KindOf classifies err into one of the wire kinds.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialCommit):
		return KindPartialCommit
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrState):
		return KindState
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}
