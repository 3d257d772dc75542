package app

import (
	"context"
	"errors"
	"fmt"

	idb "billing_collections/internal/infra/database"
)

// Application-level errors. Callers match them with errors.Is; the wrapped
// repository error stays reachable too.
var (
	ErrNotFound          = fmt.Errorf("resource not found")
	ErrConflict          = fmt.Errorf("resource conflict")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// classify attaches the application error class to repository errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, idb.ErrClientNotFound),
		errors.Is(err, idb.ErrContractNotFound),
		errors.Is(err, idb.ErrReminderNotFound),
		errors.Is(err, idb.ErrPaymentNotFound),
		errors.Is(err, idb.ErrConciliationNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, idb.ErrDuplicateConciliation),
		errors.Is(err, idb.ErrReminderAlreadySettled):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

// Transactor runs fn inside one local transaction. Nested calls must roll
// back only their own work on error.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
