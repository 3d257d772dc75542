package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Custom errors
var (
	ErrClientNotFound         = fmt.Errorf("client not found")
	ErrContractNotFound       = fmt.Errorf("contract not found")
	ErrReminderNotFound       = fmt.Errorf("reminder not found")
	ErrPaymentNotFound        = fmt.Errorf("payment not found")
	ErrConciliationNotFound   = fmt.Errorf("conciliation not found")
	ErrDuplicateConciliation  = fmt.Errorf("conciliation already exists for this payment")
	ErrReminderAlreadySettled = fmt.Errorf("reminder already has a verified payment")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
