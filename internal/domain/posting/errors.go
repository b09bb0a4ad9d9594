package posting

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDuplicatePayment means a payment with the same amount and reference
// was already recorded. Nothing is posted.
var ErrDuplicatePayment = errors.New("duplicate payment: same amount and reference already recorded")

// ErrNoPayerMatch means a remittance's payer could not be resolved.
var ErrNoPayerMatch = errors.New("no matching payer found")

// ErrNoLineMatch means a remittance line could not be matched to a service line.
var ErrNoLineMatch = errors.New("no matching service line found")

// OverpaymentError rejects an application that exceeds a line's remaining
// balance. It is raised before anything is written.
type OverpaymentError struct {
	ServiceLineID uuid.UUID
	Attempted     float64
	Remaining     float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("overpayment on service line %s: attempted %.2f exceeds remaining %.2f",
		e.ServiceLineID, e.Attempted, e.Remaining)
}

// ReconcileError means the post-apply verification found that a claim's
// stored totals disagree with its service lines. It aborts the transaction.
type ReconcileError struct {
	ClaimID     uuid.UUID
	Discrepancy float64
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconciliation failed for claim %s: discrepancy %.4f", e.ClaimID, e.Discrepancy)
}
