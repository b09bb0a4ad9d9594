package posting

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// Reconciler independently verifies a claim's books after a posting. It
// deliberately does not reuse CalculateClaimTotals: the whole point is a
// second opinion, so it derives the balance by summing each line's
// remaining amount and compares that against the stored claim totals.
type Reconciler struct {
	ledger    ServiceLineLedger
	store     ClaimStore
	tolerance float64
}

func NewReconciler(ledger ServiceLineLedger, store ClaimStore, tolerance float64) *Reconciler {
	return &Reconciler{ledger: ledger, store: store, tolerance: tolerance}
}

// Verify re-reads the claim's service lines and checks that the balance
// derived from them matches the balance implied by the stored claim totals.
// A disagreement beyond the tolerance returns a *ReconcileError.
func (r *Reconciler) Verify(ctx context.Context, claimID uuid.UUID) error {
	lines, err := r.ledger.ListTotalsByClaim(ctx, claimID)
	if err != nil {
		return err
	}

	var lineCharge, lineBalance float64
	for _, l := range lines {
		lineCharge += l.Charges
		lineBalance += l.Remaining()
	}

	stored, err := r.store.ReadTotals(ctx, claimID)
	if err != nil {
		return err
	}

	if d := stored.TotalCharge - lineCharge; math.Abs(d) > r.tolerance {
		return &ReconcileError{ClaimID: claimID, Discrepancy: d}
	}
	if d := stored.Balance() - lineBalance; math.Abs(d) > r.tolerance {
		return &ReconcileError{ClaimID: claimID, Discrepancy: d}
	}
	return nil
}
