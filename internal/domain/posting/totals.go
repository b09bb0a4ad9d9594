package posting

import "github.com/google/uuid"

// CalculateClaimTotals folds a claim's service line totals into the
// claim-level rollup. It is a pure function of its inputs and performs no
// I/O; the engine persists its result through the claim store.
func CalculateClaimTotals(claimID uuid.UUID, lines []*ServiceLineTotals) *ClaimTotals {
	t := &ClaimTotals{ClaimID: claimID}
	for _, l := range lines {
		t.TotalCharge += l.Charges
		t.InsPaid += l.InsPaid
		t.PatPaid += l.PatPaid
		t.AdjCO += l.Adjustments[GroupCO]
		t.AdjCR += l.Adjustments[GroupCR]
		t.AdjOA += l.Adjustments[GroupOA]
		t.AdjPI += l.Adjustments[GroupPI]
		t.AdjPR += l.Adjustments[GroupPR]
	}
	return t
}
