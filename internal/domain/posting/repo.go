package posting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medledger/medledger/internal/domain/claims"
)

// ServiceLineLedger reads and mutates the per-line running totals. The Add
// methods return the claim the line belongs to so the engine can collect the
// set of claims touched by a posting.
type ServiceLineLedger interface {
	GetTotals(ctx context.Context, lineID uuid.UUID) (*ServiceLineTotals, error)
	ListTotalsByClaim(ctx context.Context, claimID uuid.UUID) ([]*ServiceLineTotals, error)
	AddInsPaid(ctx context.Context, lineID uuid.UUID, amount float64) (uuid.UUID, error)
	AddPatPaid(ctx context.Context, lineID uuid.UUID, amount float64) (uuid.UUID, error)
	AddAdjustment(ctx context.Context, lineID uuid.UUID, group AdjustmentGroup, amount float64) (uuid.UUID, error)
}

// AdjustmentPoster appends posted adjustment rows.
type AdjustmentPoster interface {
	Post(ctx context.Context, a *Adjustment) error
	ListByPayment(ctx context.Context, paymentID, claimID uuid.UUID) ([]*Adjustment, error)
}

// DisbursementRecorder appends payment-to-line disbursement rows.
type DisbursementRecorder interface {
	Record(ctx context.Context, d *Disbursement) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*Disbursement, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	List(ctx context.Context, limit, offset int) ([]*Payment, int, error)
	SetDisbursed(ctx context.Context, id uuid.UUID, amount float64) error
	// Exists reports whether a payment with this amount and reference is
	// already recorded.
	Exists(ctx context.Context, amount float64, reference string) (bool, error)
}

// ClaimStore is the engine's window onto claims: reading them, writing
// their derived totals, and creating secondary claims.
type ClaimStore interface {
	GetClaim(ctx context.Context, id uuid.UUID) (*claims.Claim, error)
	CreateClaim(ctx context.Context, c *claims.Claim) error
	HasSecondaryClaim(ctx context.Context, primaryID uuid.UUID) (bool, error)
	ReadTotals(ctx context.Context, claimID uuid.UUID) (*ClaimTotals, error)
	WriteTotals(ctx context.Context, t *ClaimTotals) error
	AppendNote(ctx context.Context, claimID uuid.UUID, note, author string) error
}

// ForwardRuleSource answers whether a (group, reason) adjustment pair
// forwards to secondary insurance. Unknown pairs are not forwardable.
type ForwardRuleSource interface {
	IsForwardable(ctx context.Context, group AdjustmentGroup, reasonCode string) (bool, error)
}

// RuleRepository manages the forward rule table.
type RuleRepository interface {
	ForwardRuleSource
	Upsert(ctx context.Context, r *AdjustmentForwardRule) error
	List(ctx context.Context, limit, offset int) ([]*AdjustmentForwardRule, int, error)
}

// RemitResolver matches remittance identifiers to ledger records.
type RemitResolver interface {
	// ResolvePayer matches by id when the remittance carries one, falling
	// back to a case-insensitive name match.
	ResolvePayer(ctx context.Context, payerID *uuid.UUID, name string) (uuid.UUID, error)
	// ResolveClaim matches by claim id or by the patient's open claims.
	ResolveClaim(ctx context.Context, claimID, patientID *uuid.UUID) (*claims.Claim, error)
	// ResolveLine matches by line GUID when present, falling back to
	// procedure code plus service date within the claim.
	ResolveLine(ctx context.Context, claimID uuid.UUID, lineGUID *uuid.UUID, procedureCode string, serviceDate time.Time) (uuid.UUID, error)
}
