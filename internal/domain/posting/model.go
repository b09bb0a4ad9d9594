package posting

import (
	"time"

	"github.com/google/uuid"
)

// Payment sources.
const (
	SourcePayer   = "payer"
	SourcePatient = "patient"
)

// AdjustmentGroup is a standard claim adjustment group code.
type AdjustmentGroup string

const (
	GroupCO AdjustmentGroup = "CO" // contractual obligation
	GroupCR AdjustmentGroup = "CR" // correction/reversal
	GroupOA AdjustmentGroup = "OA" // other adjustment
	GroupPI AdjustmentGroup = "PI" // payer-initiated
	GroupPR AdjustmentGroup = "PR" // patient responsibility
)

// AdjustmentGroups lists every valid group code in a stable order.
func AdjustmentGroups() []AdjustmentGroup {
	return []AdjustmentGroup{GroupCO, GroupCR, GroupOA, GroupPI, GroupPR}
}

// Valid reports whether g is one of the five standard group codes.
func (g AdjustmentGroup) Valid() bool {
	switch g {
	case GroupCO, GroupCR, GroupOA, GroupPI, GroupPR:
		return true
	}
	return false
}

// Payment maps to the payment table. A payment is a single receipt (check,
// EFT, card, patient payment) whose amount is disbursed across one or more
// service lines.
type Payment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	Source             string     `db:"source" json:"source"`
	PayerID            *uuid.UUID `db:"payer_id" json:"payer_id,omitempty"`
	PatientID          *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	BillingPhysicianID *uuid.UUID `db:"billing_physician_id" json:"billing_physician_id,omitempty"`
	Amount             float64    `db:"amount" json:"amount"`
	Disbursed          float64    `db:"disbursed" json:"disbursed"`
	Date               time.Time  `db:"payment_date" json:"payment_date"`
	Method             *string    `db:"method" json:"method,omitempty"`
	Reference          *string    `db:"reference" json:"reference,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// Adjustment maps to the adjustment table: one posted adjustment row per
// reason code per service line per payment.
type Adjustment struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	PaymentID     uuid.UUID       `db:"payment_id" json:"payment_id"`
	ClaimID       uuid.UUID       `db:"claim_id" json:"claim_id"`
	ServiceLineID uuid.UUID       `db:"service_line_id" json:"service_line_id"`
	Group         AdjustmentGroup `db:"group_code" json:"group_code"`
	ReasonCode    *string         `db:"reason_code" json:"reason_code,omitempty"`
	Amount        float64         `db:"amount" json:"amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Disbursement maps to the disbursement table: how much of a payment landed
// on a given service line.
type Disbursement struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PaymentID     uuid.UUID `db:"payment_id" json:"payment_id"`
	ServiceLineID uuid.UUID `db:"service_line_id" json:"service_line_id"`
	Amount        float64   `db:"amount" json:"amount"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ServiceLineTotals is the posting engine's ledger view of one service
// line: the charge and everything applied against it so far.
type ServiceLineTotals struct {
	LineID      uuid.UUID
	LineGUID    uuid.UUID
	ClaimID     uuid.UUID
	Charges     float64
	InsPaid     float64
	PatPaid     float64
	Adjustments map[AdjustmentGroup]float64
}

// AdjustmentTotal sums all adjustment buckets.
func (t *ServiceLineTotals) AdjustmentTotal() float64 {
	var sum float64
	for _, v := range t.Adjustments {
		sum += v
	}
	return sum
}

// Remaining returns the unresolved portion of the line's charge.
func (t *ServiceLineTotals) Remaining() float64 {
	return t.Charges - t.InsPaid - t.PatPaid - t.AdjustmentTotal()
}

// ClaimTotals is the claim-level rollup written back after each posting.
type ClaimTotals struct {
	ClaimID     uuid.UUID `json:"claim_id"`
	TotalCharge float64   `json:"total_charge"`
	InsPaid     float64   `json:"ins_paid"`
	PatPaid     float64   `json:"pat_paid"`
	AdjCO       float64   `json:"adj_co"`
	AdjCR       float64   `json:"adj_cr"`
	AdjOA       float64   `json:"adj_oa"`
	AdjPI       float64   `json:"adj_pi"`
	AdjPR       float64   `json:"adj_pr"`
}

// AdjustmentTotal sums the five adjustment buckets.
func (t *ClaimTotals) AdjustmentTotal() float64 {
	return t.AdjCO + t.AdjCR + t.AdjOA + t.AdjPI + t.AdjPR
}

// Balance returns the claim's outstanding balance.
func (t *ClaimTotals) Balance() float64 {
	return t.TotalCharge - t.InsPaid - t.PatPaid - t.AdjustmentTotal()
}

// AdjustmentEntry is one adjustment in an apply command. ReasonAmount is
// the amount reported for the individual reason code by the remittance; it
// can differ from Amount when a payer bundles several reasons under one
// group, in which case the engine normalizes the PR entries before posting.
type AdjustmentEntry struct {
	Group        AdjustmentGroup `json:"group_code"`
	ReasonCode   *string         `json:"reason_code,omitempty"`
	Amount       float64         `json:"amount"`
	ReasonAmount float64         `json:"reason_amount"`
}

// LineApplication is the portion of a payment aimed at a single service
// line, with its accompanying adjustments.
type LineApplication struct {
	ServiceLineID uuid.UUID         `json:"service_line_id"`
	Amount        float64           `json:"amount"`
	Adjustments   []AdjustmentEntry `json:"adjustments,omitempty"`
}

// ApplyCommand is the full input to one posting operation.
type ApplyCommand struct {
	Source             string            `json:"source"`
	PayerID            *uuid.UUID        `json:"payer_id,omitempty"`
	PatientID          *uuid.UUID        `json:"patient_id,omitempty"`
	BillingPhysicianID *uuid.UUID        `json:"billing_physician_id,omitempty"`
	Amount             float64           `json:"amount"`
	Date               time.Time         `json:"payment_date"`
	Method             *string           `json:"method,omitempty"`
	Reference          *string           `json:"reference,omitempty"`
	AllowOverApply     bool              `json:"allow_over_apply,omitempty"`
	Lines              []LineApplication `json:"lines"`
}

// ApplyResult reports what one posting operation did.
type ApplyResult struct {
	PaymentID uuid.UUID                 `json:"payment_id"`
	ClaimIDs  []uuid.UUID               `json:"claim_ids"`
	Secondary []*SecondaryTriggerResult `json:"secondary,omitempty"`
}

// TriggerReason explains a secondary claim evaluation outcome.
type TriggerReason string

const (
	ReasonNoSecondaryInsurance   TriggerReason = "no_secondary_insurance"
	ReasonSecondaryAlreadyExists TriggerReason = "secondary_already_exists"
	ReasonClaimClosed            TriggerReason = "claim_closed"
	ReasonFullyPaid              TriggerReason = "fully_paid"
	ReasonNoForwardableBalance   TriggerReason = "no_forwardable_balance"
	ReasonForwardedToSecondary   TriggerReason = "forwarded_to_secondary"
)

// SecondaryTriggerResult is the outcome of evaluating whether a claim
// should forward its remaining balance to secondary insurance.
type SecondaryTriggerResult struct {
	ClaimID          uuid.UUID     `json:"claim_id"`
	Triggered        bool          `json:"triggered"`
	Reason           TriggerReason `json:"reason"`
	Amount           float64       `json:"amount,omitempty"`
	SecondaryClaimID *uuid.UUID    `json:"secondary_claim_id,omitempty"`
}

// AdjustmentForwardRule maps to the adjustment_forward_rule table: whether
// a (group, reason) pair carries to secondary insurance. Pairs with no rule
// row are not forwardable.
type AdjustmentForwardRule struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Group       AdjustmentGroup `db:"group_code" json:"group_code"`
	ReasonCode  string          `db:"reason_code" json:"reason_code"`
	Forwardable bool            `db:"forwardable" json:"forwardable"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// -- Remittance (ERA) input --

// EraFile is one parsed electronic remittance advice.
type EraFile struct {
	PayerID     *uuid.UUID `json:"payer_id,omitempty"`
	PayerName   string     `json:"payer_name"`
	CheckNumber string     `json:"check_number"`
	CheckDate   time.Time  `json:"check_date"`
	CheckAmount float64    `json:"check_amount"`
	Claims      []EraClaim `json:"claims"`
}

// EraClaim is one claim block inside a remittance.
type EraClaim struct {
	ClaimID            *uuid.UUID       `json:"claim_id,omitempty"`
	PatientID          *uuid.UUID       `json:"patient_id,omitempty"`
	PatientName        string           `json:"patient_name"`
	PayerControlNumber string           `json:"payer_control_number"`
	Lines              []EraServiceLine `json:"lines"`
}

// EraServiceLine is one service line payment inside a remittance claim.
type EraServiceLine struct {
	LineGUID      *uuid.UUID      `json:"line_guid,omitempty"`
	ProcedureCode string          `json:"procedure_code"`
	ServiceDate   time.Time       `json:"service_date"`
	Charge        float64         `json:"charge"`
	Paid          float64         `json:"paid"`
	Adjustments   []EraAdjustment `json:"adjustments,omitempty"`
}

// EraAdjustment is one adjustment reported on a remittance line.
type EraAdjustment struct {
	Group        AdjustmentGroup `json:"group_code"`
	ReasonCode   *string         `json:"reason_code,omitempty"`
	Amount       float64         `json:"amount"`
	ReasonAmount float64         `json:"reason_amount"`
}

// BatchError records why a single remittance claim failed to post.
type BatchError struct {
	ClaimID     *uuid.UUID `json:"claim_id,omitempty"`
	PatientName string     `json:"patient_name,omitempty"`
	Error       string     `json:"error"`
}

// BatchResult reports a remittance batch. A batch where some claims posted
// and others failed is partially processed, not failed.
type BatchResult struct {
	Success            bool         `json:"success"`
	PartiallyProcessed bool         `json:"partially_processed"`
	PaymentsCreated    int          `json:"payments_created"`
	ClaimsUpdated      int          `json:"claims_updated"`
	TotalApplied       float64      `json:"total_applied"`
	Errors             []BatchError `json:"errors,omitempty"`
}
