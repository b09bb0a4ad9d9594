package claims

import (
	"time"

	"github.com/google/uuid"
)

// Claim statuses.
const (
	StatusOpen   = "open"
	StatusBilled = "billed"
	StatusPaid   = "paid"
	StatusClosed = "closed"
)

// Payer maps to the payer table.
type Payer struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PayerCode   *string   `db:"payer_code" json:"payer_code,omitempty"`
	AddressLine *string   `db:"address_line" json:"address_line,omitempty"`
	City        *string   `db:"city" json:"city,omitempty"`
	State       *string   `db:"state" json:"state,omitempty"`
	Zip         *string   `db:"zip" json:"zip,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Claim maps to the claim table. The monetary totals are derived columns,
// recomputed from the claim's service lines after every posting; they are
// never written directly by CRUD callers.
type Claim struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	PayerID            *uuid.UUID `db:"payer_id" json:"payer_id,omitempty"`
	SecondaryPayerID   *uuid.UUID `db:"secondary_payer_id" json:"secondary_payer_id,omitempty"`
	BillingPhysicianID *uuid.UUID `db:"billing_physician_id" json:"billing_physician_id,omitempty"`
	PrimaryClaimID     *uuid.UUID `db:"primary_claim_id" json:"primary_claim_id,omitempty"`
	Status             string     `db:"status" json:"status"`
	PlaceOfService     *string    `db:"place_of_service" json:"place_of_service,omitempty"`
	DiagnosisCode1     *string    `db:"diagnosis_code_1" json:"diagnosis_code_1,omitempty"`
	DiagnosisCode2     *string    `db:"diagnosis_code_2" json:"diagnosis_code_2,omitempty"`
	DiagnosisCode3     *string    `db:"diagnosis_code_3" json:"diagnosis_code_3,omitempty"`
	DiagnosisCode4     *string    `db:"diagnosis_code_4" json:"diagnosis_code_4,omitempty"`
	TotalCharge        float64    `db:"total_charge" json:"total_charge"`
	TotalInsPaid       float64    `db:"total_ins_paid" json:"total_ins_paid"`
	TotalPatPaid       float64    `db:"total_pat_paid" json:"total_pat_paid"`
	TotalAdjCO         float64    `db:"total_adj_co" json:"total_adj_co"`
	TotalAdjCR         float64    `db:"total_adj_cr" json:"total_adj_cr"`
	TotalAdjOA         float64    `db:"total_adj_oa" json:"total_adj_oa"`
	TotalAdjPI         float64    `db:"total_adj_pi" json:"total_adj_pi"`
	TotalAdjPR         float64    `db:"total_adj_pr" json:"total_adj_pr"`
	Balance            float64    `db:"balance" json:"balance"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsSecondary reports whether this claim was spawned from a primary claim.
func (c *Claim) IsSecondary() bool { return c.PrimaryClaimID != nil }

// NewSecondaryClaim builds a secondary claim from a primary one. The new
// claim carries the primary's patient, physician, place of service and
// diagnoses, is addressed to the primary's secondary payer, and opens with a
// balance equal to the amount being forwarded.
func NewSecondaryClaim(primary *Claim, forwarded float64) *Claim {
	primaryID := primary.ID
	return &Claim{
		PatientID:          primary.PatientID,
		PayerID:            primary.SecondaryPayerID,
		BillingPhysicianID: primary.BillingPhysicianID,
		PrimaryClaimID:     &primaryID,
		Status:             StatusOpen,
		PlaceOfService:     primary.PlaceOfService,
		DiagnosisCode1:     primary.DiagnosisCode1,
		DiagnosisCode2:     primary.DiagnosisCode2,
		DiagnosisCode3:     primary.DiagnosisCode3,
		DiagnosisCode4:     primary.DiagnosisCode4,
		TotalCharge:        forwarded,
		Balance:            forwarded,
	}
}

// ServiceLine maps to the service_line table. LineGUID is the stable
// external identifier used to match remittance lines; it never changes once
// the line is created, even when the line is rebilled.
type ServiceLine struct {
	ID            uuid.UUID `db:"id" json:"id"`
	LineGUID      uuid.UUID `db:"line_guid" json:"line_guid"`
	ClaimID       uuid.UUID `db:"claim_id" json:"claim_id"`
	ProcedureCode string    `db:"procedure_code" json:"procedure_code"`
	Modifier1     *string   `db:"modifier_1" json:"modifier_1,omitempty"`
	Modifier2     *string   `db:"modifier_2" json:"modifier_2,omitempty"`
	ServiceDate   time.Time `db:"service_date" json:"service_date"`
	Units         float64   `db:"units" json:"units"`
	Charges       float64   `db:"charges" json:"charges"`
	TotalInsPaid  float64   `db:"total_ins_paid" json:"total_ins_paid"`
	TotalPatPaid  float64   `db:"total_pat_paid" json:"total_pat_paid"`
	AdjCO         float64   `db:"adj_co" json:"adj_co"`
	AdjCR         float64   `db:"adj_cr" json:"adj_cr"`
	AdjOA         float64   `db:"adj_oa" json:"adj_oa"`
	AdjPI         float64   `db:"adj_pi" json:"adj_pi"`
	AdjPR         float64   `db:"adj_pr" json:"adj_pr"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining returns the unresolved portion of the line's charge.
func (l *ServiceLine) Remaining() float64 {
	return l.Charges - l.TotalInsPaid - l.TotalPatPaid -
		l.AdjCO - l.AdjCR - l.AdjOA - l.AdjPI - l.AdjPR
}

// ClaimNote maps to the claim_note table. Notes form the claim's audit
// trail and are append-only.
type ClaimNote struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ClaimID   uuid.UUID `db:"claim_id" json:"claim_id"`
	Note      string    `db:"note" json:"note"`
	Author    string    `db:"author" json:"author"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
