package claims

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medledger/medledger/internal/platform/auth"
)

// TotalsRefresher recomputes a claim's derived totals from its service
// lines. The posting engine provides the implementation; CRUD callers only
// need totals refreshed after a line is added, edited or removed.
type TotalsRefresher interface {
	RecomputeClaim(ctx context.Context, claimID uuid.UUID) error
}

type Service struct {
	payers PayerRepository
	claims ClaimRepository
	lines  ServiceLineRepository
	notes  ClaimNoteRepository
	totals TotalsRefresher
}

func NewService(payers PayerRepository, claims ClaimRepository, lines ServiceLineRepository, notes ClaimNoteRepository) *Service {
	return &Service{payers: payers, claims: claims, lines: lines, notes: notes}
}

// SetTotalsRefresher attaches an optional totals refresher (may be nil).
func (s *Service) SetTotalsRefresher(t TotalsRefresher) { s.totals = t }

// -- Payer --

func (s *Service) CreatePayer(ctx context.Context, p *Payer) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	p.Active = true
	return s.payers.Create(ctx, p)
}

func (s *Service) GetPayer(ctx context.Context, id uuid.UUID) (*Payer, error) {
	return s.payers.GetByID(ctx, id)
}

func (s *Service) UpdatePayer(ctx context.Context, p *Payer) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.payers.Update(ctx, p)
}

func (s *Service) DeletePayer(ctx context.Context, id uuid.UUID) error {
	return s.payers.Delete(ctx, id)
}

func (s *Service) ListPayers(ctx context.Context, limit, offset int) ([]*Payer, int, error) {
	return s.payers.List(ctx, limit, offset)
}

// -- Claim --

var validClaimStatuses = map[string]bool{
	StatusOpen: true, StatusBilled: true, StatusPaid: true, StatusClosed: true,
}

func (s *Service) CreateClaim(ctx context.Context, c *Claim) error {
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if c.Status == "" {
		c.Status = StatusOpen
	}
	if !validClaimStatuses[c.Status] {
		return fmt.Errorf("invalid claim status: %s", c.Status)
	}
	return s.claims.Create(ctx, c)
}

func (s *Service) GetClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *Service) UpdateClaim(ctx context.Context, c *Claim) error {
	existing, err := s.claims.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	// A closed claim can only be edited to reopen it.
	if existing.Status == StatusClosed && (c.Status == "" || c.Status == StatusClosed) {
		return fmt.Errorf("claim is closed")
	}
	if c.Status != "" && !validClaimStatuses[c.Status] {
		return fmt.Errorf("invalid claim status: %s", c.Status)
	}
	if err := s.claims.Update(ctx, c); err != nil {
		return err
	}
	// Audit trail only; a failed note does not undo the update.
	_ = s.notes.Append(ctx, &ClaimNote{
		ClaimID: c.ID,
		Note:    "Claim Edited",
		Author:  auth.UserIDFromContext(ctx),
	})
	return nil
}

func (s *Service) UpdateClaimStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validClaimStatuses[status] {
		return fmt.Errorf("invalid claim status: %s", status)
	}
	return s.claims.UpdateStatus(ctx, id, status)
}

func (s *Service) DeleteClaim(ctx context.Context, id uuid.UUID) error {
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.TotalInsPaid != 0 || c.TotalPatPaid != 0 {
		return fmt.Errorf("claim has posted payments and cannot be deleted")
	}
	return s.claims.Delete(ctx, id)
}

func (s *Service) ListClaims(ctx context.Context, limit, offset int) ([]*Claim, int, error) {
	return s.claims.List(ctx, limit, offset)
}

func (s *Service) ListClaimsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return s.claims.ListByPatient(ctx, patientID, limit, offset)
}

// -- Service lines --

func (s *Service) AddServiceLine(ctx context.Context, l *ServiceLine) error {
	if l.ClaimID == uuid.Nil {
		return fmt.Errorf("claim_id is required")
	}
	if l.ProcedureCode == "" {
		return fmt.Errorf("procedure_code is required")
	}
	if l.Charges < 0 {
		return fmt.Errorf("charges must not be negative")
	}
	if l.Units <= 0 {
		l.Units = 1
	}
	claim, err := s.claims.GetByID(ctx, l.ClaimID)
	if err != nil {
		return err
	}
	if claim.Status == StatusClosed {
		return fmt.Errorf("claim is closed")
	}
	if err := s.lines.Create(ctx, l); err != nil {
		return err
	}
	return s.refreshTotals(ctx, l.ClaimID)
}

func (s *Service) GetServiceLine(ctx context.Context, id uuid.UUID) (*ServiceLine, error) {
	return s.lines.GetByID(ctx, id)
}

func (s *Service) UpdateServiceLine(ctx context.Context, l *ServiceLine) error {
	existing, err := s.lines.GetByID(ctx, l.ID)
	if err != nil {
		return err
	}
	if existing.TotalInsPaid != 0 || existing.TotalPatPaid != 0 {
		return fmt.Errorf("service line has posted payments and cannot be edited")
	}
	if l.Charges < 0 {
		return fmt.Errorf("charges must not be negative")
	}
	if err := s.lines.Update(ctx, l); err != nil {
		return err
	}
	return s.refreshTotals(ctx, existing.ClaimID)
}

func (s *Service) DeleteServiceLine(ctx context.Context, id uuid.UUID) error {
	existing, err := s.lines.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.TotalInsPaid != 0 || existing.TotalPatPaid != 0 {
		return fmt.Errorf("service line has posted payments and cannot be deleted")
	}
	if err := s.lines.Delete(ctx, id); err != nil {
		return err
	}
	return s.refreshTotals(ctx, existing.ClaimID)
}

func (s *Service) ListServiceLines(ctx context.Context, claimID uuid.UUID) ([]*ServiceLine, error) {
	return s.lines.ListByClaim(ctx, claimID)
}

func (s *Service) refreshTotals(ctx context.Context, claimID uuid.UUID) error {
	if s.totals == nil {
		return nil
	}
	return s.totals.RecomputeClaim(ctx, claimID)
}

// -- Notes --

func (s *Service) AddNote(ctx context.Context, n *ClaimNote) error {
	if n.ClaimID == uuid.Nil {
		return fmt.Errorf("claim_id is required")
	}
	if n.Note == "" {
		return fmt.Errorf("note is required")
	}
	return s.notes.Append(ctx, n)
}

func (s *Service) ListNotes(ctx context.Context, claimID uuid.UUID, limit, offset int) ([]*ClaimNote, int, error) {
	return s.notes.ListByClaim(ctx, claimID, limit, offset)
}
