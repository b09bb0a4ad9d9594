package claims

import (
	"context"

	"github.com/google/uuid"
)

type PayerRepository interface {
	Create(ctx context.Context, p *Payer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payer, error)
	GetByName(ctx context.Context, name string) (*Payer, error)
	Update(ctx context.Context, p *Payer) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Payer, int, error)
}

type ClaimRepository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	Update(ctx context.Context, c *Claim) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Claim, int, error)
	List(ctx context.Context, limit, offset int) ([]*Claim, int, error)
	HasSecondary(ctx context.Context, primaryID uuid.UUID) (bool, error)
}

type ServiceLineRepository interface {
	Create(ctx context.Context, l *ServiceLine) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceLine, error)
	Update(ctx context.Context, l *ServiceLine) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*ServiceLine, error)
}

type ClaimNoteRepository interface {
	Append(ctx context.Context, n *ClaimNote) error
	ListByClaim(ctx context.Context, claimID uuid.UUID, limit, offset int) ([]*ClaimNote, int, error)
}
