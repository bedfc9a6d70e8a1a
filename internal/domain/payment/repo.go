package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists case payments.
type Repository interface {
	Create(ctx context.Context, p *CasePayment) error
	// GetByID loads a payment, taking a row lock when forUpdate is set.
	GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*CasePayment, error)
	Update(ctx context.Context, p *CasePayment) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CasePayment, error)
}
