package hierarchy

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Update(ctx context.Context, u *User) error
	SoftDelete(ctx context.Context, id uuid.UUID, by uuid.UUID) error
	List(ctx context.Context, department string, limit, offset int) ([]*User, int, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
}

// EdgeRepository persists the supervisor graph.
type EdgeRepository interface {
	Add(ctx context.Context, e *SupervisorEdge) error
	Remove(ctx context.Context, supervisorID, reporteeID uuid.UUID) error
	// ReporteeIDs returns the direct reportees of every supervisor in ids.
	ReporteeIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	ListForSupervisor(ctx context.Context, supervisorID uuid.UUID) ([]*SupervisorEdge, error)
}
