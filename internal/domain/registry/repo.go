package registry

import (
	"context"

	"github.com/google/uuid"
)

type MemberRepository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	GetByCode(ctx context.Context, code string) (*Member, error)
	SearchByMobile(ctx context.Context, mobile string) ([]*Member, error)
	List(ctx context.Context, limit, offset int) ([]*Member, int, error)
}

type NonMemberRepository interface {
	Create(ctx context.Context, nm *NonMember) error
	GetByID(ctx context.Context, id uuid.UUID) (*NonMember, error)
	GetByMobile(ctx context.Context, mobile string) (*NonMember, error)
	SearchByMobile(ctx context.Context, mobile string) ([]*NonMember, error)
	Update(ctx context.Context, nm *NonMember) error
	IncrementVisitCount(ctx context.Context, id uuid.UUID) error
}

type AnimalRepository interface {
	Create(ctx context.Context, a *Animal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Animal, error)
	Update(ctx context.Context, a *Animal) error
	ListByMemberOwner(ctx context.Context, memberID uuid.UUID) ([]*Animal, error)
	ListByNonMemberOwner(ctx context.Context, nonMemberID uuid.UUID) ([]*Animal, error)
	// FindByNonMemberAndTag resolves the idempotence key of ensure-animal.
	FindByNonMemberAndTag(ctx context.Context, nonMemberID uuid.UUID, tagNumber string) (*Animal, error)
}

type TagRepository interface {
	Create(ctx context.Context, t *AnimalTag) error
	GetActiveByAnimal(ctx context.Context, animalID uuid.UUID) (*AnimalTag, error)
	GetActiveByTagNumber(ctx context.Context, tagNumber string) (*AnimalTag, error)
	Update(ctx context.Context, t *AnimalTag) error
}

type StatusLogRepository interface {
	Create(ctx context.Context, l *AnimalStatusLog) error
	// GetOpenForAnimal returns the log with nil ToDate, locking the row
	// when forUpdate is set. Nil when the animal has no open log.
	GetOpenForAnimal(ctx context.Context, animalID uuid.UUID, forUpdate bool) (*AnimalStatusLog, error)
	Update(ctx context.Context, l *AnimalStatusLog) error
	ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]*AnimalStatusLog, error)
}
