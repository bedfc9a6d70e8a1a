package cases

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Owner-type filter values for case listings.
const (
	OwnerTypeMember    = "member"
	OwnerTypeNonMember = "non_member"
)

// ListFilter narrows a case listing. A nil VisibleTo means no visibility
// restriction; an empty non-nil slice matches nothing. Mobile matches the
// owner's mobile number, member or non-member.
type ListFilter struct {
	Status      string
	OwnerType   string
	Mobile      string
	AssigneeID  *uuid.UUID
	IsEmergency *bool
	From        *time.Time
	To          *time.Time
	VisibleTo   []uuid.UUID
	Limit       int
	Offset      int
}

// Repository persists cases. Soft-deleted rows are excluded from every
// read.
type Repository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*Case, error)
	GetByCaseNo(ctx context.Context, caseNo string, forUpdate bool) (*Case, error)
	Update(ctx context.Context, c *Case) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Case, int, error)
	// Dashboard aggregates by creation time. tz is the IANA zone the
	// monthly histogram is bucketed in.
	Dashboard(ctx context.Context, visibleTo []uuid.UUID, dayStart, dayEnd time.Time, tz string) (*Dashboard, error)
}

// AssignmentLogRepository is the append-only assignment history.
type AssignmentLogRepository interface {
	Create(ctx context.Context, l *CaseAssignmentLog) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CaseAssignmentLog, error)
}

type DiagnosisRepository interface {
	Create(ctx context.Context, d *CaseDiagnosis) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CaseDiagnosis, error)
}

type TreatmentRepository interface {
	Create(ctx context.Context, t *CaseTreatment) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*CaseTreatment, error)
}
