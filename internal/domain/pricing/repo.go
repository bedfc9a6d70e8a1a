package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists pricing rules.
type Repository interface {
	Create(ctx context.Context, r *PricingRule) error
	Update(ctx context.Context, r *PricingRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*PricingRule, error)
	List(ctx context.Context, onlyActive bool, limit, offset int) ([]*PricingRule, int, error)
	// FindEffective returns the newest active rule for the quadruple whose
	// effective interval contains onDate, or nil when none matches.
	FindEffective(ctx context.Context, q Quadruple, onDate time.Time) (*PricingRule, error)
	// ListOverlapping returns active rules on the quadruple whose interval
	// intersects [from, to], excluding excludeID when non-nil.
	ListOverlapping(ctx context.Context, q Quadruple, from time.Time, to *time.Time, excludeID uuid.UUID) ([]*PricingRule, error)
}
