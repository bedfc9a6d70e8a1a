package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists audit entries. The log is append-only; there is no
// update or delete.
type Repository interface {
	Create(ctx context.Context, l *AuditLog) error
	List(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]*AuditLog, int, error)
}

// SyncRepository flips the sync flags the mobile clients poll on.
type SyncRepository interface {
	// MarkCasesSynced sets the sync flag on the given case numbers and
	// returns how many rows changed.
	MarkCasesSynced(ctx context.Context, caseNos []string) (int, error)
}
