package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
)

// Recorder is the write side handed to the other domain services.
type Recorder interface {
	Record(ctx context.Context, action, entityType string, entityID, actorID uuid.UUID, change interface{})
}

type Service struct {
	logs Repository
	sync SyncRepository
}

func NewService(logs Repository, sync SyncRepository) *Service {
	return &Service{logs: logs, sync: sync}
}

// Record appends an audit entry. A failed write is logged but never fails
// the business operation it describes.
func (s *Service) Record(ctx context.Context, action, entityType string, entityID, actorID uuid.UUID, change interface{}) {
	err := s.logs.Create(ctx, &AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Change:     change,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Str("entity_id", entityID.String()).
			Msg("audit write failed")
	}
}

func (s *Service) List(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]*AuditLog, int, error) {
	return s.logs.List(ctx, entityType, entityID, limit, offset)
}

// MarkCasesSynced acknowledges that the given cases reached the central
// server. Unknown case numbers are counted, not rejected, so a retried
// acknowledgement stays idempotent.
func (s *Service) MarkCasesSynced(ctx context.Context, caseNos []string) (int, error) {
	if len(caseNos) == 0 {
		return 0, apperr.New(apperr.KindValidation, "case_nos is required")
	}
	seen := make(map[string]bool, len(caseNos))
	deduped := caseNos[:0:0]
	for _, no := range caseNos {
		if no == "" {
			return 0, apperr.New(apperr.KindValidation, "case_nos must not contain empty entries")
		}
		if !seen[no] {
			seen[no] = true
			deduped = append(deduped, no)
		}
	}
	return s.sync.MarkCasesSynced(ctx, deduped)
}
