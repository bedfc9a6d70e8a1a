// Package audit keeps an append-only change log and the offline-sync
// flags for mobile-origin records.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// AuditLog maps to the audit_logs table. Change holds an arbitrary JSON
// snapshot of what changed.
type AuditLog struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	Action     string      `db:"action" json:"action"`
	EntityType string      `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID   `db:"entity_id" json:"entity_id"`
	ActorID    uuid.UUID   `db:"actor_id" json:"actor_id"`
	Change     interface{} `db:"change" json:"change,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
