// Package stock implements the medicine stock ledger: central stock with
// reservations, per-user allocations, consumption, and expiry-aware
// availability.
package stock

import (
	"time"

	"github.com/google/uuid"
)

// Stock transaction types and actions.
const (
	TxIn     = "IN"
	TxOut    = "OUT"
	TxAdjust = "ADJUST"

	ActionAllocated = "ALLOCATED"
	ActionUsed      = "USED"
	ActionReturned  = "RETURNED"
)

// Allocation sync states for offline mobile clients.
const (
	SyncPending = "PENDING"
	SyncSynced  = "SYNCED"
	SyncFailed  = "FAILED"
)

// Expiry buckets.
const (
	ExpiryNone    = "NO_EXPIRY"
	ExpiryExpired = "EXPIRED"
	ExpirySoon    = "EXPIRING_SOON"
	ExpiryWarning = "WARNING"
	ExpiryGood    = "GOOD"
)

// Medicine is the catalog entry a stock row refers to.
type Medicine struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Unit      string    `db:"unit" json:"unit"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	IsDeleted bool      `db:"is_deleted" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MedicineStock is one batch of a medicine at a location.
// Invariant: 0 <= reserved <= total.
type MedicineStock struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	MedicineID  uuid.UUID  `db:"medicine_id" json:"medicine_id"`
	Location    string     `db:"location" json:"location"`
	BatchNumber string     `db:"batch_number" json:"batch_number"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Total       int        `db:"total_quantity" json:"total_quantity"`
	Reserved    int        `db:"reserved_quantity" json:"reserved_quantity"`
	IsSynced    bool       `db:"is_synced" json:"is_synced"`
	IsDeleted   bool       `db:"is_deleted" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Available is the unreserved remainder.
func (s *MedicineStock) Available() int { return s.Total - s.Reserved }

// ExpiryBucket classifies the stock's expiry relative to now.
func (s *MedicineStock) ExpiryBucket(now time.Time) string {
	if s.ExpiryDate == nil {
		return ExpiryNone
	}
	switch d := s.ExpiryDate.Sub(now); {
	case d < 0:
		return ExpiryExpired
	case d <= 30*24*time.Hour:
		return ExpirySoon
	case d <= 90*24*time.Hour:
		return ExpiryWarning
	default:
		return ExpiryGood
	}
}

// UserMedicineAllocation is a user's share of a stock row.
// Invariant: 0 <= used <= allocated.
type UserMedicineAllocation struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	StockID      uuid.UUID `db:"stock_id" json:"stock_id"`
	Allocated    int       `db:"allocated_quantity" json:"allocated_quantity"`
	Used         int       `db:"used_quantity" json:"used_quantity"`
	Threshold    int       `db:"threshold_quantity" json:"threshold_quantity"`
	MinThreshold int       `db:"min_threshold" json:"min_threshold"`
	SyncStatus   string    `db:"sync_status" json:"sync_status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining is the unconsumed share.
func (a *UserMedicineAllocation) Remaining() int { return a.Allocated - a.Used }

// HealthBucket classifies an allocation against its thresholds.
func (a *UserMedicineAllocation) HealthBucket() string {
	switch r := a.Remaining(); {
	case r <= a.MinThreshold:
		return "CRITICAL"
	case r <= a.Threshold:
		return "WARNING"
	default:
		return "HEALTHY"
	}
}

// StockTransaction is an append-only movement record.
type StockTransaction struct {
	ID        uuid.UUID `db:"id" json:"id"`
	StockID   uuid.UUID `db:"stock_id" json:"stock_id"`
	Delta     int       `db:"delta" json:"delta"`
	TxType    string    `db:"tx_type" json:"tx_type"`
	Action    string    `db:"action" json:"action"`
	ActorID   uuid.UUID `db:"actor_id" json:"actor_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StockView decorates a stock row with its expiry bucket for listings.
type StockView struct {
	*MedicineStock
	Available    int    `json:"available_quantity"`
	ExpiryStatus string `json:"expiry_status"`
}

// AllocationSummary is one row of a user's stock summary.
type AllocationSummary struct {
	*UserMedicineAllocation
	Remaining int    `json:"remaining_quantity"`
	Health    string `json:"health"`
}

// UserStockSummary aggregates a user's allocations by health bucket.
type UserStockSummary struct {
	UserID      uuid.UUID            `json:"user_id"`
	Allocations []*AllocationSummary `json:"allocations"`
	Critical    int                  `json:"critical"`
	Warning     int                  `json:"warning"`
	Healthy     int                  `json:"healthy"`
}
