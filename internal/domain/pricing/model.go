// Package pricing stores time-effective visit price rules and resolves
// the amount applicable to a case at a given instant.
package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MembershipMember    = "member"
	MembershipNonMember = "non_member"

	SlotBefore10AM = "BEFORE_10AM"
	SlotAfter10AM  = "AFTER_10AM"

	TagTagged    = "TAGGED"
	TagNonTagged = "NON_TAGGED"

	TreatmentNormal    = "NORMAL"
	TreatmentEmergency = "EMERGENCY"
)

var (
	validMembershipTypes = map[string]bool{MembershipMember: true, MembershipNonMember: true}
	validTimeSlots       = map[string]bool{SlotBefore10AM: true, SlotAfter10AM: true}
	validTagStatuses     = map[string]bool{TagTagged: true, TagNonTagged: true}
	validTreatmentTypes  = map[string]bool{TreatmentNormal: true, TreatmentEmergency: true}
)

// Quadruple identifies the rule dimension a price applies to. At most one
// active rule may be effective for a quadruple on any given date.
type Quadruple struct {
	MembershipType string `db:"membership_type" json:"membership_type"`
	TimeSlot       string `db:"time_slot" json:"time_slot"`
	TagStatus      string `db:"tag_status" json:"tag_status"`
	TreatmentType  string `db:"treatment_type" json:"treatment_type"`
}

// PricingRule maps to the pricing_rules table. EffectiveTo nil means
// open-ended.
type PricingRule struct {
	ID uuid.UUID `db:"id" json:"id"`
	Quadruple
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	EffectiveFrom time.Time       `db:"effective_from" json:"effective_from"`
	EffectiveTo   *time.Time      `db:"effective_to" json:"effective_to,omitempty"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	Locale        string          `db:"locale" json:"locale"`
	IsDeleted     bool            `db:"is_deleted" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether the rule's effective interval intersects
// [from, to], where a nil bound is open-ended.
func (r *PricingRule) Overlaps(from time.Time, to *time.Time) bool {
	if r.EffectiveTo != nil && r.EffectiveTo.Before(from) {
		return false
	}
	if to != nil && to.Before(r.EffectiveFrom) {
		return false
	}
	return true
}
