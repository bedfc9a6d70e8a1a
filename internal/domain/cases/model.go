// Package cases is the case lifecycle engine: quick-visit intake, the
// case state machine, assignment history, and clinical records.
package cases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Case statuses.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// statusTransitions maps a case status to the statuses it may move to.
// COMPLETED and CANCELLED are terminal.
var statusTransitions = map[string]map[string]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Case maps to the cases table. CaseNo and CreatedBy are immutable after
// creation; AssigneeID tracks the current responsible user. Exactly one of
// MemberOwnerID and NonMemberOwnerID is set.
type Case struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	CaseNo           string          `db:"case_no" json:"case_no"`
	CreatedBy        uuid.UUID       `db:"created_by" json:"created_by"`
	AssigneeID       uuid.UUID       `db:"assignee_id" json:"assignee_id"`
	MemberOwnerID    *uuid.UUID      `db:"member_owner_id" json:"member_owner_id,omitempty"`
	NonMemberOwnerID *uuid.UUID      `db:"non_member_owner_id" json:"non_member_owner_id,omitempty"`
	AnimalID         uuid.UUID       `db:"animal_id" json:"animal_id"`
	Status           string          `db:"status" json:"status"`
	VisitAt          time.Time       `db:"visit_at" json:"visit_at"`
	IsTaggedAnimal   bool            `db:"is_tagged_animal" json:"is_tagged_animal"`
	IsEmergency      bool            `db:"is_emergency" json:"is_emergency"`
	Disease          *string         `db:"disease" json:"disease,omitempty"`
	Address          *string         `db:"address" json:"address,omitempty"`
	Remark           *string         `db:"remark" json:"remark,omitempty"`
	ComputedCost     decimal.Decimal `db:"computed_cost" json:"computed_cost"`
	IsSynced         bool            `db:"is_synced" json:"is_synced"`
	IsDeleted        bool            `db:"is_deleted" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// HasOneOwner reports the exactly-one-owner invariant.
func (c *Case) HasOneOwner() bool {
	return (c.MemberOwnerID != nil) != (c.NonMemberOwnerID != nil)
}

// CaseAssignmentLog is one row of a case's assignment history. FromUserID
// is nil on the initial assignment.
type CaseAssignmentLog struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CaseID     uuid.UUID  `db:"case_id" json:"case_id"`
	FromUserID *uuid.UUID `db:"from_user_id" json:"from_user_id,omitempty"`
	ToUserID   uuid.UUID  `db:"to_user_id" json:"to_user_id"`
	Remarks    string     `db:"remarks" json:"remarks"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// SymptomEntry is one observed symptom with an optional remark. The set is
// stored as JSONB on the diagnosis row.
type SymptomEntry struct {
	Name    string  `json:"name"`
	Remarks *string `json:"remarks,omitempty"`
}

// CaseDiagnosis is a clinical assessment recorded against a case.
type CaseDiagnosis struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	CaseID         uuid.UUID      `db:"case_id" json:"case_id"`
	Disease        *string        `db:"disease" json:"disease,omitempty"`
	CurrentStatus  *string        `db:"current_status" json:"current_status,omitempty"`
	MilkProduction *float64       `db:"milk_production" json:"milk_production,omitempty"`
	CaseType       *string        `db:"case_type" json:"case_type,omitempty"`
	Symptoms       []SymptomEntry `db:"symptoms" json:"symptoms,omitempty"`
	CreatedBy      uuid.UUID      `db:"created_by" json:"created_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// CaseTreatment is a treatment administered under a case. OTPVerified is
// set when the owner confirmed the visit with the one-time code.
type CaseTreatment struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	CaseID      uuid.UUID  `db:"case_id" json:"case_id"`
	ProviderID  uuid.UUID  `db:"provider_id" json:"provider_id"`
	MedicineID  *uuid.UUID `db:"medicine_id" json:"medicine_id,omitempty"`
	Route       *string    `db:"route" json:"route,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	OTPVerified bool       `db:"otp_verified" json:"otp_verified"`
	CreatedBy   uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// CaseDetail is a case with its attached records, assembled for reads.
type CaseDetail struct {
	Case           *Case                `json:"case"`
	AssignmentLogs []*CaseAssignmentLog `json:"assignment_logs,omitempty"`
	Diagnoses      []*CaseDiagnosis     `json:"diagnoses,omitempty"`
	Treatments     []*CaseTreatment     `json:"treatments,omitempty"`
}

// MonthlyCount is one bucket of the dashboard histogram, keyed YYYY-MM.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Dashboard is the aggregate view scoped to a viewer's visibility.
type Dashboard struct {
	TotalCases     int            `json:"total_cases"`
	TodayCases     int            `json:"today_cases"`
	MemberCases    int            `json:"member_cases"`
	NonMemberCases int            `json:"non_member_cases"`
	EmergencyCases int            `json:"emergency_cases"`
	ByStatus       map[string]int `json:"by_status"`
	Recent         []*Case        `json:"recent"`
	Monthly        []MonthlyCount `json:"monthly"`
}
