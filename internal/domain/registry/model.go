// Package registry holds the authoritative cattle identity: members,
// non-members, animals, tags, and status logs.
package registry

import (
	"time"

	"github.com/google/uuid"
)

// Tag actions.
const (
	TagActionCreated  = "CREATED"
	TagActionReplaced = "REPLACED"
)

// Animal status codes recorded in status logs.
const (
	StatusDry      = "DRY"
	StatusMilking  = "MILKING"
	StatusPregnant = "PREGNANT"
	StatusHeifer   = "HEIFER"
)

// Member maps to the members table.
type Member struct {
	ID          uuid.UUID `db:"id" json:"id"`
	MemberCode  string    `db:"member_code" json:"member_code"`
	Name        string    `db:"name" json:"name"`
	Mobile      string    `db:"mobile" json:"mobile"`
	CompanyCode *string   `db:"company_code" json:"company_code,omitempty"`
	PlantCode   *string   `db:"plant_code" json:"plant_code,omitempty"`
	MCCCode     *string   `db:"mcc_code" json:"mcc_code,omitempty"`
	BMCCode     *string   `db:"bmc_code" json:"bmc_code,omitempty"`
	MPPCode     *string   `db:"mpp_code" json:"mpp_code,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	IsDefault   bool      `db:"is_default" json:"is_default"`
	IsDeleted   bool      `db:"is_deleted" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// NonMember maps to the non_members table. VisitCount is maintained by the
// case engine on every quick visit.
type NonMember struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Mobile     string    `db:"mobile" json:"mobile"`
	Address    string    `db:"address" json:"address"`
	MCCCode    *string   `db:"mcc_code" json:"mcc_code,omitempty"`
	MPPCode    *string   `db:"mpp_code" json:"mpp_code,omitempty"`
	VisitCount int       `db:"visit_count" json:"visit_count"`
	IsDeleted  bool      `db:"is_deleted" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Animal references exactly one of MemberOwnerID or NonMemberOwnerID.
type Animal struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	MemberOwnerID    *uuid.UUID `db:"member_owner_id" json:"member_owner_id,omitempty"`
	NonMemberOwnerID *uuid.UUID `db:"non_member_owner_id" json:"non_member_owner_id,omitempty"`
	Breed            *string    `db:"breed" json:"breed,omitempty"`
	Gender           *string    `db:"gender" json:"gender,omitempty"`
	AgeMonths        *int       `db:"age_months" json:"age_months,omitempty"`
	Weight           *float64   `db:"weight" json:"weight,omitempty"`
	Pregnant         bool       `db:"pregnant" json:"pregnant"`
	PregnancyMonths  *int       `db:"pregnancy_months" json:"pregnancy_months,omitempty"`
	Details          *string    `db:"details" json:"details,omitempty"`
	IsAlive          bool       `db:"is_alive" json:"is_alive"`
	IsDeleted        bool       `db:"is_deleted" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// HasOneOwner reports the exactly-one-owner invariant.
func (a *Animal) HasOneOwner() bool {
	return (a.MemberOwnerID != nil) != (a.NonMemberOwnerID != nil)
}

// AnimalTag is the active ear tag of an animal. ReplacedOn is required
// exactly when Action is REPLACED.
type AnimalTag struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AnimalID         uuid.UUID  `db:"animal_id" json:"animal_id"`
	TagNumber        string     `db:"tag_number" json:"tag_number"`
	VirtualTagNumber *string    `db:"virtual_tag_number" json:"virtual_tag_number,omitempty"`
	Method           *string    `db:"method" json:"method,omitempty"`
	Location         *string    `db:"location" json:"location,omitempty"`
	Action           string     `db:"action" json:"action"`
	ReplacedOn       *time.Time `db:"replaced_on" json:"replaced_on,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	IsSynced         bool       `db:"is_synced" json:"is_synced"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// AnimalStatusLog records an animal's condition over a date interval. At
// most one log per animal has a nil ToDate.
type AnimalStatusLog struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AnimalID         uuid.UUID  `db:"animal_id" json:"animal_id"`
	FromDate         time.Time  `db:"from_date" json:"from_date"`
	ToDate           *time.Time `db:"to_date" json:"to_date,omitempty"`
	Statuses         []string   `db:"statuses" json:"statuses"`
	LastCalvingMonth *string    `db:"last_calving_month" json:"last_calving_month,omitempty"`
	LactationCount   *int       `db:"lactation_count" json:"lactation_count,omitempty"`
	MilkPerDay       *float64   `db:"milk_per_day" json:"milk_per_day,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// AnimalWithTag pairs an animal with its active tag for owner lookups.
type AnimalWithTag struct {
	Animal     *Animal          `json:"animal"`
	Tag        *AnimalTag       `json:"tag,omitempty"`
	CurrentLog *AnimalStatusLog `json:"current_status,omitempty"`
}

// OwnerMatch is one row of a mobile-number owner search.
type OwnerMatch struct {
	IsMember bool             `json:"is_member"`
	OwnerID  uuid.UUID        `json:"owner_id"`
	Name     string           `json:"name"`
	Mobile   string           `json:"mobile"`
	Address  string           `json:"address,omitempty"`
	MCCCode  *string          `json:"mcc_code,omitempty"`
	MPPCode  *string          `json:"mpp_code,omitempty"`
	Animals  []*AnimalWithTag `json:"animals"`
}
