// Package hierarchy resolves which users a caller may see or act on,
// based on department and the supervisor→reportee graph.
package hierarchy

import (
	"time"

	"github.com/google/uuid"
)

// Departments recognized by the platform.
const (
	DeptAdmin        = "ADMIN"
	DeptSupervisor   = "SUPERVISOR"
	DeptMAT          = "MAT"
	DeptVeterinarian = "VETERINARIAN"
	DeptFacilitator  = "FACILITATOR"
	DeptMember       = "MEMBER"
)

var validDepartments = map[string]bool{
	DeptAdmin: true, DeptSupervisor: true, DeptMAT: true,
	DeptVeterinarian: true, DeptFacilitator: true, DeptMember: true,
}

// User maps to the users table.
type User struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Department string     `db:"department" json:"department"`
	MCCCode    *string    `db:"mcc_code" json:"mcc_code,omitempty"`
	MPPCode    *string    `db:"mpp_code" json:"mpp_code,omitempty"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	IsDeleted  bool       `db:"is_deleted" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	UpdatedBy  *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
}

// SupervisorEdge is a directed supervisor→reportee edge. The graph must
// stay acyclic.
type SupervisorEdge struct {
	ID           uuid.UUID `db:"id" json:"id"`
	SupervisorID uuid.UUID `db:"supervisor_id" json:"supervisor_id"`
	ReporteeID   uuid.UUID `db:"reportee_id" json:"reportee_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Territory carries the optional MCC/MPP restriction for a user.
type Territory struct {
	MCCCode *string `json:"mcc_code,omitempty"`
	MPPCode *string `json:"mpp_code,omitempty"`
}
