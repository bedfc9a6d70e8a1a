// Package payment records per-case payments across methods and derives
// the case payment summary.
package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods.
const (
	MethodCash   = "CASH"
	MethodUPI    = "UPI"
	MethodCard   = "CARD"
	MethodOnline = "ONLINE"
)

// Payment statuses.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusRefunded   = "REFUNDED"
)

// Summary statuses.
const (
	SummaryUnpaid  = "UNPAID"
	SummaryPartial = "PARTIAL"
	SummaryPaid    = "PAID"
	SummaryOverdue = "OVERDUE"
)

var validMethods = map[string]bool{
	MethodCash: true, MethodUPI: true, MethodCard: true, MethodOnline: true,
}

// CasePayment maps to the case_payments table.
type CasePayment struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	CaseID          uuid.UUID       `db:"case_id" json:"case_id"`
	Method          string          `db:"method" json:"method"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Status          string          `db:"status" json:"status"`
	GatewayResponse *string         `db:"gateway_response" json:"gateway_response,omitempty"`
	CollectedBy     *uuid.UUID      `db:"collected_by" json:"collected_by,omitempty"`
	IsCollected     bool            `db:"is_collected" json:"is_collected"`
	IsReconciled    bool            `db:"is_reconciled" json:"is_reconciled"`
	TransactionID   *string         `db:"transaction_id" json:"transaction_id,omitempty"`
	IsDeleted       bool            `db:"is_deleted" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Summary is the derived payment position of a case.
type Summary struct {
	CaseID     uuid.UUID       `json:"case_id"`
	Total      decimal.Decimal `json:"total_amount"`
	Paid       decimal.Decimal `json:"amount_paid"`
	Due        decimal.Decimal `json:"amount_due"`
	Status     string          `json:"payment_status"`
	Overdue    bool            `json:"overdue"`
	Payments   []*CasePayment  `json:"payments,omitempty"`
}
