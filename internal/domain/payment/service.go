package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

// CaseInfo is the slice of a case the ledger needs: its cost snapshot and
// visit time for overdue computation.
type CaseInfo struct {
	CaseID  uuid.UUID
	Total   decimal.Decimal
	VisitAt time.Time
}

// CaseInfoProvider is implemented by the case engine.
type CaseInfoProvider interface {
	CaseInfoByNo(ctx context.Context, caseNo string) (*CaseInfo, error)
	CaseInfoByID(ctx context.Context, caseID uuid.UUID) (*CaseInfo, error)
}

// Options carries the ledger's policy knobs.
type Options struct {
	GraceDays        int
	AllowOverpayment bool
}

type Service struct {
	payments Repository
	cases    CaseInfoProvider
	tx       db.TxRunner
	opts     Options
	now      func() time.Time
}

func NewService(payments Repository, cases CaseInfoProvider, tx db.TxRunner, opts Options) *Service {
	if opts.GraceDays <= 0 {
		opts.GraceDays = 7
	}
	return &Service{payments: payments, cases: cases, tx: tx, opts: opts, now: time.Now}
}

// transitions maps a payment status to the statuses it may move to.
// Cash payments may jump PENDING straight to COMPLETED; the guard is in
// MarkCompleted.
var transitions = map[string]map[string]bool{
	StatusPending:    {StatusProcessing: true, StatusFailed: true, StatusCompleted: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {StatusRefunded: true},
	StatusFailed:     {},
	StatusRefunded:   {},
}

// RecordPayment appends a PENDING payment to a case. The net paid plus the
// new amount may not exceed the case total unless overpayment is allowed.
func (s *Service) RecordPayment(ctx context.Context, caseNo string, p *CasePayment) (*CasePayment, error) {
	if !validMethods[p.Method] {
		return nil, apperr.Newf(apperr.KindValidation, "invalid payment method: %s", p.Method)
	}
	if !p.Amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "amount must be positive")
	}

	info, err := s.cases.CaseInfoByNo(ctx, caseNo)
	if err != nil {
		return nil, err
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		sum, err := s.summarize(ctx, info)
		if err != nil {
			return err
		}
		if !s.opts.AllowOverpayment && sum.Paid.Add(p.Amount).GreaterThan(info.Total) {
			return apperr.Newf(apperr.KindInvariantViolation,
				"payment of %s would exceed the outstanding due of %s", p.Amount, sum.Due)
		}
		p.CaseID = info.CaseID
		p.Status = StatusPending
		if p.Method == MethodCash && p.CollectedBy != nil {
			p.IsCollected = true
		}
		return s.payments.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) guard(p *CasePayment, next string) error {
	if !transitions[p.Status][next] {
		return apperr.Newf(apperr.KindForbiddenTransition,
			"payment cannot move from %s to %s", p.Status, next)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, next string, mutate func(*CasePayment) error) (*CasePayment, error) {
	var result *CasePayment
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByID(ctx, id, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "payment not found", err)
		}
		if err := s.guard(p, next); err != nil {
			return err
		}
		if mutate != nil {
			if err := mutate(p); err != nil {
				return err
			}
		}
		p.Status = next
		result = p
		return s.payments.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkProcessing moves a payment into the gateway-pending state.
func (s *Service) MarkProcessing(ctx context.Context, id uuid.UUID, gatewayResponse *string) (*CasePayment, error) {
	return s.transition(ctx, id, StatusProcessing, func(p *CasePayment) error {
		if p.Method == MethodCash {
			return apperr.New(apperr.KindForbiddenTransition, "cash payments do not enter processing")
		}
		p.GatewayResponse = gatewayResponse
		return nil
	})
}

// MarkCompleted settles a payment. Only cash may complete straight from
// PENDING; gateway methods must pass through PROCESSING.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID, txnID, gatewayResponse *string, collectedBy *uuid.UUID) (*CasePayment, error) {
	return s.transition(ctx, id, StatusCompleted, func(p *CasePayment) error {
		if p.Status == StatusPending && p.Method != MethodCash {
			return apperr.New(apperr.KindForbiddenTransition,
				"non-cash payments must be processing before completion")
		}
		if txnID != nil {
			p.TransactionID = txnID
		}
		if gatewayResponse != nil {
			p.GatewayResponse = gatewayResponse
		}
		if collectedBy != nil {
			p.CollectedBy = collectedBy
			p.IsCollected = true
		}
		return nil
	})
}

// MarkFailed records a gateway failure.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, gatewayResponse *string) (*CasePayment, error) {
	return s.transition(ctx, id, StatusFailed, func(p *CasePayment) error {
		p.GatewayResponse = gatewayResponse
		return nil
	})
}

// Refund reverses a completed payment.
func (s *Service) Refund(ctx context.Context, id uuid.UUID) (*CasePayment, error) {
	return s.transition(ctx, id, StatusRefunded, nil)
}

// Reconcile flags a payment as matched against the collection report. It
// changes nothing else.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (*CasePayment, error) {
	var result *CasePayment
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByID(ctx, id, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "payment not found", err)
		}
		p.IsReconciled = true
		result = p
		return s.payments.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SummaryForCase derives the payment position of a case.
func (s *Service) SummaryForCase(ctx context.Context, caseNo string) (*Summary, error) {
	info, err := s.cases.CaseInfoByNo(ctx, caseNo)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, info)
}

// SummaryForCaseID is SummaryForCase keyed by case id, for callers that
// already hold one.
func (s *Service) SummaryForCaseID(ctx context.Context, caseID uuid.UUID) (*Summary, error) {
	info, err := s.cases.CaseInfoByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, info)
}

func (s *Service) summarize(ctx context.Context, info *CaseInfo) (*Summary, error) {
	payments, err := s.payments.ListByCase(ctx, info.CaseID)
	if err != nil {
		return nil, err
	}

	paid := decimal.Zero
	for _, p := range payments {
		if p.Status == StatusCompleted {
			paid = paid.Add(p.Amount)
		}
	}
	due := info.Total.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}

	sum := &Summary{
		CaseID:   info.CaseID,
		Total:    info.Total,
		Paid:     paid,
		Due:      due,
		Payments: payments,
	}
	switch {
	case due.IsZero():
		sum.Status = SummaryPaid
	case paid.IsZero():
		sum.Status = SummaryUnpaid
	default:
		sum.Status = SummaryPartial
	}
	if due.IsPositive() && s.now().After(info.VisitAt.AddDate(0, 0, s.opts.GraceDays)) {
		sum.Overdue = true
		sum.Status = SummaryOverdue
	}
	return sum, nil
}
