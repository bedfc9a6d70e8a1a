package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

type mockRepo struct {
	payments map[uuid.UUID]*CasePayment
}

func (m *mockRepo) Create(_ context.Context, p *CasePayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.payments[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID, _ bool) (*CasePayment, error) {
	p, ok := m.payments[id]
	if !ok || p.IsDeleted {
		return nil, apperr.New(apperr.KindReference, "not found")
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *CasePayment) error {
	m.payments[p.ID] = p
	return nil
}

func (m *mockRepo) ListByCase(_ context.Context, caseID uuid.UUID) ([]*CasePayment, error) {
	var out []*CasePayment
	for _, p := range m.payments {
		if p.CaseID == caseID && !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCaseInfo struct {
	info map[string]*CaseInfo
}

func (m *mockCaseInfo) CaseInfoByNo(_ context.Context, caseNo string) (*CaseInfo, error) {
	info, ok := m.info[caseNo]
	if !ok {
		return nil, apperr.New(apperr.KindReference, "case not found")
	}
	return info, nil
}

func (m *mockCaseInfo) CaseInfoByID(_ context.Context, caseID uuid.UUID) (*CaseInfo, error) {
	for _, info := range m.info {
		if info.CaseID == caseID {
			return info, nil
		}
	}
	return nil, apperr.New(apperr.KindReference, "case not found")
}

type fixture struct {
	svc   *Service
	repo  *mockRepo
	cases *mockCaseInfo
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		repo:  &mockRepo{payments: make(map[uuid.UUID]*CasePayment)},
		cases: &mockCaseInfo{info: make(map[string]*CaseInfo)},
	}
	f.svc = NewService(f.repo, f.cases, db.PassthroughRunner, opts)
	return f
}

func (f *fixture) addCase(caseNo, total string, visitAt time.Time) *CaseInfo {
	info := &CaseInfo{
		CaseID:  uuid.New(),
		Total:   decimal.RequireFromString(total),
		VisitAt: visitAt,
	}
	f.cases.info[caseNo] = info
	return info
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordPaymentAndSummaryMath(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()
	f.addCase("C1", "500.00", time.Now())

	p1, err := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodCash, Amount: amt("200.00")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.Status != StatusPending {
		t.Fatalf("new payment should be PENDING, got %s", p1.Status)
	}

	sum, err := f.svc.SummaryForCase(ctx, "C1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Status != SummaryUnpaid || !sum.Paid.IsZero() {
		t.Fatalf("pending payments must not count as paid: %+v", sum)
	}

	if _, err := f.svc.MarkCompleted(ctx, p1.ID, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum, _ = f.svc.SummaryForCase(ctx, "C1")
	if sum.Status != SummaryPartial || !sum.Paid.Equal(amt("200.00")) || !sum.Due.Equal(amt("300.00")) {
		t.Fatalf("expected PARTIAL 200/300, got %+v", sum)
	}

	p2, err := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodUPI, Amount: amt("300.00")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.MarkProcessing(ctx, p2.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.MarkCompleted(ctx, p2.ID, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum, _ = f.svc.SummaryForCase(ctx, "C1")
	if sum.Status != SummaryPaid || !sum.Due.IsZero() {
		t.Fatalf("expected PAID, got %+v", sum)
	}
}

func TestOverpaymentRejectedByDefault(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()
	f.addCase("C1", "100.00", time.Now())

	p, _ := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodCash, Amount: amt("80.00")})
	if _, err := f.svc.MarkCompleted(ctx, p.ID, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodCash, Amount: amt("30.00")})
	if !apperr.Is(err, apperr.KindInvariantViolation) {
		t.Fatalf("expected overpayment rejection, got %v", err)
	}
}

func TestOverpaymentAllowedByFlag(t *testing.T) {
	f := newFixture(Options{AllowOverpayment: true})
	ctx := context.Background()
	f.addCase("C1", "100.00", time.Now())

	p, _ := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodCash, Amount: amt("80.00")})
	if _, err := f.svc.MarkCompleted(ctx, p.ID, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodCash, Amount: amt("30.00")}); err != nil {
		t.Fatalf("expected overpayment to pass with flag, got %v", err)
	}
}

func TestGuardedTransitions(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()
	f.addCase("C1", "100.00", time.Now())

	// Non-cash cannot complete straight from PENDING.
	upi, _ := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodUPI, Amount: amt("50.00")})
	_, err := f.svc.MarkCompleted(ctx, upi.ID, nil, nil, nil)
	if !apperr.Is(err, apperr.KindForbiddenTransition) {
		t.Fatalf("expected forbidden transition, got %v", err)
	}

	// Cash never enters processing.
	cash, _ := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodCash, Amount: amt("10.00")})
	_, err = f.svc.MarkProcessing(ctx, cash.ID, nil)
	if !apperr.Is(err, apperr.KindForbiddenTransition) {
		t.Fatalf("expected forbidden transition, got %v", err)
	}

	// FAILED is terminal.
	if _, err := f.svc.MarkFailed(ctx, upi.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = f.svc.MarkProcessing(ctx, upi.ID, nil)
	if !apperr.Is(err, apperr.KindForbiddenTransition) {
		t.Fatalf("expected forbidden transition from FAILED, got %v", err)
	}

	// Refund only from COMPLETED.
	_, err = f.svc.Refund(ctx, cash.ID)
	if !apperr.Is(err, apperr.KindForbiddenTransition) {
		t.Fatalf("expected forbidden refund of pending payment, got %v", err)
	}
	if _, err := f.svc.MarkCompleted(ctx, cash.ID, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Refund(ctx, cash.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRefundRemovesFromPaid(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()
	f.addCase("C1", "100.00", time.Now())

	p, _ := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodCash, Amount: amt("100.00")})
	if _, err := f.svc.MarkCompleted(ctx, p.ID, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Refund(ctx, p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum, _ := f.svc.SummaryForCase(ctx, "C1")
	if !sum.Paid.IsZero() || sum.Status != SummaryUnpaid {
		t.Fatalf("refunded payment must not count as paid: %+v", sum)
	}
}

func TestOverdueAfterGrace(t *testing.T) {
	f := newFixture(Options{GraceDays: 7})
	ctx := context.Background()
	f.addCase("OLD", "100.00", time.Now().AddDate(0, 0, -10))
	f.addCase("NEW", "100.00", time.Now().AddDate(0, 0, -2))

	sum, err := f.svc.SummaryForCase(ctx, "OLD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Overdue || sum.Status != SummaryOverdue {
		t.Fatalf("expected overdue, got %+v", sum)
	}

	sum, _ = f.svc.SummaryForCase(ctx, "NEW")
	if sum.Overdue {
		t.Fatalf("within grace must not be overdue")
	}
}

func TestReconcileTogglesFlagOnly(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()
	f.addCase("C1", "100.00", time.Now())

	p, _ := f.svc.RecordPayment(ctx, "C1", &CasePayment{Method: MethodCash, Amount: amt("100.00")})
	got, err := f.svc.Reconcile(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsReconciled || got.Status != StatusPending {
		t.Fatalf("reconcile must only set the flag, got %+v", got)
	}
}
