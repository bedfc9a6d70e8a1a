package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type mockRepo struct {
	rules map[uuid.UUID]*PricingRule
}

func newMockRepo() *mockRepo {
	return &mockRepo{rules: make(map[uuid.UUID]*PricingRule)}
}

func (m *mockRepo) Create(_ context.Context, r *PricingRule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, r *PricingRule) error {
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*PricingRule, error) {
	r, ok := m.rules[id]
	if !ok || r.IsDeleted {
		return nil, apperr.New(apperr.KindReference, "not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, onlyActive bool, limit, offset int) ([]*PricingRule, int, error) {
	var out []*PricingRule
	for _, r := range m.rules {
		if r.IsDeleted || (onlyActive && !r.IsActive) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) FindEffective(_ context.Context, q Quadruple, onDate time.Time) (*PricingRule, error) {
	// Intervals are date-granular, like the DATE columns in Postgres.
	onDate = time.Date(onDate.Year(), onDate.Month(), onDate.Day(), 0, 0, 0, 0, time.UTC)
	var best *PricingRule
	for _, r := range m.rules {
		if r.IsDeleted || !r.IsActive || r.Quadruple != q {
			continue
		}
		if r.EffectiveFrom.After(onDate) {
			continue
		}
		if r.EffectiveTo != nil && r.EffectiveTo.Before(onDate) {
			continue
		}
		if best == nil || r.EffectiveFrom.After(best.EffectiveFrom) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *mockRepo) ListOverlapping(_ context.Context, q Quadruple, from time.Time, to *time.Time, excludeID uuid.UUID) ([]*PricingRule, error) {
	var out []*PricingRule
	for _, r := range m.rules {
		if r.IsDeleted || !r.IsActive || r.Quadruple != q || r.ID == excludeID {
			continue
		}
		if r.Overlaps(from, to) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rule(q Quadruple, amount string, from time.Time, to *time.Time) *PricingRule {
	return &PricingRule{
		Quadruple:     q,
		Amount:        decimal.RequireFromString(amount),
		EffectiveFrom: from,
		EffectiveTo:   to,
		Locale:        "en",
	}
}

var memberTaggedNormal = Quadruple{
	MembershipType: MembershipMember,
	TimeSlot:       SlotBefore10AM,
	TagStatus:      TagTagged,
	TreatmentType:  TreatmentNormal,
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, db.PassthroughRunner, ist), repo
}

func TestSlotForBoundary(t *testing.T) {
	svc, _ := newTestService()

	before := time.Date(2025, 3, 1, 9, 59, 0, 0, ist)
	if got := svc.SlotFor(before); got != SlotBefore10AM {
		t.Fatalf("09:59 should be BEFORE_10AM, got %s", got)
	}
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, ist)
	if got := svc.SlotFor(at); got != SlotAfter10AM {
		t.Fatalf("10:00 should be AFTER_10AM, got %s", got)
	}

	// Instant given in UTC still resolves by local wall clock: 03:00 UTC
	// is 08:30 IST.
	utc := time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)
	if got := svc.SlotFor(utc); got != SlotBefore10AM {
		t.Fatalf("03:00 UTC should be BEFORE_10AM in IST, got %s", got)
	}
}

func TestResolvePicksNewestEffectiveRule(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	old := date(2024, 1, 1)
	oldTo := date(2024, 12, 31)
	if err := svc.Create(ctx, rule(memberTaggedNormal, "100.00", old, &oldTo)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Create(ctx, rule(memberTaggedNormal, "150.00", date(2025, 1, 1), nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	visit := time.Date(2025, 3, 1, 8, 0, 0, 0, ist)
	amount, err := svc.Resolve(ctx, MembershipMember, visit, true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("expected 150.00, got %s", amount)
	}
}

func TestResolveOnBoundaryDays(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	to := date(2025, 3, 31)
	if err := svc.Create(ctx, rule(memberTaggedNormal, "300.00", date(2025, 1, 1), &to)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A morning visit on the last effective day still matches the rule.
	lastDay := time.Date(2025, 3, 31, 9, 0, 0, 0, ist)
	amount, err := svc.Resolve(ctx, MembershipMember, lastDay, true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("expected 300.00 on last effective day, got %s", amount)
	}

	// Same on the first effective day.
	firstDay := time.Date(2025, 1, 1, 9, 0, 0, 0, ist)
	if _, err := svc.Resolve(ctx, MembershipMember, firstDay, true, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The day after the interval closes no longer matches.
	_, err = svc.Resolve(ctx, MembershipMember, time.Date(2025, 4, 1, 9, 0, 0, 0, ist), true, false)
	if !apperr.Is(err, apperr.KindPricingRuleMissing) {
		t.Fatalf("expected PricingRuleMissing after interval close, got %v", err)
	}
}

func TestResolveMissingRule(t *testing.T) {
	svc, _ := newTestService()

	visit := time.Date(2025, 3, 1, 8, 0, 0, 0, ist)
	_, err := svc.Resolve(context.Background(), MembershipNonMember, visit, false, true)
	if !apperr.Is(err, apperr.KindPricingRuleMissing) {
		t.Fatalf("expected PricingRuleMissing, got %v", err)
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, rule(memberTaggedNormal, "100.00", date(2025, 1, 1), nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := svc.Create(ctx, rule(memberTaggedNormal, "120.00", date(2025, 6, 1), nil))
	if !apperr.Is(err, apperr.KindOverlapRejected) {
		t.Fatalf("expected OverlapRejected, got %v", err)
	}

	// A different quadruple may overlap freely.
	other := memberTaggedNormal
	other.TreatmentType = TreatmentEmergency
	if err := svc.Create(ctx, rule(other, "300.00", date(2025, 6, 1), nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()

	bad := rule(memberTaggedNormal, "-5.00", date(2025, 1, 1), nil)
	err := svc.Create(context.Background(), bad)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	to := date(2024, 12, 1)
	inverted := rule(memberTaggedNormal, "10.00", date(2025, 1, 1), &to)
	err = svc.Create(context.Background(), inverted)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for inverted interval, got %v", err)
	}
}

func TestSupersedeClosesPriorRule(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	open := rule(memberTaggedNormal, "100.00", date(2025, 1, 1), nil)
	if err := svc.Create(ctx, open); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next := rule(memberTaggedNormal, "175.00", date(2025, 7, 1), nil)
	if err := svc.Supersede(ctx, next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prior := repo.rules[open.ID]
	if prior.EffectiveTo == nil || !prior.EffectiveTo.Equal(date(2025, 6, 30)) {
		t.Fatalf("prior rule not closed to 2025-06-30: %v", prior.EffectiveTo)
	}

	// Resolution before and after the cutover sees different amounts.
	before, err := svc.Resolve(ctx, MembershipMember, time.Date(2025, 5, 1, 8, 0, 0, 0, ist), true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := svc.Resolve(ctx, MembershipMember, time.Date(2025, 8, 1, 8, 0, 0, 0, ist), true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !before.Equal(decimal.RequireFromString("100.00")) || !after.Equal(decimal.RequireFromString("175.00")) {
		t.Fatalf("expected 100.00 then 175.00, got %s and %s", before, after)
	}
}

func TestSupersedeRejectsEarlierStart(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.Create(ctx, rule(memberTaggedNormal, "100.00", date(2025, 6, 1), nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := svc.Supersede(ctx, rule(memberTaggedNormal, "90.00", date(2025, 6, 1), nil))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
