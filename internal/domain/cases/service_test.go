package cases

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dairysangam/vetcore/internal/domain/hierarchy"
	"github.com/dairysangam/vetcore/internal/domain/registry"
	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/auth"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

// ---- Mocks ----

type mockCaseRepo struct {
	cases      map[uuid.UUID]*Case
	mobiles    map[uuid.UUID]string // owner id -> mobile
	failCreate int
}

func (m *mockCaseRepo) Create(_ context.Context, c *Case) error {
	if m.failCreate > 0 {
		m.failCreate--
		return &pgconn.PgError{Code: "23505", ConstraintName: "cases_case_no_key"}
	}
	for _, existing := range m.cases {
		if existing.CaseNo == c.CaseNo {
			return &pgconn.PgError{Code: "23505", ConstraintName: "cases_case_no_key"}
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.cases[c.ID] = c
	return nil
}

func (m *mockCaseRepo) GetByID(_ context.Context, id uuid.UUID, _ bool) (*Case, error) {
	c, ok := m.cases[id]
	if !ok || c.IsDeleted {
		return nil, apperr.New(apperr.KindReference, "not found")
	}
	return c, nil
}

func (m *mockCaseRepo) GetByCaseNo(_ context.Context, caseNo string, _ bool) (*Case, error) {
	for _, c := range m.cases {
		if c.CaseNo == caseNo && !c.IsDeleted {
			return c, nil
		}
	}
	return nil, apperr.New(apperr.KindReference, "not found")
}

func (m *mockCaseRepo) Update(_ context.Context, c *Case) error {
	m.cases[c.ID] = c
	return nil
}

func (m *mockCaseRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	if c, ok := m.cases[id]; ok {
		c.IsDeleted = true
	}
	return nil
}

func (m *mockCaseRepo) List(_ context.Context, f ListFilter) ([]*Case, int, error) {
	var out []*Case
	for _, c := range m.cases {
		if c.IsDeleted {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.OwnerType == OwnerTypeMember && c.MemberOwnerID == nil {
			continue
		}
		if f.OwnerType == OwnerTypeNonMember && c.NonMemberOwnerID == nil {
			continue
		}
		if f.Mobile != "" && !m.ownerMobileIs(c, f.Mobile) {
			continue
		}
		if f.VisibleTo != nil && !containsEither(f.VisibleTo, c.CreatedBy, c.AssigneeID) {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockCaseRepo) Dashboard(_ context.Context, visibleTo []uuid.UUID, dayStart, dayEnd time.Time, tz string) (*Dashboard, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{ByStatus: map[string]int{}}
	months := map[string]int{}
	for _, c := range m.cases {
		if c.IsDeleted {
			continue
		}
		if visibleTo != nil && !containsEither(visibleTo, c.CreatedBy, c.AssigneeID) {
			continue
		}
		d.TotalCases++
		d.ByStatus[c.Status]++
		if c.IsEmergency {
			d.EmergencyCases++
		}
		if c.MemberOwnerID != nil {
			d.MemberCases++
		} else {
			d.NonMemberCases++
		}
		if !c.CreatedAt.Before(dayStart) && c.CreatedAt.Before(dayEnd) {
			d.TodayCases++
		}
		months[c.CreatedAt.In(loc).Format("2006-01")]++
	}
	for month, count := range months {
		d.Monthly = append(d.Monthly, MonthlyCount{Month: month, Count: count})
	}
	return d, nil
}

func (m *mockCaseRepo) ownerMobileIs(c *Case, mobile string) bool {
	if c.MemberOwnerID != nil && m.mobiles[*c.MemberOwnerID] == mobile {
		return true
	}
	return c.NonMemberOwnerID != nil && m.mobiles[*c.NonMemberOwnerID] == mobile
}

type mockLogRepo struct {
	logs []*CaseAssignmentLog
}

func (m *mockLogRepo) Create(_ context.Context, l *CaseAssignmentLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.logs = append(m.logs, l)
	return nil
}

func (m *mockLogRepo) ListByCase(_ context.Context, caseID uuid.UUID) ([]*CaseAssignmentLog, error) {
	var out []*CaseAssignmentLog
	for _, l := range m.logs {
		if l.CaseID == caseID {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockDiagnosisRepo struct {
	diagnoses []*CaseDiagnosis
}

func (m *mockDiagnosisRepo) Create(_ context.Context, d *CaseDiagnosis) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.diagnoses = append(m.diagnoses, d)
	return nil
}

func (m *mockDiagnosisRepo) ListByCase(_ context.Context, caseID uuid.UUID) ([]*CaseDiagnosis, error) {
	var out []*CaseDiagnosis
	for _, d := range m.diagnoses {
		if d.CaseID == caseID {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockTreatmentRepo struct {
	treatments []*CaseTreatment
}

func (m *mockTreatmentRepo) Create(_ context.Context, t *CaseTreatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.treatments = append(m.treatments, t)
	return nil
}

func (m *mockTreatmentRepo) ListByCase(_ context.Context, caseID uuid.UUID) ([]*CaseTreatment, error) {
	var out []*CaseTreatment
	for _, t := range m.treatments {
		if t.CaseID == caseID {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockPricer struct {
	amount decimal.Decimal
	err    error
	calls  int
}

func (m *mockPricer) Resolve(_ context.Context, _ string, _ time.Time, _, _ bool) (decimal.Decimal, error) {
	m.calls++
	if m.err != nil {
		return decimal.Zero, m.err
	}
	return m.amount, nil
}

type mockRegistry struct {
	members       map[uuid.UUID]*registry.Member
	nonMembers    map[uuid.UUID]*registry.NonMember
	animals       map[uuid.UUID]*registry.AnimalWithTag
	visitCounts   map[uuid.UUID]int
	ensuredMobile map[string]*registry.NonMember
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		members:       make(map[uuid.UUID]*registry.Member),
		nonMembers:    make(map[uuid.UUID]*registry.NonMember),
		animals:       make(map[uuid.UUID]*registry.AnimalWithTag),
		visitCounts:   make(map[uuid.UUID]int),
		ensuredMobile: make(map[string]*registry.NonMember),
	}
}

func (m *mockRegistry) GetMember(_ context.Context, id uuid.UUID) (*registry.Member, error) {
	mem, ok := m.members[id]
	if !ok {
		return nil, apperr.New(apperr.KindReference, "member not found")
	}
	return mem, nil
}

func (m *mockRegistry) GetNonMember(_ context.Context, id uuid.UUID) (*registry.NonMember, error) {
	nm, ok := m.nonMembers[id]
	if !ok {
		return nil, apperr.New(apperr.KindReference, "non-member not found")
	}
	return nm, nil
}

func (m *mockRegistry) EnsureNonMember(_ context.Context, mobile, name, address string, mcc, mpp *string) (*registry.NonMember, error) {
	if nm, ok := m.ensuredMobile[mobile]; ok {
		return nm, nil
	}
	nm := &registry.NonMember{ID: uuid.New(), Name: name, Mobile: mobile, Address: address, MCCCode: mcc, MPPCode: mpp}
	m.nonMembers[nm.ID] = nm
	m.ensuredMobile[mobile] = nm
	return nm, nil
}

func (m *mockRegistry) EnsureNonMemberAnimal(_ context.Context, nonMemberID uuid.UUID, in registry.EnsureAnimalInput) (*registry.Animal, error) {
	a := &registry.Animal{ID: uuid.New(), NonMemberOwnerID: &nonMemberID, IsAlive: true}
	awt := &registry.AnimalWithTag{Animal: a}
	if in.TagNumber != "" {
		awt.Tag = &registry.AnimalTag{AnimalID: a.ID, TagNumber: in.TagNumber, IsActive: true}
	}
	m.animals[a.ID] = awt
	return a, nil
}

func (m *mockRegistry) GetAnimal(_ context.Context, id uuid.UUID) (*registry.AnimalWithTag, error) {
	awt, ok := m.animals[id]
	if !ok {
		return nil, apperr.New(apperr.KindReference, "animal not found")
	}
	return awt, nil
}

func (m *mockRegistry) IncrementVisitCount(_ context.Context, nonMemberID uuid.UUID) error {
	m.visitCounts[nonMemberID]++
	return nil
}

type mockVisibility struct {
	scopes     map[uuid.UUID]hierarchy.Scope
	supervises map[uuid.UUID]map[uuid.UUID]bool
}

func (m *mockVisibility) VisibleScope(_ context.Context, userID uuid.UUID) (hierarchy.Scope, error) {
	if s, ok := m.scopes[userID]; ok {
		return s, nil
	}
	return hierarchy.Scope{IDs: []uuid.UUID{userID}}, nil
}

func (m *mockVisibility) IsSupervisorOf(_ context.Context, userID, target uuid.UUID) (bool, error) {
	if userID == target {
		return true, nil
	}
	return m.supervises[userID][target], nil
}

type auditEntry struct {
	action     string
	entityType string
	entityID   uuid.UUID
}

type mockAuditor struct {
	entries []auditEntry
}

func (m *mockAuditor) Record(_ context.Context, action, entityType string, entityID, _ uuid.UUID, _ interface{}) {
	m.entries = append(m.entries, auditEntry{action: action, entityType: entityType, entityID: entityID})
}

// ---- Fixture ----

type fixture struct {
	svc        *Service
	cases      *mockCaseRepo
	logs       *mockLogRepo
	diagnoses  *mockDiagnosisRepo
	treatments *mockTreatmentRepo
	pricer     *mockPricer
	registry   *mockRegistry
	visibility *mockVisibility
	auditor    *mockAuditor
}

func newFixture() *fixture {
	f := &fixture{
		cases:      &mockCaseRepo{cases: make(map[uuid.UUID]*Case), mobiles: make(map[uuid.UUID]string)},
		logs:       &mockLogRepo{},
		diagnoses:  &mockDiagnosisRepo{},
		treatments: &mockTreatmentRepo{},
		pricer:     &mockPricer{amount: decimal.RequireFromString("250.00")},
		registry:   newMockRegistry(),
		visibility: &mockVisibility{scopes: make(map[uuid.UUID]hierarchy.Scope), supervises: make(map[uuid.UUID]map[uuid.UUID]bool)},
		auditor:    &mockAuditor{},
	}
	f.svc = NewService(f.cases, f.logs, f.diagnoses, f.treatments,
		f.pricer, f.registry, f.visibility, f.auditor, db.PassthroughRunner, time.UTC)
	return f
}

func (f *fixture) addMemberWithAnimal(code, tag string) (*registry.Member, *registry.Animal) {
	m := &registry.Member{ID: uuid.New(), MemberCode: code, Name: "m", Mobile: "9000000000", IsActive: true}
	f.registry.members[m.ID] = m
	a := &registry.Animal{ID: uuid.New(), MemberOwnerID: &m.ID, IsAlive: true}
	awt := &registry.AnimalWithTag{Animal: a}
	if tag != "" {
		awt.Tag = &registry.AnimalTag{AnimalID: a.ID, TagNumber: tag, IsActive: true}
	}
	f.registry.animals[a.ID] = awt
	return m, a
}

func ident(id uuid.UUID, dept string) *auth.Identity {
	return &auth.Identity{UserID: id, Name: "t", Department: dept}
}

// ---- Creation ----

func TestCreateCaseMemberVisit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator := uuid.New()
	m, a := f.addMemberWithAnimal("MEM0012345", "IN77")

	visit := time.Date(2025, 6, 1, 8, 15, 0, 0, time.UTC)
	result, err := f.svc.CreateCase(ctx, creator, CreateInput{
		MemberID: &m.ID,
		AnimalID: &a.ID,
		VisitAt:  visit,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := result.Case
	if c.Status != StatusPending {
		t.Fatalf("new case must be PENDING, got %s", c.Status)
	}
	if c.CaseNo != "012345-IN77-20250601T081500" {
		t.Fatalf("unexpected case number: %s", c.CaseNo)
	}
	if !c.IsTaggedAnimal {
		t.Fatalf("tagged animal not flagged")
	}
	if !c.ComputedCost.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("cost snapshot not taken: %s", c.ComputedCost)
	}
	if c.AssigneeID != creator || c.CreatedBy != creator {
		t.Fatalf("creator must be initial assignee")
	}
	if len(f.logs.logs) != 1 {
		t.Fatalf("expected 1 assignment log, got %d", len(f.logs.logs))
	}
	l := f.logs.logs[0]
	if l.FromUserID != nil || l.ToUserID != creator || l.Remarks != initialAssignmentRemarks {
		t.Fatalf("unexpected initial log: %+v", l)
	}
	if len(f.auditor.entries) != 1 || f.auditor.entries[0].action != "created" {
		t.Fatalf("expected a creation audit entry, got %+v", f.auditor.entries)
	}
}

func TestCreateCaseNonMemberIntake(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator := uuid.New()

	result, err := f.svc.CreateCase(ctx, creator, CreateInput{
		NonMember: &NonMemberIntake{Mobile: "9876543210", Name: "Walk In", Address: "village"},
		Animal:    &registry.EnsureAnimalInput{AgeYears: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := result.Case
	if c.NonMemberOwnerID == nil {
		t.Fatalf("non-member owner not set")
	}
	if c.IsTaggedAnimal {
		t.Fatalf("untagged intake must not flag a tag")
	}
	if !strings.Contains(c.CaseNo, "-NA-") {
		t.Fatalf("untagged case number must carry NA: %s", c.CaseNo)
	}
	parts := strings.Split(c.CaseNo, "-")
	if len(parts[len(parts)-1]) != 3 {
		t.Fatalf("untagged case number must end in a 3-digit suffix: %s", c.CaseNo)
	}
	if f.registry.visitCounts[*c.NonMemberOwnerID] != 1 {
		t.Fatalf("visit count not incremented")
	}

	// The same mobile resolves to the same non-member.
	again, err := f.svc.CreateCase(ctx, creator, CreateInput{
		NonMember: &NonMemberIntake{Mobile: "9876543210"},
		Animal:    &registry.EnsureAnimalInput{AgeYears: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *again.Case.NonMemberOwnerID != *c.NonMemberOwnerID {
		t.Fatalf("repeat mobile must reuse the non-member")
	}
	if f.registry.visitCounts[*c.NonMemberOwnerID] != 2 {
		t.Fatalf("visit count must increment per case")
	}
}

func TestCreateCaseOwnerChoiceValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator := uuid.New()
	m, a := f.addMemberWithAnimal("MEM1", "T1")

	_, err := f.svc.CreateCase(ctx, creator, CreateInput{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error with no owner, got %v", err)
	}
	_, err = f.svc.CreateCase(ctx, creator, CreateInput{
		MemberID:  &m.ID,
		NonMember: &NonMemberIntake{Mobile: "9"},
		AnimalID:  &a.ID,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error with both owners, got %v", err)
	}
	_, err = f.svc.CreateCase(ctx, creator, CreateInput{MemberID: &m.ID})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error without animal, got %v", err)
	}
}

func TestCreateCaseRejectsForeignAnimal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m, _ := f.addMemberWithAnimal("MEM1", "T1")
	_, other := f.addMemberWithAnimal("MEM2", "T2")

	_, err := f.svc.CreateCase(ctx, uuid.New(), CreateInput{MemberID: &m.ID, AnimalID: &other.ID})
	if !apperr.Is(err, apperr.KindReference) {
		t.Fatalf("expected reference error for foreign animal, got %v", err)
	}
}

func TestCreateCasePricingFailureAborts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m, a := f.addMemberWithAnimal("MEM1", "T1")
	f.pricer.err = apperr.New(apperr.KindPricingRuleMissing, "no rule")

	_, err := f.svc.CreateCase(ctx, uuid.New(), CreateInput{MemberID: &m.ID, AnimalID: &a.ID})
	if !apperr.Is(err, apperr.KindPricingRuleMissing) {
		t.Fatalf("expected pricing failure, got %v", err)
	}
	if len(f.cases.cases) != 0 || len(f.logs.logs) != 0 {
		t.Fatalf("pricing failure must leave no rows")
	}
}

func TestCreateCaseRetriesUntaggedCollision(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.cases.failCreate = 1

	result, err := f.svc.CreateCase(ctx, uuid.New(), CreateInput{
		NonMember: &NonMemberIntake{Mobile: "9876500000", Name: "n"},
		Animal:    &registry.EnsureAnimalInput{},
	})
	if err != nil {
		t.Fatalf("expected one retry to succeed, got %v", err)
	}
	if result.Case.CaseNo == "" {
		t.Fatalf("case number missing after retry")
	}
}

// ---- Assignment ----

func TestAssignAppendsLog(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator := uuid.New()
	m, a := f.addMemberWithAnimal("MEM1", "T1")
	result, err := f.svc.CreateCase(ctx, creator, CreateInput{MemberID: &m.ID, AnimalID: &a.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next := uuid.New()
	updated, err := f.svc.Assign(ctx, creator, result.Case.CaseNo, next, "field visit handover")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AssigneeID != next {
		t.Fatalf("assignee not updated")
	}
	if updated.CreatedBy != creator {
		t.Fatalf("creator must be immutable")
	}
	logs, _ := f.logs.ListByCase(ctx, updated.ID)
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	last := logs[1]
	if last.FromUserID == nil || *last.FromUserID != creator || last.ToUserID != next {
		t.Fatalf("unexpected transfer log: %+v", last)
	}

	_, err = f.svc.Assign(ctx, creator, result.Case.CaseNo, next, "again")
	if !apperr.Is(err, apperr.KindNoOpTransfer) {
		t.Fatalf("expected no-op transfer rejection, got %v", err)
	}
}

// ---- State machine ----

func (f *fixture) createdCase(t *testing.T, creator uuid.UUID) *Case {
	t.Helper()
	m, a := f.addMemberWithAnimal("MEM"+uuid.NewString()[:4], "T"+uuid.NewString()[:4])
	result, err := f.svc.CreateCase(context.Background(), creator, CreateInput{MemberID: &m.ID, AnimalID: &a.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result.Case
}

func TestTransitionMatrix(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator := uuid.New()
	c := f.createdCase(t, creator)
	actor := ident(creator, hierarchy.DeptFacilitator)

	if _, err := f.svc.Transition(ctx, actor, c.CaseNo, StatusCompleted, nil); !apperr.Is(err, apperr.KindForbiddenTransition) {
		t.Fatalf("PENDING must not complete directly, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, actor, c.CaseNo, StatusConfirmed, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Transition(ctx, actor, c.CaseNo, StatusCompleted, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Transition(ctx, actor, c.CaseNo, StatusCancelled, nil); !apperr.Is(err, apperr.KindForbiddenTransition) {
		t.Fatalf("COMPLETED must be terminal, got %v", err)
	}
}

func TestTransitionCancelPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator := uuid.New()
	c := f.createdCase(t, creator)

	// Neither the creator nor a supervisor without reach may cancel.
	_, err := f.svc.Transition(ctx, ident(creator, hierarchy.DeptMAT), c.CaseNo, StatusCancelled, nil)
	if !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("expected authorization failure for creator, got %v", err)
	}
	_, err = f.svc.Transition(ctx, ident(uuid.New(), hierarchy.DeptSupervisor), c.CaseNo, StatusCancelled, nil)
	if !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("expected authorization failure for unrelated supervisor, got %v", err)
	}

	boss := uuid.New()
	f.visibility.supervises[boss] = map[uuid.UUID]bool{creator: true}
	if _, err := f.svc.Transition(ctx, ident(boss, hierarchy.DeptSupervisor), c.CaseNo, StatusCancelled, nil); err != nil {
		t.Fatalf("supervisor may cancel a pending case: %v", err)
	}
}

func TestConfirmedCancelNeedsSupervisor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator := uuid.New()
	c := f.createdCase(t, creator)
	actor := ident(creator, hierarchy.DeptMAT)
	if _, err := f.svc.Transition(ctx, actor, c.CaseNo, StatusConfirmed, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The assignee themselves cannot cancel once confirmed.
	_, err := f.svc.Transition(ctx, actor, c.CaseNo, StatusCancelled, nil)
	if !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("expected authorization failure, got %v", err)
	}

	// A supervisor without graph reach over the assignee is refused too.
	stranger := uuid.New()
	_, err = f.svc.Transition(ctx, ident(stranger, hierarchy.DeptSupervisor), c.CaseNo, StatusCancelled, nil)
	if !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("expected authorization failure, got %v", err)
	}

	boss := uuid.New()
	f.visibility.supervises[boss] = map[uuid.UUID]bool{creator: true}
	if _, err := f.svc.Transition(ctx, ident(boss, hierarchy.DeptSupervisor), c.CaseNo, StatusCancelled, nil); err != nil {
		t.Fatalf("supervisor override failed: %v", err)
	}
}

func TestTransitionStrangerRefused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.createdCase(t, uuid.New())

	_, err := f.svc.Transition(ctx, ident(uuid.New(), hierarchy.DeptFacilitator), c.CaseNo, StatusConfirmed, nil)
	if !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("expected authorization failure, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, ident(uuid.New(), hierarchy.DeptAdmin), c.CaseNo, StatusConfirmed, nil); err != nil {
		t.Fatalf("admin must pass: %v", err)
	}
}

// ---- Visibility ----

func TestListScopes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vet := uuid.New()
	other := uuid.New()
	cVet := f.createdCase(t, vet)
	f.createdCase(t, other)

	// MAT/VET viewers see only their own cases even with wider reach.
	f.visibility.scopes[vet] = hierarchy.Scope{All: true}
	got, total, err := f.svc.List(ctx, ident(vet, hierarchy.DeptVeterinarian), ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || got[0].ID != cVet.ID {
		t.Fatalf("veterinarian must see only their own cases, got %d", total)
	}

	// A disabled viewer gets an empty page, not an error.
	blocked := uuid.New()
	f.visibility.scopes[blocked] = hierarchy.Scope{}
	got, total, err = f.svc.List(ctx, ident(blocked, hierarchy.DeptFacilitator), ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(got) != 0 {
		t.Fatalf("empty scope must list nothing")
	}

	admin := uuid.New()
	f.visibility.scopes[admin] = hierarchy.Scope{All: true}
	_, total, err = f.svc.List(ctx, ident(admin, hierarchy.DeptAdmin), ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("admin must see all cases, got %d", total)
	}
}

func TestListOwnerFilters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator := uuid.New()
	admin := ident(uuid.New(), hierarchy.DeptAdmin)
	f.visibility.scopes[admin.UserID] = hierarchy.Scope{All: true}

	m, a := f.addMemberWithAnimal("MEMF1", "TF1")
	memberResult, err := f.svc.CreateCase(ctx, creator, CreateInput{MemberID: &m.ID, AnimalID: &a.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.cases.mobiles[m.ID] = m.Mobile

	nmResult, err := f.svc.CreateCase(ctx, creator, CreateInput{
		NonMember: &NonMemberIntake{Mobile: "9876512345", Name: "n"},
		Animal:    &registry.EnsureAnimalInput{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.cases.mobiles[*nmResult.Case.NonMemberOwnerID] = "9876512345"

	got, total, err := f.svc.List(ctx, admin, ListFilter{OwnerType: OwnerTypeMember, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || got[0].ID != memberResult.Case.ID {
		t.Fatalf("member filter must return the member case, got %d", total)
	}

	got, total, err = f.svc.List(ctx, admin, ListFilter{OwnerType: OwnerTypeNonMember, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || got[0].ID != nmResult.Case.ID {
		t.Fatalf("non-member filter must return the intake case, got %d", total)
	}

	got, total, err = f.svc.List(ctx, admin, ListFilter{Mobile: "9876512345", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || got[0].ID != nmResult.Case.ID {
		t.Fatalf("mobile filter must match the owner's number, got %d", total)
	}
}

func TestDashboardScoped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mat := uuid.New()
	f.createdCase(t, mat)
	f.createdCase(t, uuid.New())

	d, err := f.svc.Dashboard(ctx, ident(mat, hierarchy.DeptMAT))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TotalCases != 1 {
		t.Fatalf("MAT dashboard must count only own cases, got %d", d.TotalCases)
	}
	if d.TodayCases != 1 {
		t.Fatalf("a case created now must count as today, got %d", d.TodayCases)
	}
	if d.MemberCases != 1 || d.NonMemberCases != 0 {
		t.Fatalf("unexpected owner split: %+v", d)
	}
	thisMonth := time.Now().UTC().Format("2006-01")
	if len(d.Monthly) != 1 || d.Monthly[0].Month != thisMonth || d.Monthly[0].Count != 1 {
		t.Fatalf("histogram must bucket by creation month, got %+v", d.Monthly)
	}
}

// ---- Clinical records ----

func TestAddDiagnosisAndTreatment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	actor := uuid.New()
	c := f.createdCase(t, actor)

	disease := "Mastitis"
	d, err := f.svc.AddDiagnosis(ctx, actor, c.CaseNo, &CaseDiagnosis{
		Disease:  &disease,
		Symptoms: []SymptomEntry{{Name: "swollen udder"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.CaseID != c.ID || d.CreatedBy != actor {
		t.Fatalf("diagnosis not bound to case: %+v", d)
	}

	_, err = f.svc.AddDiagnosis(ctx, actor, c.CaseNo, &CaseDiagnosis{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty diagnosis, got %v", err)
	}

	tr, err := f.svc.AddTreatment(ctx, actor, c.CaseNo, &CaseTreatment{OTPVerified: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.ProviderID != actor {
		t.Fatalf("provider must default to the actor")
	}

	if _, err := f.svc.Transition(ctx, ident(actor, hierarchy.DeptAdmin), c.CaseNo, StatusCancelled, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = f.svc.AddTreatment(ctx, actor, c.CaseNo, &CaseTreatment{})
	if !apperr.Is(err, apperr.KindForbiddenTransition) {
		t.Fatalf("expected rejection on cancelled case, got %v", err)
	}
}

func TestSuggestDiseasesRanking(t *testing.T) {
	got := SuggestDiseases([]string{"fever", "mouth blisters", "drooling"})
	if len(got) == 0 || got[0].Disease != "Foot and Mouth Disease" || got[0].Matched != 3 {
		t.Fatalf("unexpected ranking: %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Matched > got[i-1].Matched {
			t.Fatalf("suggestions not sorted: %+v", got)
		}
	}
	if len(SuggestDiseases([]string{"nonsense"})) != 0 {
		t.Fatalf("unknown symptoms must match nothing")
	}
}

// ---- Payment feed ----

func TestCaseInfoFeed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.createdCase(t, uuid.New())

	info, err := f.svc.CaseInfoByNo(ctx, c.CaseNo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.CaseID != c.ID || !info.Total.Equal(c.ComputedCost) {
		t.Fatalf("unexpected case info: %+v", info)
	}
	if _, err := f.svc.CaseInfoByNo(ctx, "missing"); !apperr.Is(err, apperr.KindReference) {
		t.Fatalf("expected reference error, got %v", err)
	}
}
