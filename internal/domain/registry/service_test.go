package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

type mockMemberRepo struct {
	members map[uuid.UUID]*Member
}

func (m *mockMemberRepo) Create(_ context.Context, mem *Member) error {
	if mem.ID == uuid.Nil {
		mem.ID = uuid.New()
	}
	m.members[mem.ID] = mem
	return nil
}

func (m *mockMemberRepo) GetByID(_ context.Context, id uuid.UUID) (*Member, error) {
	mem, ok := m.members[id]
	if !ok || mem.IsDeleted {
		return nil, apperr.New(apperr.KindReference, "not found")
	}
	return mem, nil
}

func (m *mockMemberRepo) GetByCode(_ context.Context, code string) (*Member, error) {
	for _, mem := range m.members {
		if mem.MemberCode == code && !mem.IsDeleted {
			return mem, nil
		}
	}
	return nil, apperr.New(apperr.KindReference, "not found")
}

func (m *mockMemberRepo) SearchByMobile(_ context.Context, mobile string) ([]*Member, error) {
	var out []*Member
	for _, mem := range m.members {
		if !mem.IsDeleted && mem.IsActive && strings.Contains(mem.Mobile, mobile) {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *mockMemberRepo) List(_ context.Context, limit, offset int) ([]*Member, int, error) {
	var out []*Member
	for _, mem := range m.members {
		if !mem.IsDeleted {
			out = append(out, mem)
		}
	}
	return out, len(out), nil
}

type mockNonMemberRepo struct {
	nonMembers map[uuid.UUID]*NonMember
}

func (m *mockNonMemberRepo) Create(_ context.Context, nm *NonMember) error {
	if nm.ID == uuid.Nil {
		nm.ID = uuid.New()
	}
	m.nonMembers[nm.ID] = nm
	return nil
}

func (m *mockNonMemberRepo) GetByID(_ context.Context, id uuid.UUID) (*NonMember, error) {
	nm, ok := m.nonMembers[id]
	if !ok || nm.IsDeleted {
		return nil, apperr.New(apperr.KindReference, "not found")
	}
	return nm, nil
}

func (m *mockNonMemberRepo) GetByMobile(_ context.Context, mobile string) (*NonMember, error) {
	for _, nm := range m.nonMembers {
		if nm.Mobile == mobile && !nm.IsDeleted {
			return nm, nil
		}
	}
	return nil, nil
}

func (m *mockNonMemberRepo) SearchByMobile(_ context.Context, mobile string) ([]*NonMember, error) {
	var out []*NonMember
	for _, nm := range m.nonMembers {
		if !nm.IsDeleted && strings.Contains(nm.Mobile, mobile) {
			out = append(out, nm)
		}
	}
	return out, nil
}

func (m *mockNonMemberRepo) Update(_ context.Context, nm *NonMember) error {
	m.nonMembers[nm.ID] = nm
	return nil
}

func (m *mockNonMemberRepo) IncrementVisitCount(_ context.Context, id uuid.UUID) error {
	if nm, ok := m.nonMembers[id]; ok {
		nm.VisitCount++
	}
	return nil
}

type mockAnimalRepo struct {
	animals map[uuid.UUID]*Animal
	tags    *mockTagRepo
}

func (m *mockAnimalRepo) Create(_ context.Context, a *Animal) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.animals[a.ID] = a
	return nil
}

func (m *mockAnimalRepo) GetByID(_ context.Context, id uuid.UUID) (*Animal, error) {
	a, ok := m.animals[id]
	if !ok || a.IsDeleted {
		return nil, apperr.New(apperr.KindReference, "not found")
	}
	return a, nil
}

func (m *mockAnimalRepo) Update(_ context.Context, a *Animal) error {
	m.animals[a.ID] = a
	return nil
}

func (m *mockAnimalRepo) ListByMemberOwner(_ context.Context, memberID uuid.UUID) ([]*Animal, error) {
	var out []*Animal
	for _, a := range m.animals {
		if a.MemberOwnerID != nil && *a.MemberOwnerID == memberID && !a.IsDeleted {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAnimalRepo) ListByNonMemberOwner(_ context.Context, nonMemberID uuid.UUID) ([]*Animal, error) {
	var out []*Animal
	for _, a := range m.animals {
		if a.NonMemberOwnerID != nil && *a.NonMemberOwnerID == nonMemberID && !a.IsDeleted {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAnimalRepo) FindByNonMemberAndTag(_ context.Context, nonMemberID uuid.UUID, tagNumber string) (*Animal, error) {
	for _, t := range m.tags.tags {
		if t.TagNumber != tagNumber || !t.IsActive {
			continue
		}
		a, ok := m.animals[t.AnimalID]
		if ok && a.NonMemberOwnerID != nil && *a.NonMemberOwnerID == nonMemberID && !a.IsDeleted {
			return a, nil
		}
	}
	return nil, nil
}

type mockTagRepo struct {
	tags map[uuid.UUID]*AnimalTag
}

func (m *mockTagRepo) Create(_ context.Context, t *AnimalTag) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.tags[t.ID] = t
	return nil
}

func (m *mockTagRepo) GetActiveByAnimal(_ context.Context, animalID uuid.UUID) (*AnimalTag, error) {
	for _, t := range m.tags {
		if t.AnimalID == animalID && t.IsActive {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTagRepo) GetActiveByTagNumber(_ context.Context, tagNumber string) (*AnimalTag, error) {
	for _, t := range m.tags {
		if t.TagNumber == tagNumber && t.IsActive {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockTagRepo) Update(_ context.Context, t *AnimalTag) error {
	m.tags[t.ID] = t
	return nil
}

type mockStatusLogRepo struct {
	logs map[uuid.UUID]*AnimalStatusLog
}

func (m *mockStatusLogRepo) Create(_ context.Context, l *AnimalStatusLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.logs[l.ID] = l
	return nil
}

func (m *mockStatusLogRepo) GetOpenForAnimal(_ context.Context, animalID uuid.UUID, _ bool) (*AnimalStatusLog, error) {
	for _, l := range m.logs {
		if l.AnimalID == animalID && l.ToDate == nil {
			return l, nil
		}
	}
	return nil, nil
}

func (m *mockStatusLogRepo) Update(_ context.Context, l *AnimalStatusLog) error {
	m.logs[l.ID] = l
	return nil
}

func (m *mockStatusLogRepo) ListByAnimal(_ context.Context, animalID uuid.UUID) ([]*AnimalStatusLog, error) {
	var out []*AnimalStatusLog
	for _, l := range m.logs {
		if l.AnimalID == animalID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fixture struct {
	svc        *Service
	members    *mockMemberRepo
	nonMembers *mockNonMemberRepo
	animals    *mockAnimalRepo
	tags       *mockTagRepo
	logs       *mockStatusLogRepo
}

func newFixture() *fixture {
	tags := &mockTagRepo{tags: make(map[uuid.UUID]*AnimalTag)}
	f := &fixture{
		members:    &mockMemberRepo{members: make(map[uuid.UUID]*Member)},
		nonMembers: &mockNonMemberRepo{nonMembers: make(map[uuid.UUID]*NonMember)},
		animals:    &mockAnimalRepo{animals: make(map[uuid.UUID]*Animal), tags: tags},
		tags:       tags,
		logs:       &mockStatusLogRepo{logs: make(map[uuid.UUID]*AnimalStatusLog)},
	}
	f.svc = NewService(f.members, f.nonMembers, f.animals, f.tags, f.logs, db.PassthroughRunner)
	return f
}

func TestEnsureNonMemberIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.EnsureNonMember(ctx, "9876543210", "Ravi", "Village A", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.EnsureNonMember(ctx, "9876543210", "Someone Else", "Elsewhere", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same non-member, got %s and %s", first.ID, second.ID)
	}
	if second.Name != "Ravi" {
		t.Fatalf("existing record must win, got name %q", second.Name)
	}
}

func TestEnsureNonMemberRequiresNameForNew(t *testing.T) {
	f := newFixture()
	_, err := f.svc.EnsureNonMember(context.Background(), "9876543210", "", "", nil, nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnsureNonMemberAnimalIdempotentOnTag(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	nm, err := f.svc.EnsureNonMember(ctx, "9876543210", "Ravi", "Village A", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := EnsureAnimalInput{TagNumber: "IN123456", AgeYears: 3, AgeMonths: 6}
	a1, err := f.svc.EnsureNonMemberAnimal(ctx, nm.ID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := f.svc.EnsureNonMemberAnimal(ctx, nm.ID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1.ID != a2.ID {
		t.Fatalf("expected same animal for same tag, got %s and %s", a1.ID, a2.ID)
	}
	if a1.AgeMonths == nil || *a1.AgeMonths != 42 {
		t.Fatalf("expected age 42 months, got %v", a1.AgeMonths)
	}
}

func TestEnsureNonMemberAnimalRejectsForeignTag(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	nm1, _ := f.svc.EnsureNonMember(ctx, "9876543210", "Ravi", "A", nil, nil)
	nm2, _ := f.svc.EnsureNonMember(ctx, "9123456780", "Gita", "B", nil, nil)

	if _, err := f.svc.EnsureNonMemberAnimal(ctx, nm1.ID, EnsureAnimalInput{TagNumber: "IN123456"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := f.svc.EnsureNonMemberAnimal(ctx, nm2.ID, EnsureAnimalInput{TagNumber: "IN123456"})
	if !apperr.Is(err, apperr.KindInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestCreateAnimalOwnerInvariant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mem := &Member{MemberCode: "MC001", Name: "M", Mobile: "9000000001"}
	if err := f.svc.CreateMember(ctx, mem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nm, _ := f.svc.EnsureNonMember(ctx, "9000000002", "NM", "", nil, nil)

	err := f.svc.CreateAnimal(ctx, &Animal{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for no owner, got %v", err)
	}

	err = f.svc.CreateAnimal(ctx, &Animal{MemberOwnerID: &mem.ID, NonMemberOwnerID: &nm.ID})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for two owners, got %v", err)
	}

	if err := f.svc.CreateAnimal(ctx, &Animal{MemberOwnerID: &mem.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFindOwnerByMobileMergesMembersFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mem := &Member{MemberCode: "MC001", Name: "Member One", Mobile: "9876500001"}
	if err := f.svc.CreateMember(ctx, mem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nm, _ := f.svc.EnsureNonMember(ctx, "9876500002", "Walk In", "Village", nil, nil)
	if _, err := f.svc.EnsureNonMemberAnimal(ctx, nm.ID, EnsureAnimalInput{TagNumber: "IN999999"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches, err := f.svc.FindOwnerByMobile(ctx, "98765")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if !matches[0].IsMember || matches[1].IsMember {
		t.Fatalf("members must sort first")
	}
	if len(matches[1].Animals) != 1 || matches[1].Animals[0].Tag == nil {
		t.Fatalf("non-member animals with tags expected, got %+v", matches[1].Animals)
	}
}

func TestSetCurrentStatusClosesOpenLog(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	nm, _ := f.svc.EnsureNonMember(ctx, "9876500002", "Walk In", "", nil, nil)
	a, err := f.svc.EnsureNonMemberAnimal(ctx, nm.ID, EnsureAnimalInput{TagNumber: "IN999999"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.SetCurrentStatus(ctx, a.ID, StatusInput{Statuses: []string{StatusMilking}, FromDate: d1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d2 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.SetCurrentStatus(ctx, a.ID, StatusInput{Statuses: []string{StatusDry}, FromDate: d2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	open := 0
	for _, l := range f.logs.logs {
		if l.ToDate == nil {
			open++
			if l.Statuses[0] != StatusDry {
				t.Fatalf("open log should be the newest, got %v", l.Statuses)
			}
		} else if !l.ToDate.Equal(d2.AddDate(0, 0, -1)) {
			t.Fatalf("closed log should end 2025-02-28, got %v", l.ToDate)
		}
	}
	if open != 1 {
		t.Fatalf("exactly one open log expected, got %d", open)
	}
}

func TestSetCurrentStatusRejectsBackdating(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	nm, _ := f.svc.EnsureNonMember(ctx, "9876500002", "Walk In", "", nil, nil)
	a, _ := f.svc.EnsureNonMemberAnimal(ctx, nm.ID, EnsureAnimalInput{TagNumber: "IN999999"})

	d1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.SetCurrentStatus(ctx, a.ID, StatusInput{Statuses: []string{StatusMilking}, FromDate: d1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := f.svc.SetCurrentStatus(ctx, a.ID, StatusInput{Statuses: []string{StatusDry}, FromDate: d1})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReplaceTag(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	nm, _ := f.svc.EnsureNonMember(ctx, "9876500002", "Walk In", "", nil, nil)
	a, _ := f.svc.EnsureNonMemberAnimal(ctx, nm.ID, EnsureAnimalInput{TagNumber: "IN111111"})

	tag, err := f.svc.ReplaceTag(ctx, a.ID, "IN222222", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.Action != TagActionReplaced || tag.ReplacedOn == nil {
		t.Fatalf("replacement tag should carry REPLACED action and replaced_on")
	}

	active, err := f.tags.GetActiveByAnimal(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.TagNumber != "IN222222" {
		t.Fatalf("active tag should be the replacement, got %s", active.TagNumber)
	}

	old, err := f.tags.GetActiveByTagNumber(ctx, "IN111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if old != nil {
		t.Fatalf("old tag must be inactive")
	}
}

func TestIncrementVisitCount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	nm, _ := f.svc.EnsureNonMember(ctx, "9876500002", "Walk In", "", nil, nil)
	if err := f.svc.IncrementVisitCount(ctx, nm.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.svc.GetNonMember(ctx, nm.ID)
	if got.VisitCount != 1 {
		t.Fatalf("expected visit count 1, got %d", got.VisitCount)
	}
}
