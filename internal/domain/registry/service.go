package registry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

type Service struct {
	members    MemberRepository
	nonMembers NonMemberRepository
	animals    AnimalRepository
	tags       TagRepository
	statusLogs StatusLogRepository
	tx         db.TxRunner
}

func NewService(members MemberRepository, nonMembers NonMemberRepository,
	animals AnimalRepository, tags TagRepository, statusLogs StatusLogRepository,
	tx db.TxRunner) *Service {
	return &Service{
		members:    members,
		nonMembers: nonMembers,
		animals:    animals,
		tags:       tags,
		statusLogs: statusLogs,
		tx:         tx,
	}
}

// ---- Members ----

func (s *Service) CreateMember(ctx context.Context, m *Member) error {
	details := map[string][]string{}
	if m.MemberCode == "" {
		details["member_code"] = append(details["member_code"], "member_code is required")
	}
	if m.Name == "" {
		details["name"] = append(details["name"], "name is required")
	}
	if m.Mobile == "" {
		details["mobile"] = append(details["mobile"], "mobile is required")
	}
	if len(details) > 0 {
		return apperr.Validation("invalid member", details)
	}
	m.IsActive = true
	return s.members.Create(ctx, m)
}

func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	m, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "member not found", err)
	}
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, limit, offset int) ([]*Member, int, error) {
	return s.members.List(ctx, limit, offset)
}

// ---- Owner lookup ----

// FindOwnerByMobile searches members and non-members by mobile substring
// and returns the merged matches, members first, each with its animals and
// their active tags.
func (s *Service) FindOwnerByMobile(ctx context.Context, mobile string) ([]*OwnerMatch, error) {
	if mobile == "" {
		return nil, apperr.Validation("mobile is required",
			map[string][]string{"mobile": {"mobile is required"}})
	}

	members, err := s.members.SearchByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	nonMembers, err := s.nonMembers.SearchByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}

	out := make([]*OwnerMatch, 0, len(members)+len(nonMembers))
	for _, m := range members {
		animals, err := s.animalsWithTags(ctx, s.animals.ListByMemberOwner, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &OwnerMatch{
			IsMember: true,
			OwnerID:  m.ID,
			Name:     m.Name,
			Mobile:   m.Mobile,
			MCCCode:  m.MCCCode,
			MPPCode:  m.MPPCode,
			Animals:  animals,
		})
	}
	for _, nm := range nonMembers {
		animals, err := s.animalsWithTags(ctx, s.animals.ListByNonMemberOwner, nm.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &OwnerMatch{
			IsMember: false,
			OwnerID:  nm.ID,
			Name:     nm.Name,
			Mobile:   nm.Mobile,
			Address:  nm.Address,
			MCCCode:  nm.MCCCode,
			MPPCode:  nm.MPPCode,
			Animals:  animals,
		})
	}
	return out, nil
}

func (s *Service) animalsWithTags(ctx context.Context,
	list func(context.Context, uuid.UUID) ([]*Animal, error), ownerID uuid.UUID) ([]*AnimalWithTag, error) {
	animals, err := list(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*AnimalWithTag, 0, len(animals))
	for _, a := range animals {
		tag, err := s.tags.GetActiveByAnimal(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		log, err := s.statusLogs.GetOpenForAnimal(ctx, a.ID, false)
		if err != nil {
			return nil, err
		}
		out = append(out, &AnimalWithTag{Animal: a, Tag: tag, CurrentLog: log})
	}
	return out, nil
}

// ---- Non-member intake ----

// EnsureNonMember upserts a non-member keyed by mobile. Calling it twice
// with the same mobile returns the same record.
func (s *Service) EnsureNonMember(ctx context.Context, mobile, name, address string, mcc, mpp *string) (*NonMember, error) {
	if mobile == "" {
		return nil, apperr.Validation("mobile is required",
			map[string][]string{"mobile": {"mobile is required"}})
	}
	existing, err := s.nonMembers.GetByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if name == "" {
		return nil, apperr.Validation("name is required for a new non-member",
			map[string][]string{"name": {"name is required"}})
	}
	nm := &NonMember{Name: name, Mobile: mobile, Address: address, MCCCode: mcc, MPPCode: mpp}
	if err := s.nonMembers.Create(ctx, nm); err != nil {
		return nil, err
	}
	return nm, nil
}

// EnsureAnimalInput carries the animal intake fields of a quick visit.
type EnsureAnimalInput struct {
	TagNumber       string   `json:"tag_number"`
	Breed           *string  `json:"breed,omitempty"`
	Gender          *string  `json:"gender,omitempty"`
	AgeYears        int      `json:"age_years"`
	AgeMonths       int      `json:"age_months"`
	Weight          *float64 `json:"weight,omitempty"`
	Pregnant        bool     `json:"pregnant"`
	PregnancyMonths *int     `json:"pregnancy_months,omitempty"`
	Details         *string  `json:"details,omitempty"`
}

// EnsureNonMemberAnimal upserts an animal keyed by (non-member, tag
// number). When the tag number is empty a fresh untagged animal is created
// each call.
func (s *Service) EnsureNonMemberAnimal(ctx context.Context, nonMemberID uuid.UUID, in EnsureAnimalInput) (*Animal, error) {
	if _, err := s.nonMembers.GetByID(ctx, nonMemberID); err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "non-member not found", err)
	}

	if in.TagNumber != "" {
		existing, err := s.animals.FindByNonMemberAndTag(ctx, nonMemberID, in.TagNumber)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		// A tag active on some other animal cannot be reused.
		tag, err := s.tags.GetActiveByTagNumber(ctx, in.TagNumber)
		if err != nil {
			return nil, err
		}
		if tag != nil {
			return nil, apperr.Newf(apperr.KindInvariantViolation,
				"tag %s is already active on another animal", in.TagNumber)
		}
	}

	months := in.AgeYears*12 + in.AgeMonths
	a := &Animal{
		NonMemberOwnerID: &nonMemberID,
		Breed:            in.Breed,
		Gender:           in.Gender,
		AgeMonths:        &months,
		Weight:           in.Weight,
		Pregnant:         in.Pregnant,
		PregnancyMonths:  in.PregnancyMonths,
		Details:          in.Details,
		IsAlive:          true,
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.animals.Create(ctx, a); err != nil {
			return err
		}
		if in.TagNumber == "" {
			return nil
		}
		return s.tags.Create(ctx, &AnimalTag{
			AnimalID:  a.ID,
			TagNumber: in.TagNumber,
			Action:    TagActionCreated,
			IsActive:  true,
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAnimal registers an animal for either owner kind, enforcing the
// exactly-one-owner rule.
func (s *Service) CreateAnimal(ctx context.Context, a *Animal) error {
	if !a.HasOneOwner() {
		return apperr.New(apperr.KindValidation,
			"animal must reference exactly one of member owner or non-member owner")
	}
	if a.MemberOwnerID != nil {
		if _, err := s.members.GetByID(ctx, *a.MemberOwnerID); err != nil {
			return apperr.Wrap(apperr.KindReference, "member not found", err)
		}
	} else {
		if _, err := s.nonMembers.GetByID(ctx, *a.NonMemberOwnerID); err != nil {
			return apperr.Wrap(apperr.KindReference, "non-member not found", err)
		}
	}
	a.IsAlive = true
	return s.animals.Create(ctx, a)
}

func (s *Service) GetAnimal(ctx context.Context, id uuid.UUID) (*AnimalWithTag, error) {
	a, err := s.animals.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "animal not found", err)
	}
	tag, err := s.tags.GetActiveByAnimal(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	log, err := s.statusLogs.GetOpenForAnimal(ctx, a.ID, false)
	if err != nil {
		return nil, err
	}
	return &AnimalWithTag{Animal: a, Tag: tag, CurrentLog: log}, nil
}

// ---- Tags ----

// ReplaceTag deactivates the animal's current tag and activates a new one
// with action REPLACED.
func (s *Service) ReplaceTag(ctx context.Context, animalID uuid.UUID, newTagNumber string, method, location *string) (*AnimalTag, error) {
	if newTagNumber == "" {
		return nil, apperr.Validation("tag_number is required",
			map[string][]string{"tag_number": {"tag_number is required"}})
	}
	if _, err := s.animals.GetByID(ctx, animalID); err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "animal not found", err)
	}
	inUse, err := s.tags.GetActiveByTagNumber(ctx, newTagNumber)
	if err != nil {
		return nil, err
	}
	if inUse != nil {
		return nil, apperr.Newf(apperr.KindInvariantViolation,
			"tag %s is already active on another animal", newTagNumber)
	}

	now := time.Now().UTC()
	replacement := &AnimalTag{
		AnimalID:   animalID,
		TagNumber:  newTagNumber,
		Method:     method,
		Location:   location,
		Action:     TagActionReplaced,
		ReplacedOn: &now,
		IsActive:   true,
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		current, err := s.tags.GetActiveByAnimal(ctx, animalID)
		if err != nil {
			return err
		}
		if current != nil {
			current.IsActive = false
			if err := s.tags.Update(ctx, current); err != nil {
				return err
			}
		} else {
			// First ever tag is a creation, not a replacement.
			replacement.Action = TagActionCreated
			replacement.ReplacedOn = nil
		}
		return s.tags.Create(ctx, replacement)
	})
	if err != nil {
		return nil, err
	}
	return replacement, nil
}

// ---- Status logs ----

// StatusInput carries the fields of a status change.
type StatusInput struct {
	Statuses         []string  `json:"statuses"`
	LastCalvingMonth *string   `json:"last_calving_month,omitempty"`
	LactationCount   *int      `json:"lactation_count,omitempty"`
	MilkPerDay       *float64  `json:"milk_per_day,omitempty"`
	FromDate         time.Time `json:"from_date"`
}

// SetCurrentStatus closes any open status log to the day before FromDate
// and opens a new one. The open log is locked for the duration of the
// transaction so two concurrent calls cannot both leave a log open.
func (s *Service) SetCurrentStatus(ctx context.Context, animalID uuid.UUID, in StatusInput) (*AnimalStatusLog, error) {
	if len(in.Statuses) == 0 {
		return nil, apperr.Validation("statuses are required",
			map[string][]string{"statuses": {"at least one status is required"}})
	}
	if in.FromDate.IsZero() {
		in.FromDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if _, err := s.animals.GetByID(ctx, animalID); err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "animal not found", err)
	}

	fresh := &AnimalStatusLog{
		AnimalID:         animalID,
		FromDate:         in.FromDate,
		Statuses:         in.Statuses,
		LastCalvingMonth: in.LastCalvingMonth,
		LactationCount:   in.LactationCount,
		MilkPerDay:       in.MilkPerDay,
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		open, err := s.statusLogs.GetOpenForAnimal(ctx, animalID, true)
		if err != nil {
			return err
		}
		if open != nil {
			if !open.FromDate.Before(in.FromDate) {
				return apperr.New(apperr.KindValidation,
					"from_date must be after the open log's from_date")
			}
			cutoff := in.FromDate.AddDate(0, 0, -1)
			open.ToDate = &cutoff
			if err := s.statusLogs.Update(ctx, open); err != nil {
				return err
			}
		}
		return s.statusLogs.Create(ctx, fresh)
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *Service) StatusHistory(ctx context.Context, animalID uuid.UUID) ([]*AnimalStatusLog, error) {
	return s.statusLogs.ListByAnimal(ctx, animalID)
}

// IncrementVisitCount bumps a non-member's visit counter. Called by the
// case engine inside its creation transaction.
func (s *Service) IncrementVisitCount(ctx context.Context, nonMemberID uuid.UUID) error {
	return s.nonMembers.IncrementVisitCount(ctx, nonMemberID)
}

// GetNonMember looks up a non-member by id.
func (s *Service) GetNonMember(ctx context.Context, id uuid.UUID) (*NonMember, error) {
	nm, err := s.nonMembers.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "non-member not found", err)
	}
	return nm, nil
}
