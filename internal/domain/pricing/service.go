package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

type Service struct {
	rules Repository
	tx    db.TxRunner
	loc   *time.Location
}

// NewService builds the pricing service. loc is the business timezone used
// to derive the time slot from a visit instant.
func NewService(rules Repository, tx db.TxRunner, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{rules: rules, tx: tx, loc: loc}
}

// SlotFor derives the time slot of a visit instant in the business
// timezone. Visits strictly before 10:00 local fall in BEFORE_10AM.
func (s *Service) SlotFor(visitAt time.Time) string {
	if visitAt.In(s.loc).Hour() < 10 {
		return SlotBefore10AM
	}
	return SlotAfter10AM
}

// dateOf truncates an instant to its calendar date in the business
// timezone. Rule intervals are date-granular: a visit at any time on a
// rule's last effective day still falls inside the interval.
func (s *Service) dateOf(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Resolve returns the amount to charge for a visit. The newest active rule
// whose effective interval contains the visit date wins.
func (s *Service) Resolve(ctx context.Context, membershipType string, visitAt time.Time, tagged, emergency bool) (decimal.Decimal, error) {
	if !validMembershipTypes[membershipType] {
		return decimal.Zero, apperr.Newf(apperr.KindValidation, "invalid membership type: %s", membershipType)
	}

	q := Quadruple{
		MembershipType: membershipType,
		TimeSlot:       s.SlotFor(visitAt),
		TagStatus:      TagNonTagged,
		TreatmentType:  TreatmentNormal,
	}
	if tagged {
		q.TagStatus = TagTagged
	}
	if emergency {
		q.TreatmentType = TreatmentEmergency
	}

	rule, err := s.rules.FindEffective(ctx, q, s.dateOf(visitAt))
	if err != nil {
		return decimal.Zero, err
	}
	if rule == nil {
		return decimal.Zero, apperr.Newf(apperr.KindPricingRuleMissing,
			"no pricing rule for %s/%s/%s/%s on %s",
			q.MembershipType, q.TimeSlot, q.TagStatus, q.TreatmentType,
			visitAt.In(s.loc).Format("2006-01-02"))
	}
	return rule.Amount, nil
}

func (s *Service) validate(r *PricingRule) error {
	details := map[string][]string{}
	if !validMembershipTypes[r.MembershipType] {
		details["membership_type"] = append(details["membership_type"], "invalid membership type")
	}
	if !validTimeSlots[r.TimeSlot] {
		details["time_slot"] = append(details["time_slot"], "invalid time slot")
	}
	if !validTagStatuses[r.TagStatus] {
		details["tag_status"] = append(details["tag_status"], "invalid tag status")
	}
	if !validTreatmentTypes[r.TreatmentType] {
		details["treatment_type"] = append(details["treatment_type"], "invalid treatment type")
	}
	if r.Amount.IsNegative() {
		details["amount"] = append(details["amount"], "amount must not be negative")
	}
	if r.EffectiveFrom.IsZero() {
		details["effective_from"] = append(details["effective_from"], "effective_from is required")
	}
	if r.EffectiveTo != nil && r.EffectiveTo.Before(r.EffectiveFrom) {
		details["effective_to"] = append(details["effective_to"], "effective_to must not precede effective_from")
	}
	if len(details) > 0 {
		return apperr.Validation("invalid pricing rule", details)
	}
	return nil
}

func (s *Service) checkOverlap(ctx context.Context, r *PricingRule) error {
	overlapping, err := s.rules.ListOverlapping(ctx, r.Quadruple, r.EffectiveFrom, r.EffectiveTo, r.ID)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return apperr.Newf(apperr.KindOverlapRejected,
			"rule overlaps an existing active rule effective from %s",
			overlapping[0].EffectiveFrom.Format("2006-01-02"))
	}
	return nil
}

// Create inserts a rule after rejecting interval overlap on the quadruple.
func (s *Service) Create(ctx context.Context, r *PricingRule) error {
	r.IsActive = true
	if err := s.validate(r); err != nil {
		return err
	}
	return s.tx(ctx, func(ctx context.Context) error {
		if err := s.checkOverlap(ctx, r); err != nil {
			return err
		}
		return s.rules.Create(ctx, r)
	})
}

// Update rewrites a rule's amount or interval, keeping the no-overlap
// invariant.
func (s *Service) Update(ctx context.Context, r *PricingRule) error {
	if err := s.validate(r); err != nil {
		return err
	}
	return s.tx(ctx, func(ctx context.Context) error {
		existing, err := s.rules.GetByID(ctx, r.ID)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "pricing rule not found", err)
		}
		r.Quadruple = existing.Quadruple
		if err := s.checkOverlap(ctx, r); err != nil {
			return err
		}
		return s.rules.Update(ctx, r)
	})
}

// Supersede closes the rule currently effective at the new rule's start to
// one day before it, then inserts the new rule. Both steps commit together.
func (s *Service) Supersede(ctx context.Context, newRule *PricingRule) error {
	newRule.IsActive = true
	if err := s.validate(newRule); err != nil {
		return err
	}
	return s.tx(ctx, func(ctx context.Context) error {
		prior, err := s.rules.FindEffective(ctx, newRule.Quadruple, newRule.EffectiveFrom)
		if err != nil {
			return err
		}
		if prior != nil {
			if !prior.EffectiveFrom.Before(newRule.EffectiveFrom) {
				return apperr.New(apperr.KindValidation,
					"new rule must start after the rule it supersedes")
			}
			cutoff := newRule.EffectiveFrom.AddDate(0, 0, -1)
			prior.EffectiveTo = &cutoff
			if err := s.rules.Update(ctx, prior); err != nil {
				return err
			}
		}
		if err := s.checkOverlap(ctx, newRule); err != nil {
			return err
		}
		return s.rules.Create(ctx, newRule)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PricingRule, error) {
	r, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "pricing rule not found", err)
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, onlyActive bool, limit, offset int) ([]*PricingRule, int, error) {
	return s.rules.List(ctx, onlyActive, limit, offset)
}
