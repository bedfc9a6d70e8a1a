package cases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dairysangam/vetcore/internal/domain/audit"
	"github.com/dairysangam/vetcore/internal/domain/hierarchy"
	"github.com/dairysangam/vetcore/internal/domain/payment"
	"github.com/dairysangam/vetcore/internal/domain/pricing"
	"github.com/dairysangam/vetcore/internal/domain/registry"
	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/auth"
	"github.com/dairysangam/vetcore/internal/platform/db"
)

const initialAssignmentRemarks = "Initial assignment on case creation."

// Pricer resolves the visit cost snapshot at creation time.
type Pricer interface {
	Resolve(ctx context.Context, membershipType string, visitAt time.Time, tagged, emergency bool) (decimal.Decimal, error)
}

// Registry is the slice of the cattle registry the case engine needs.
type Registry interface {
	GetMember(ctx context.Context, id uuid.UUID) (*registry.Member, error)
	GetNonMember(ctx context.Context, id uuid.UUID) (*registry.NonMember, error)
	EnsureNonMember(ctx context.Context, mobile, name, address string, mcc, mpp *string) (*registry.NonMember, error)
	EnsureNonMemberAnimal(ctx context.Context, nonMemberID uuid.UUID, in registry.EnsureAnimalInput) (*registry.Animal, error)
	GetAnimal(ctx context.Context, id uuid.UUID) (*registry.AnimalWithTag, error)
	IncrementVisitCount(ctx context.Context, nonMemberID uuid.UUID) error
}

// Visibility answers who a viewer may see and supervise.
type Visibility interface {
	VisibleScope(ctx context.Context, userID uuid.UUID) (hierarchy.Scope, error)
	IsSupervisorOf(ctx context.Context, userID, target uuid.UUID) (bool, error)
}

// Summarizer derives a case's payment position. Wired after construction
// because the payment ledger in turn reads case info from this service.
type Summarizer interface {
	SummaryForCaseID(ctx context.Context, caseID uuid.UUID) (*payment.Summary, error)
}

type Service struct {
	cases      Repository
	logs       AssignmentLogRepository
	diagnoses  DiagnosisRepository
	treatments TreatmentRepository
	pricer     Pricer
	registry   Registry
	visibility Visibility
	auditor    audit.Recorder
	payments   Summarizer
	tx         db.TxRunner
	loc        *time.Location
	now        func() time.Time
}

// NewService builds the case engine. loc is the business timezone used for
// case-number timestamps and dashboard day boundaries.
func NewService(cases Repository, logs AssignmentLogRepository,
	diagnoses DiagnosisRepository, treatments TreatmentRepository,
	pricer Pricer, reg Registry, visibility Visibility, auditor audit.Recorder,
	tx db.TxRunner, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		cases:      cases,
		logs:       logs,
		diagnoses:  diagnoses,
		treatments: treatments,
		pricer:     pricer,
		registry:   reg,
		visibility: visibility,
		auditor:    auditor,
		tx:         tx,
		loc:        loc,
		now:        time.Now,
	}
}

// SetSummarizer wires the payment ledger in after both services exist.
func (s *Service) SetSummarizer(p Summarizer) { s.payments = p }

// ---- Creation ----

// NonMemberIntake identifies a walk-in owner by mobile. Name is required
// only when the mobile is new.
type NonMemberIntake struct {
	Mobile  string  `json:"mobile"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	MCCCode *string `json:"mcc_code,omitempty"`
	MPPCode *string `json:"mpp_code,omitempty"`
}

// CreateInput is a quick-visit request. Exactly one of MemberID and
// NonMember must be set; member visits reference an existing AnimalID,
// non-member visits may instead carry an Animal intake.
type CreateInput struct {
	MemberID    *uuid.UUID                  `json:"member_id,omitempty"`
	NonMember   *NonMemberIntake            `json:"non_member,omitempty"`
	AnimalID    *uuid.UUID                  `json:"animal_id,omitempty"`
	Animal      *registry.EnsureAnimalInput `json:"animal,omitempty"`
	AssigneeID  *uuid.UUID                  `json:"assignee_id,omitempty"`
	VisitAt     time.Time                   `json:"visit_at"`
	IsEmergency bool                        `json:"is_emergency"`
	Disease     *string                     `json:"disease,omitempty"`
	Address     *string                     `json:"address,omitempty"`
	Remark      *string                     `json:"remark,omitempty"`
}

// CreateResult is a freshly created case with its payment position.
type CreateResult struct {
	Case    *Case            `json:"case"`
	Summary *payment.Summary `json:"payment_summary,omitempty"`
}

// CreateCase runs the whole quick-visit intake in one transaction: owner
// and animal resolution, pricing, the case row, the initial assignment log
// and the non-member visit counter. A pricing failure aborts the lot.
func (s *Service) CreateCase(ctx context.Context, creator uuid.UUID, in CreateInput) (*CreateResult, error) {
	if (in.MemberID != nil) == (in.NonMember != nil) {
		return nil, apperr.New(apperr.KindValidation,
			"exactly one of member_id and non_member must be set")
	}
	if in.VisitAt.IsZero() {
		in.VisitAt = s.now()
	}
	assignee := creator
	if in.AssigneeID != nil {
		assignee = *in.AssigneeID
	}

	c := &Case{
		CreatedBy:   creator,
		AssigneeID:  assignee,
		Status:      StatusPending,
		VisitAt:     in.VisitAt,
		IsEmergency: in.IsEmergency,
		Disease:     in.Disease,
		Address:     in.Address,
		Remark:      in.Remark,
	}

	err := s.tx(ctx, func(ctx context.Context) error {
		ownerCode, membershipType, tagNumber, err := s.resolveOwner(ctx, c, in)
		if err != nil {
			return err
		}
		c.IsTaggedAnimal = tagNumber != ""

		cost, err := s.pricer.Resolve(ctx, membershipType, c.VisitAt, c.IsTaggedAnimal, c.IsEmergency)
		if err != nil {
			return err
		}
		c.ComputedCost = cost

		if err := s.insertWithCaseNo(ctx, c, ownerCode, tagNumber); err != nil {
			return err
		}
		if err := s.logs.Create(ctx, &CaseAssignmentLog{
			CaseID:   c.ID,
			ToUserID: c.AssigneeID,
			Remarks:  initialAssignmentRemarks,
		}); err != nil {
			return err
		}
		if c.NonMemberOwnerID != nil {
			if err := s.registry.IncrementVisitCount(ctx, *c.NonMemberOwnerID); err != nil {
				return err
			}
		}
		s.auditor.Record(ctx, audit.ActionCreated, "case", c.ID, creator,
			map[string]interface{}{"case_no": c.CaseNo, "status": c.Status})
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Case: c}
	if s.payments != nil {
		if sum, err := s.payments.SummaryForCaseID(ctx, c.ID); err == nil {
			result.Summary = sum
		}
	}
	return result, nil
}

// resolveOwner validates the owner reference, fills the case's owner and
// animal fields and returns the owner code, membership type and active tag.
func (s *Service) resolveOwner(ctx context.Context, c *Case, in CreateInput) (ownerCode, membershipType, tagNumber string, err error) {
	if in.MemberID != nil {
		m, err := s.registry.GetMember(ctx, *in.MemberID)
		if err != nil {
			return "", "", "", err
		}
		if in.AnimalID == nil {
			return "", "", "", apperr.New(apperr.KindValidation, "animal_id is required for a member visit")
		}
		awt, err := s.registry.GetAnimal(ctx, *in.AnimalID)
		if err != nil {
			return "", "", "", err
		}
		if awt.Animal.MemberOwnerID == nil || *awt.Animal.MemberOwnerID != m.ID {
			return "", "", "", apperr.New(apperr.KindReference, "animal does not belong to the member")
		}
		c.MemberOwnerID = &m.ID
		c.AnimalID = awt.Animal.ID
		if awt.Tag != nil {
			tagNumber = awt.Tag.TagNumber
		}
		return m.MemberCode, pricing.MembershipMember, tagNumber, nil
	}

	nm, err := s.registry.EnsureNonMember(ctx, in.NonMember.Mobile, in.NonMember.Name,
		in.NonMember.Address, in.NonMember.MCCCode, in.NonMember.MPPCode)
	if err != nil {
		return "", "", "", err
	}
	c.NonMemberOwnerID = &nm.ID

	switch {
	case in.AnimalID != nil:
		awt, err := s.registry.GetAnimal(ctx, *in.AnimalID)
		if err != nil {
			return "", "", "", err
		}
		if awt.Animal.NonMemberOwnerID == nil || *awt.Animal.NonMemberOwnerID != nm.ID {
			return "", "", "", apperr.New(apperr.KindReference, "animal does not belong to the non-member")
		}
		c.AnimalID = awt.Animal.ID
		if awt.Tag != nil {
			tagNumber = awt.Tag.TagNumber
		}
	case in.Animal != nil:
		a, err := s.registry.EnsureNonMemberAnimal(ctx, nm.ID, *in.Animal)
		if err != nil {
			return "", "", "", err
		}
		c.AnimalID = a.ID
		tagNumber = in.Animal.TagNumber
	default:
		return "", "", "", apperr.New(apperr.KindValidation,
			"either animal_id or animal intake is required")
	}
	return nm.ID.String(), pricing.MembershipNonMember, tagNumber, nil
}

// insertWithCaseNo generates the case number and inserts the row. Untagged
// numbers carry a random suffix, so a collision gets one fresh draw.
func (s *Service) insertWithCaseNo(ctx context.Context, c *Case, ownerCode, tagNumber string) error {
	for attempt := 0; ; attempt++ {
		no, err := buildCaseNo(ownerCode, tagNumber, c.VisitAt.In(s.loc))
		if err != nil {
			return err
		}
		c.CaseNo = no
		err = s.cases.Create(ctx, c)
		if err == nil {
			return nil
		}
		if tagNumber == "" && attempt == 0 && isUniqueViolation(err) {
			continue
		}
		return err
	}
}

// ---- Assignment ----

// Assign moves a case to a new assignee under a row lock and appends to
// the assignment history. Reassigning to the current assignee is rejected.
func (s *Service) Assign(ctx context.Context, actor uuid.UUID, caseNo string, toUserID uuid.UUID, remarks string) (*Case, error) {
	if toUserID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, "to_user_id is required")
	}
	var result *Case
	err := s.tx(ctx, func(ctx context.Context) error {
		c, err := s.cases.GetByCaseNo(ctx, caseNo, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "case not found", err)
		}
		if c.AssigneeID == toUserID {
			return apperr.Newf(apperr.KindNoOpTransfer,
				"case %s is already assigned to that user", caseNo)
		}
		from := c.AssigneeID
		c.AssigneeID = toUserID
		if err := s.cases.Update(ctx, c); err != nil {
			return err
		}
		if err := s.logs.Create(ctx, &CaseAssignmentLog{
			CaseID:     c.ID,
			FromUserID: &from,
			ToUserID:   toUserID,
			Remarks:    remarks,
		}); err != nil {
			return err
		}
		s.auditor.Record(ctx, audit.ActionUpdated, "case", c.ID, actor,
			map[string]interface{}{"assignee_id": toUserID})
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ---- State machine ----

// Transition moves a case through the lifecycle. Confirming takes the
// creator or a supervisor of the assignee, completing takes the assignee,
// and cancelling takes a supervisor of the assignee. ADMIN may do any of
// these.
func (s *Service) Transition(ctx context.Context, actor *auth.Identity, caseNo, next string, remark *string) (*Case, error) {
	if !statusTransitions[StatusPending][next] && !statusTransitions[StatusConfirmed][next] {
		return nil, apperr.Newf(apperr.KindValidation, "invalid target status: %s", next)
	}
	var result *Case
	err := s.tx(ctx, func(ctx context.Context) error {
		c, err := s.cases.GetByCaseNo(ctx, caseNo, true)
		if err != nil {
			return apperr.Wrap(apperr.KindReference, "case not found", err)
		}
		if !statusTransitions[c.Status][next] {
			return apperr.Newf(apperr.KindForbiddenTransition,
				"case cannot move from %s to %s", c.Status, next)
		}
		if err := s.authorizeTransition(ctx, actor, c, next); err != nil {
			return err
		}
		prev := c.Status
		c.Status = next
		if remark != nil {
			c.Remark = remark
		}
		if err := s.cases.Update(ctx, c); err != nil {
			return err
		}
		s.auditor.Record(ctx, audit.ActionUpdated, "case", c.ID, actor.UserID,
			map[string]interface{}{"status": map[string]string{"from": prev, "to": next}})
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) authorizeTransition(ctx context.Context, actor *auth.Identity, c *Case, next string) error {
	if actor.Department == hierarchy.DeptAdmin {
		return nil
	}
	switch {
	case c.Status == StatusPending && next == StatusConfirmed:
		if actor.UserID == c.CreatedBy {
			return nil
		}
		return s.requireSupervisorOf(ctx, actor, c.AssigneeID,
			"only the creator or a supervisor may confirm a case")
	case c.Status == StatusPending && next == StatusCancelled:
		return s.requireSupervisorOf(ctx, actor, c.AssigneeID,
			"only a supervisor may cancel a pending case")
	case c.Status == StatusConfirmed && next == StatusCompleted:
		if actor.UserID == c.AssigneeID {
			return nil
		}
		return apperr.New(apperr.KindNotAuthorized,
			"only the assignee may complete a case")
	case c.Status == StatusConfirmed && next == StatusCancelled:
		return s.requireSupervisorOf(ctx, actor, c.AssigneeID,
			"only the assignee's supervisor may cancel a confirmed case")
	}
	return apperr.New(apperr.KindNotAuthorized,
		"actor has no authority over this case")
}

// requireSupervisorOf admits an actor in the SUPERVISOR department with
// graph reach over target. The closure includes the user themselves, so
// the department check keeps an assignee from acting as their own
// supervisor.
func (s *Service) requireSupervisorOf(ctx context.Context, actor *auth.Identity, target uuid.UUID, msg string) error {
	if actor.Department != hierarchy.DeptSupervisor {
		return apperr.New(apperr.KindNotAuthorized, msg)
	}
	over, err := s.visibility.IsSupervisorOf(ctx, actor.UserID, target)
	if err != nil {
		return err
	}
	if !over {
		return apperr.New(apperr.KindNotAuthorized, msg)
	}
	return nil
}

// ---- Reads ----

// List returns the cases visible to the viewer. MAT and veterinarian
// callers see only their own cases regardless of graph reach; a viewer
// with no reach gets an empty page, not an error.
func (s *Service) List(ctx context.Context, viewer *auth.Identity, f ListFilter) ([]*Case, int, error) {
	restricted, empty, err := s.viewerScope(ctx, viewer)
	if err != nil {
		return nil, 0, err
	}
	if empty {
		return nil, 0, nil
	}
	f.VisibleTo = restricted
	return s.cases.List(ctx, f)
}

// viewerScope resolves the visibility restriction for a viewer. A nil
// slice with empty=false means unrestricted.
func (s *Service) viewerScope(ctx context.Context, viewer *auth.Identity) (visibleTo []uuid.UUID, empty bool, err error) {
	if viewer.Department == hierarchy.DeptMAT || viewer.Department == hierarchy.DeptVeterinarian {
		return []uuid.UUID{viewer.UserID}, false, nil
	}
	scope, err := s.visibility.VisibleScope(ctx, viewer.UserID)
	if err != nil {
		return nil, false, err
	}
	if scope.All {
		return nil, false, nil
	}
	if scope.Empty() {
		return nil, true, nil
	}
	return scope.IDs, false, nil
}

// Get assembles a case with its assignment history, clinical records and
// payment summary, subject to the viewer's visibility.
func (s *Service) Get(ctx context.Context, viewer *auth.Identity, caseNo string) (*CaseDetail, *payment.Summary, error) {
	c, err := s.cases.GetByCaseNo(ctx, caseNo, false)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindReference, "case not found", err)
	}
	visibleTo, empty, err := s.viewerScope(ctx, viewer)
	if err != nil {
		return nil, nil, err
	}
	if empty || (visibleTo != nil && !containsEither(visibleTo, c.CreatedBy, c.AssigneeID)) {
		return nil, nil, apperr.New(apperr.KindNotAuthorized, "case is outside your visibility")
	}

	logs, err := s.logs.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	diagnoses, err := s.diagnoses.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	treatments, err := s.treatments.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}

	var sum *payment.Summary
	if s.payments != nil {
		if got, err := s.payments.SummaryForCaseID(ctx, c.ID); err == nil {
			sum = got
		}
	}
	return &CaseDetail{
		Case:           c,
		AssignmentLogs: logs,
		Diagnoses:      diagnoses,
		Treatments:     treatments,
	}, sum, nil
}

func containsEither(ids []uuid.UUID, a, b uuid.UUID) bool {
	for _, id := range ids {
		if id == a || id == b {
			return true
		}
	}
	return false
}

// Dashboard aggregates the viewer's visible cases by creation time.
// Today's boundaries and the monthly histogram are taken in the business
// timezone.
func (s *Service) Dashboard(ctx context.Context, viewer *auth.Identity) (*Dashboard, error) {
	visibleTo, empty, err := s.viewerScope(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if empty {
		return &Dashboard{ByStatus: map[string]int{}}, nil
	}
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return s.cases.Dashboard(ctx, visibleTo, dayStart, dayStart.AddDate(0, 0, 1), s.loc.String())
}

// ---- Payment ledger feed ----

// CaseInfoByNo implements payment.CaseInfoProvider.
func (s *Service) CaseInfoByNo(ctx context.Context, caseNo string) (*payment.CaseInfo, error) {
	c, err := s.cases.GetByCaseNo(ctx, caseNo, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "case not found", err)
	}
	return &payment.CaseInfo{CaseID: c.ID, Total: c.ComputedCost, VisitAt: c.VisitAt}, nil
}

// CaseInfoByID implements payment.CaseInfoProvider.
func (s *Service) CaseInfoByID(ctx context.Context, caseID uuid.UUID) (*payment.CaseInfo, error) {
	c, err := s.cases.GetByID(ctx, caseID, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "case not found", err)
	}
	return &payment.CaseInfo{CaseID: c.ID, Total: c.ComputedCost, VisitAt: c.VisitAt}, nil
}
