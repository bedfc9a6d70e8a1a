package cases

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dairysangam/vetcore/internal/domain/hierarchy"
	"github.com/dairysangam/vetcore/internal/domain/registry"
	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/auth"
	"github.com/dairysangam/vetcore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/cases/quick-visit", h.QuickVisit)
	api.GET("/cases", h.List)
	api.GET("/cases/dashboard", h.Dashboard)
	api.GET("/cases/:case_no", h.Get)
	api.POST("/cases/:case_no/assign", h.Assign)
	api.PATCH("/cases/:case_no", h.Transition)
	api.POST("/cases/:case_no/diagnosis", h.AddDiagnosis)
	api.POST("/cases/:case_no/treatments", h.AddTreatment)
	api.GET("/diseases/suggest", h.SuggestDiseases)
}

func identity(c echo.Context) (*auth.Identity, error) {
	ident := auth.IdentityFromContext(c.Request().Context())
	if ident == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return ident, nil
}

type quickVisitRequest struct {
	MemberID    *uuid.UUID                  `json:"member_id,omitempty"`
	NonMember   *NonMemberIntake            `json:"non_member,omitempty"`
	AnimalID    *uuid.UUID                  `json:"animal_id,omitempty"`
	Animal      *registry.EnsureAnimalInput `json:"animal,omitempty"`
	AssigneeID  *uuid.UUID                  `json:"assignee_id,omitempty"`
	VisitAt     *time.Time                  `json:"visit_at,omitempty"`
	IsEmergency bool                        `json:"is_emergency"`
	Disease     *string                     `json:"disease,omitempty"`
	Address     *string                     `json:"address,omitempty"`
	Remark      *string                     `json:"remark,omitempty"`
}

func (h *Handler) QuickVisit(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	var req quickVisitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in := CreateInput{
		MemberID:    req.MemberID,
		NonMember:   req.NonMember,
		AnimalID:    req.AnimalID,
		Animal:      req.Animal,
		AssigneeID:  req.AssigneeID,
		IsEmergency: req.IsEmergency,
		Disease:     req.Disease,
		Address:     req.Address,
		Remark:      req.Remark,
	}
	if req.VisitAt != nil {
		in.VisitAt = *req.VisitAt
	}
	result, err := h.svc.CreateCase(c.Request().Context(), ident.UserID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(result))
}

func (h *Handler) List(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	f := ListFilter{
		Status: c.QueryParam("status"),
		Mobile: c.QueryParam("mobile"),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if raw := c.QueryParam("type"); raw != "" {
		if raw != OwnerTypeMember && raw != OwnerTypeNonMember {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid type")
		}
		f.OwnerType = raw
	}
	if raw := c.QueryParam("assignee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid assignee_id")
		}
		f.AssigneeID = &id
	}
	if raw := c.QueryParam("is_emergency"); raw != "" {
		v := raw == "true"
		f.IsEmergency = &v
	}
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from")
		}
		f.From = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to")
		}
		f.To = &t
	}

	ctx := hierarchy.WithClosureCache(c.Request().Context())
	items, total, err := h.svc.List(ctx, ident, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) Dashboard(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	ctx := hierarchy.WithClosureCache(c.Request().Context())
	d, err := h.svc.Dashboard(ctx, ident)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(d))
}

func (h *Handler) Get(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	detail, sum, err := h.svc.Get(c.Request().Context(), ident, c.Param("case_no"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(map[string]interface{}{
		"case":            detail.Case,
		"assignment_logs": detail.AssignmentLogs,
		"diagnoses":       detail.Diagnoses,
		"treatments":      detail.Treatments,
		"payment_summary": sum,
	}))
}

type assignRequest struct {
	ToUserID uuid.UUID `json:"to_user_id"`
	Remarks  string    `json:"remarks"`
}

func (h *Handler) Assign(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.Assign(c.Request().Context(), ident.UserID, c.Param("case_no"), req.ToUserID, req.Remarks)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(updated))
}

type transitionRequest struct {
	Status string  `json:"status"`
	Remark *string `json:"remark,omitempty"`
}

func (h *Handler) Transition(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.Transition(c.Request().Context(), ident, c.Param("case_no"), req.Status, req.Remark)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(updated))
}

func (h *Handler) AddDiagnosis(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	var d CaseDiagnosis
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.AddDiagnosis(c.Request().Context(), ident.UserID, c.Param("case_no"), &d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(created))
}

func (h *Handler) AddTreatment(c echo.Context) error {
	ident, err := identity(c)
	if err != nil {
		return err
	}
	var t CaseTreatment
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.AddTreatment(c.Request().Context(), ident.UserID, c.Param("case_no"), &t)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(created))
}

func (h *Handler) SuggestDiseases(c echo.Context) error {
	raw := c.QueryParam("symptoms")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "symptoms query parameter is required")
	}
	return c.JSON(http.StatusOK, apperr.OK(SuggestDiseases(strings.Split(raw, ","))))
}
