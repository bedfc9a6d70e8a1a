package audit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	api.POST("/sync/cases", h.MarkCasesSynced)

	admin := api.Group("", auth.RequireDepartment())
	admin.GET("/audit-logs", h.List)
}

type syncCasesRequest struct {
	CaseNos []string `json:"case_nos"`
}

func (h *Handler) MarkCasesSynced(c echo.Context) error {
	var req syncCasesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.MarkCasesSynced(c.Request().Context(), req.CaseNos)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(map[string]int{"updated": updated}))
}

func (h *Handler) List(c echo.Context) error {
	entityType := c.QueryParam("entity_type")
	entityID := uuid.Nil
	if raw := c.QueryParam("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid entity_id")
		}
		entityID = id
	}
	p := pagination.FromContext(c)
	logs, total, err := h.svc.List(c.Request().Context(), entityType, entityID, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(logs, total, p.Limit, p.Offset))
}
