package hierarchy

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
	admin := api.Group("", auth.RequireDepartment(DeptAdmin))
	admin.POST("/users", h.CreateUser)
	admin.PUT("/users/:id", h.UpdateUser)
	admin.DELETE("/users/:id", h.DeactivateUser)
	admin.POST("/hierarchy/edges", h.AddEdge)
	admin.DELETE("/hierarchy/edges", h.RemoveEdge)

	api.GET("/users", h.ListUsers)
	api.GET("/users/:id", h.GetUser)
	api.GET("/users/:id/manageable", h.Manageable)
	api.GET("/users/:id/reportees", h.ListReportees)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateUser(c.Request().Context(), &u); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(u))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(u))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	if ident := auth.IdentityFromContext(c.Request().Context()); ident != nil {
		u.UpdatedBy = &ident.UserID
	}
	if err := h.svc.UpdateUser(c.Request().Context(), &u); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(u))
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	by := uuid.Nil
	if ident := auth.IdentityFromContext(c.Request().Context()); ident != nil {
		by = ident.UserID
	}
	if err := h.svc.DeactivateUser(c.Request().Context(), id, by); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), c.QueryParam("department"), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p.Limit, p.Offset))
}

type edgeRequest struct {
	SupervisorID uuid.UUID `json:"supervisor_id"`
	ReporteeID   uuid.UUID `json:"reportee_id"`
}

func (h *Handler) AddEdge(c echo.Context) error {
	var req edgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.AddEdge(c.Request().Context(), req.SupervisorID, req.ReporteeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(e))
}

func (h *Handler) RemoveEdge(c echo.Context) error {
	var req edgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RemoveEdge(c.Request().Context(), req.SupervisorID, req.ReporteeID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Manageable(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ids, err := h.svc.ManageableUserIDs(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(ids))
}

func (h *Handler) ListReportees(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	edges, err := h.svc.ListDirectReportees(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(edges))
}
