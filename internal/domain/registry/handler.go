package registry

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
	api.GET("/owners/search", h.SearchOwners)
	api.GET("/animals/:id", h.GetAnimal)
	api.GET("/animals/:id/status-history", h.StatusHistory)
	api.POST("/animals/:id/status", h.SetStatus)
	api.POST("/animals/:id/replace-tag", h.ReplaceTag)
	api.POST("/animals", h.CreateAnimal)
	api.GET("/members", h.ListMembers)
	api.GET("/members/:id", h.GetMember)

	admin := api.Group("", auth.RequireDepartment("ADMIN"))
	admin.POST("/members", h.CreateMember)
}

func (h *Handler) SearchOwners(c echo.Context) error {
	matches, err := h.svc.FindOwnerByMobile(c.Request().Context(), c.QueryParam("mobile"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(matches))
}

func (h *Handler) CreateMember(c echo.Context) error {
	var m Member
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateMember(c.Request().Context(), &m); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(m))
}

func (h *Handler) GetMember(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.GetMember(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(m))
}

func (h *Handler) ListMembers(c echo.Context) error {
	p := pagination.FromContext(c)
	members, total, err := h.svc.ListMembers(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(members, total, p.Limit, p.Offset))
}

func (h *Handler) CreateAnimal(c echo.Context) error {
	var a Animal
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAnimal(c.Request().Context(), &a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(a))
}

func (h *Handler) GetAnimal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAnimal(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(a))
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in StatusInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	log, err := h.svc.SetCurrentStatus(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(log))
}

func (h *Handler) StatusHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	logs, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(logs))
}

type replaceTagRequest struct {
	TagNumber string  `json:"tag_number"`
	Method    *string `json:"method,omitempty"`
	Location  *string `json:"location,omitempty"`
}

func (h *Handler) ReplaceTag(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req replaceTagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tag, err := h.svc.ReplaceTag(c.Request().Context(), id, req.TagNumber, req.Method, req.Location)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(tag))
}
