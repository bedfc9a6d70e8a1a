package pricing

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
	api.GET("/pricing-rules", h.List)
	api.GET("/pricing-rules/:id", h.Get)

	admin := api.Group("", auth.RequireDepartment("ADMIN"))
	admin.POST("/pricing-rules", h.Create)
	admin.PATCH("/pricing-rules/:id", h.Update)
	admin.POST("/pricing-rules/supersede", h.Supersede)
}

func (h *Handler) Create(c echo.Context) error {
	var r PricingRule
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(r))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var r PricingRule
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r.ID = id
	if err := h.svc.Update(c.Request().Context(), &r); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(r))
}

func (h *Handler) Supersede(c echo.Context) error {
	var r PricingRule
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Supersede(c.Request().Context(), &r); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(r))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(r))
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	onlyActive := c.QueryParam("active") == "true"
	rules, total, err := h.svc.List(c.Request().Context(), onlyActive, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rules, total, p.Limit, p.Offset))
}
