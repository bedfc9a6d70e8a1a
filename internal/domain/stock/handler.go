package stock

import (
	"net/http"
	"strconv"
	"time"

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
	api.GET("/stock", h.ListStock)
	api.GET("/stock/summary", h.UserSummary)
	api.GET("/stock/expiring", h.ListExpiring)
	api.GET("/stock/expired", h.ListExpired)
	api.GET("/stock/low", h.ListLowStock)
	api.GET("/stock/critical", h.ListCriticalStock)
	api.GET("/stock/out-of-stock", h.ListOutOfStock)
	api.GET("/stock/:id", h.GetStock)
	api.GET("/stock/:id/transactions", h.Transactions)
	api.GET("/allocations", h.ListAllocations)
	api.GET("/medicines", h.ListMedicines)

	manage := api.Group("", auth.RequireDepartment("ADMIN", "SUPERVISOR"))
	manage.POST("/medicines", h.CreateMedicine)
	manage.POST("/stock", h.AddStock)
	manage.POST("/stock/:id/allocate", h.Allocate)
	manage.POST("/stock/transfer", h.Transfer)

	api.POST("/allocations/:id/consume", h.Consume)
	api.POST("/allocations/:id/return", h.Return)
}

func actorID(c echo.Context) uuid.UUID {
	if ident := auth.IdentityFromContext(c.Request().Context()); ident != nil {
		return ident.UserID
	}
	return uuid.Nil
}

func (h *Handler) CreateMedicine(c echo.Context) error {
	var m Medicine
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateMedicine(c.Request().Context(), &m); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(m))
}

func (h *Handler) ListMedicines(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListMedicines(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

type addStockRequest struct {
	MedicineID  uuid.UUID  `json:"medicine_id"`
	Location    string     `json:"location"`
	BatchNumber string     `json:"batch_number"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	Quantity    int        `json:"quantity"`
}

func (h *Handler) AddStock(c echo.Context) error {
	var req addStockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.AddStock(c.Request().Context(), req.MedicineID, req.Location,
		req.BatchNumber, req.ExpiryDate, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(st))
}

func (h *Handler) GetStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.GetStock(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(st))
}

func (h *Handler) ListStock(c echo.Context) error {
	p := pagination.FromContext(c)
	medicineID := uuid.Nil
	if v := c.QueryParam("medicine_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid medicine_id")
		}
		medicineID = id
	}
	items, total, err := h.svc.ListStock(c.Request().Context(), medicineID,
		c.QueryParam("location"), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) ListExpiring(c echo.Context) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	items, err := h.svc.ListExpiring(c.Request().Context(), days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(items))
}

func (h *Handler) ListExpired(c echo.Context) error {
	items, err := h.svc.ListExpired(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(items))
}

func (h *Handler) ListLowStock(c echo.Context) error {
	threshold, _ := strconv.Atoi(c.QueryParam("threshold"))
	items, err := h.svc.ListLowStock(c.Request().Context(), threshold)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(items))
}

func (h *Handler) ListCriticalStock(c echo.Context) error {
	threshold, _ := strconv.Atoi(c.QueryParam("threshold"))
	items, err := h.svc.ListCriticalStock(c.Request().Context(), threshold)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(items))
}

func (h *Handler) ListOutOfStock(c echo.Context) error {
	items, err := h.svc.ListOutOfStock(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(items))
}

type allocateRequest struct {
	UserID       uuid.UUID `json:"user_id"`
	Quantity     int       `json:"quantity"`
	Threshold    int       `json:"threshold_quantity"`
	MinThreshold int       `json:"min_threshold"`
}

func (h *Handler) Allocate(c echo.Context) error {
	stockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req allocateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	alloc, err := h.svc.Allocate(c.Request().Context(), req.UserID, stockID,
		req.Quantity, req.Threshold, req.MinThreshold, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(alloc))
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) Consume(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	alloc, err := h.svc.Consume(c.Request().Context(), id, req.Quantity, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(alloc))
}

func (h *Handler) Return(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	alloc, err := h.svc.Return(c.Request().Context(), id, req.Quantity, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(alloc))
}

type transferRequest struct {
	FromStockID uuid.UUID `json:"from_stock_id"`
	ToLocation  string    `json:"to_location"`
	Quantity    int       `json:"quantity"`
}

func (h *Handler) Transfer(c echo.Context) error {
	var req transferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	dest, err := h.svc.Transfer(c.Request().Context(), req.FromStockID,
		req.ToLocation, req.Quantity, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(dest))
}

func (h *Handler) ListAllocations(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListAllocations(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) UserSummary(c echo.Context) error {
	userID := actorID(c)
	if v := c.QueryParam("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		userID = id
	}
	sum, err := h.svc.SummaryForUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(sum))
}

func (h *Handler) Transactions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.StockTransactions(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}
