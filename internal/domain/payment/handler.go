package payment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/dairysangam/vetcore/internal/platform/apperr"
)

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, echo.NewHTTPError(http.StatusBadRequest, "invalid amount")
	}
	return d, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/cases/:case_no/payments", h.RecordPayment)
	api.GET("/cases/:case_no/payments", h.CaseSummary)
	api.POST("/payments/:id/mark-processing", h.MarkProcessing)
	api.POST("/payments/:id/mark-completed", h.MarkCompleted)
	api.POST("/payments/:id/mark-failed", h.MarkFailed)
	api.POST("/payments/:id/refund", h.Refund)
	api.POST("/payments/:id/reconcile", h.Reconcile)
}

type recordPaymentRequest struct {
	Method        string     `json:"method"`
	Amount        string     `json:"amount"`
	CollectedBy   *uuid.UUID `json:"collected_by,omitempty"`
	TransactionID *string    `json:"transaction_id,omitempty"`
}

func (h *Handler) RecordPayment(c echo.Context) error {
	var req recordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	p := &CasePayment{
		Method:        req.Method,
		Amount:        amount,
		CollectedBy:   req.CollectedBy,
		TransactionID: req.TransactionID,
	}
	created, err := h.svc.RecordPayment(c.Request().Context(), c.Param("case_no"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, apperr.Created(created))
}

func (h *Handler) CaseSummary(c echo.Context) error {
	sum, err := h.svc.SummaryForCase(c.Request().Context(), c.Param("case_no"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(sum))
}

type gatewayRequest struct {
	GatewayResponse *string    `json:"gateway_response,omitempty"`
	TransactionID   *string    `json:"transaction_id,omitempty"`
	CollectedBy     *uuid.UUID `json:"collected_by,omitempty"`
}

func paymentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) MarkProcessing(c echo.Context) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	var req gatewayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.MarkProcessing(c.Request().Context(), id, req.GatewayResponse)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(p))
}

func (h *Handler) MarkCompleted(c echo.Context) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	var req gatewayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.MarkCompleted(c.Request().Context(), id, req.TransactionID, req.GatewayResponse, req.CollectedBy)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(p))
}

func (h *Handler) MarkFailed(c echo.Context) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	var req gatewayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.MarkFailed(c.Request().Context(), id, req.GatewayResponse)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(p))
}

func (h *Handler) Refund(c echo.Context) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Refund(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(p))
}

func (h *Handler) Reconcile(c echo.Context) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Reconcile(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apperr.OK(p))
}
