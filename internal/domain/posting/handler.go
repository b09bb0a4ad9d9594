package posting

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medledger/medledger/internal/platform/auth"
	"github.com/medledger/medledger/pkg/pagination"
)

type Handler struct {
	engine   *Engine
	batch    *BatchProcessor
	payments PaymentRepository
	store    ClaimStore
	rules    RuleRepository
	cached   *CachedRuleSource
}

type HandlerConfig struct {
	Engine   *Engine
	Batch    *BatchProcessor
	Payments PaymentRepository
	Store    ClaimStore
	Rules    RuleRepository
	Cached   *CachedRuleSource
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		engine:   cfg.Engine,
		batch:    cfg.Batch,
		payments: cfg.Payments,
		store:    cfg.Store,
		rules:    cfg.Rules,
		cached:   cfg.Cached,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "billing"))

	g.POST("/payments", h.ApplyPayment)
	g.GET("/payments", h.ListPayments)
	g.GET("/payments/:id", h.GetPayment)

	g.POST("/remittances", h.ProcessRemittance)

	g.GET("/claims/:id/totals", h.GetClaimTotals)
	g.POST("/claims/:id/reconcile", h.ReconcileClaim)

	g.GET("/forward-rules", h.ListForwardRules)
	g.PUT("/forward-rules", h.UpsertForwardRule)
}

// ApplyPayment posts a payment. Duplicates map to 409, overpayments to 422
// and reconciliation failures to 500; all three leave the ledger untouched.
func (h *Handler) ApplyPayment(c echo.Context) error {
	var cmd ApplyCommand
	if err := c.Bind(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.engine.ApplyPayment(c.Request().Context(), &cmd)
	if err != nil {
		var overErr *OverpaymentError
		var recErr *ReconcileError
		switch {
		case errors.Is(err, ErrDuplicatePayment):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.As(err, &overErr):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &recErr):
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.payments.GetByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPayments(c echo.Context) error {
	params := pagination.FromContext(c)
	list, total, err := h.payments.List(c.Request().Context(), params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, params))
}

// ProcessRemittance posts an ERA batch. A fully posted batch returns 200; a
// batch with any per-claim failures returns 207 with the error detail in
// the body.
func (h *Handler) ProcessRemittance(c echo.Context) error {
	var file EraFile
	if err := c.Bind(&file); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.batch.Process(c.Request().Context(), &file)
	if err != nil {
		if errors.Is(err, ErrNoPayerMatch) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !result.Success {
		return c.JSON(http.StatusMultiStatus, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetClaimTotals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	totals, err := h.store.ReadTotals(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "claim not found")
	}
	return c.JSON(http.StatusOK, totals)
}

// ReconcileClaim runs the independent verification on demand.
func (h *Handler) ReconcileClaim(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.engine.reconciler.Verify(c.Request().Context(), id); err != nil {
		var recErr *ReconcileError
		if errors.As(err, &recErr) {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"claim_id":    recErr.ClaimID,
				"discrepancy": recErr.Discrepancy,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"reconciled": true})
}

func (h *Handler) ListForwardRules(c echo.Context) error {
	params := pagination.FromContext(c)
	list, total, err := h.rules.List(c.Request().Context(), params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, params))
}

func (h *Handler) UpsertForwardRule(c echo.Context) error {
	var rule AdjustmentForwardRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !rule.Group.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid adjustment group")
	}
	if rule.ReasonCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reason_code is required")
	}
	if err := h.rules.Upsert(c.Request().Context(), &rule); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.cached != nil {
		h.cached.Invalidate()
	}
	return c.JSON(http.StatusOK, rule)
}
