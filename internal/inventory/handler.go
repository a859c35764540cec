package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-retail/internal/auth"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   auth.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, guard auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers stock routes. Movements may be posted by staff; ledger
// creation and threshold changes need an admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/alerts/low-stock", h.handleLowStock)
	r.Get("/product/{productID}", h.handleGetByProduct)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/movements", h.handleListMovements)
	r.Post("/{id}/movements", h.handleAddMovement)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleAdmin))
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := shared.PageFromQuery(q)
	ledgers, pagination, err := h.service.ListLedgers(r.Context(), ListFilter{Status: StockStatus(q.Get("status")), Page: page, Limit: limit})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if ledgers == nil {
		ledgers = []Ledger{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stocks": ledgers, "pagination": pagination})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.LowStockAlerts(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	ledger, err := h.service.GetLedger(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) handleGetByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	ledger, err := h.service.GetLedgerByProduct(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateLedgerInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input.ActorID = actorID(r)
	ledger, err := h.service.CreateLedger(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ledger)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input UpdateLedgerInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input.ActorID = actorID(r)
	ledger, err := h.service.UpdateLedger(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) handleAddMovement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var input MovementInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input.LedgerID = id
	input.ActorID = actorID(r)
	ledger, movement, err := h.service.AddMovement(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"ledger": ledger, "movement": movement})
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	page, limit := shared.PageFromQuery(r.URL.Query())
	movements, pagination, err := h.service.ListMovements(r.Context(), id, page, limit)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if movements == nil {
		movements = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements, "pagination": pagination})
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validation(param, "must be a positive integer")
	}
	return id, nil
}

func actorID(r *http.Request) int64 {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor.ID
}
