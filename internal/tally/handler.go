package tally

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-retail/internal/auth"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Handler wires HTTP endpoints for daily tallies.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   auth.Middleware
}

// NewHandler constructs tally handler.
func NewHandler(logger *slog.Logger, service *Service, guard auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers tally routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/daily", h.handleDaily)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleAdmin))
		r.Post("/expense", h.handleExpense)
		r.Put("/close", h.handleClose)
	})
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	day := h.service.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := ParseDay(raw)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		day = parsed
	}
	t, err := h.service.Get(r.Context(), day)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) handleExpense(w http.ResponseWriter, r *http.Request) {
	var input ExpenseInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	input.ActorID = actor.ID
	t, err := h.service.AddExpense(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	var input CloseInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	input.ActorID = actor.ID
	t, err := h.service.Close(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}
