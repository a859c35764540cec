package billing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/internal/tally"
)

// ReceiptRenderer writes a printable receipt for an invoice.
type ReceiptRenderer interface {
	Render(w io.Writer, inv Invoice) error
}

// Handler wires HTTP endpoints for invoices.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	receipts ReceiptRenderer
}

// NewHandler constructs billing handler. receipts may be nil to disable the PDF endpoint.
func NewHandler(logger *slog.Logger, service *Service, receipts ReceiptRenderer) *Handler {
	return &Handler{logger: logger, service: service, receipts: receipts}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleCancel)
	r.Post("/{id}/cancel", h.handleCancel)
	r.Post("/{id}/status", h.handleStatus)
	r.Put("/{id}/payment", h.handlePayment)
	r.Get("/{id}/receipt.pdf", h.handleReceipt)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := shared.PageFromQuery(q)
	filter := ListFilter{
		Status:        InvoiceStatus(q.Get("status")),
		PaymentStatus: PaymentStatus(q.Get("paymentStatus")),
		Customer:      q.Get("customer"),
		SortBy:        SortField(q.Get("sortBy")),
		Ascending:     q.Get("sortOrder") == "asc",
		Page:          page,
		Limit:         limit,
	}
	var err error
	if filter.From, err = parseBound(q.Get("startDate"), "startDate", false); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if filter.To, err = parseBound(q.Get("endDate"), "endDate", true); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	invoices, pagination, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices, "pagination": pagination})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeAndValidate(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	input.ActorID = actorID(r)
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	inv, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var patch UpdateInput
	if err := httpx.DecodeAndValidate(r, &patch); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	patch.ActorID = actorID(r)
	inv, err := h.service.UpdateInvoice(r.Context(), id, patch)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

type statusRequest struct {
	Status InvoiceStatus `json:"status" validate:"required"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	inv, err := h.service.TransitionStatus(r.Context(), id, req.Status, actorID(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var update PaymentUpdate
	if err := httpx.DecodeAndValidate(r, &update); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	update.ActorID = actorID(r)
	inv, err := h.service.UpdatePayment(r.Context(), id, update)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req cancelRequest
	if r.Body != nil && r.Body != http.NoBody {
		// The body is optional; chunked requests report no length.
		if err := httpx.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	inv, err := h.service.CancelInvoice(r.Context(), id, req.Reason, actorID(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if h.receipts == nil {
		http.NotFound(w, r)
		return
	}
	id, err := invoiceID(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var buf bytes.Buffer
	if err := h.receipts.Render(&buf, inv); err != nil {
		httpx.RespondError(w, h.logger, fmt.Errorf("billing: render receipt %s: %w", inv.Number, err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, inv.Number))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write receipt failed", slog.String("number", inv.Number), slog.Any("error", err))
	}
}

func invoiceID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validation("id", "must be a positive integer")
	}
	return id, nil
}

func actorID(r *http.Request) int64 {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor.ID
}

// parseBound accepts a day or an RFC3339 timestamp. A bare day used as an upper
// bound covers the whole day.
func parseBound(raw, field string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.Parse(tally.DateLayout, raw)
	if err != nil {
		return nil, shared.Validation(field, "must be YYYY-MM-DD or RFC3339")
	}
	if upper {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
