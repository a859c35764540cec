package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

var kindStatus = map[string]struct {
	status int
	title  string
}{
	shared.KindValidation:        {http.StatusUnprocessableEntity, "Validation Failed"},
	shared.KindNotFound:          {http.StatusNotFound, "Not Found"},
	shared.KindInsufficientStock: {http.StatusConflict, "Insufficient Stock"},
	shared.KindConflict:          {http.StatusConflict, "Conflict"},
	shared.KindState:             {http.StatusConflict, "Illegal State"},
	shared.KindPartialCommit:     {http.StatusInternalServerError, "Partial Commit"},
	shared.KindUnauthorized:      {http.StatusUnauthorized, "Unauthorized"},
	shared.KindForbidden:         {http.StatusForbidden, "Forbidden"},
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := shared.KindOf(err)
	mapping, ok := kindStatus[kind]
	if !ok {
		if logger != nil {
			logger.Error("unhandled error", slog.Any("error", err))
		}
		writeProblem(w, ProblemDetail{Title: "Internal Error", Status: http.StatusInternalServerError, Kind: shared.KindInternal})
		return
	}

	p := ProblemDetail{Title: mapping.title, Status: mapping.status, Kind: kind, Detail: err.Error()}

	var domainErr *shared.Error
	if errors.As(err, &domainErr) {
		p.Field = domainErr.Field
		p.Resource = domainErr.Resource
		p.ID = domainErr.ID
		if domainErr.Kind == shared.ErrValidation && domainErr.Field == "body" {
			p.Status = http.StatusBadRequest
		}
	}
	var stockErr *shared.InsufficientStockError
	if errors.As(err, &stockErr) {
		p.ProductID = stockErr.ProductID
		p.Requested = &stockErr.Requested
		p.Available = &stockErr.Available
	}
	var partial *shared.PartialCommitError
	if errors.As(err, &partial) {
		p.MarkerID = partial.MarkerID
		if logger != nil {
			logger.Error("partial commit", slog.String("invoice", partial.InvoiceNumber), slog.String("marker", partial.MarkerID), slog.Any("error", partial.Cause))
		}
	}
	writeProblem(w, p)
}
