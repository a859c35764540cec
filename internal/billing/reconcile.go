package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const defaultSweepBatch = 100

// SweepResult counts the markers resolved by one sweep.
type SweepResult struct {
	Checked    int `json:"checked"`
	Committed  int `json:"committed"`
	RolledBack int `json:"rolledBack"`
}

// Reconciler resolves markers left behind by commits whose outcome was unknown.
type Reconciler struct {
	store  Store
	logger *slog.Logger
	batch  int
	now    func() time.Time
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger, batch: defaultSweepBatch, now: time.Now}
}

// Sweep inspects pending markers and records whether each write reached the database.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	markers, err := r.store.PendingMarkers(ctx, r.batch)
	if err != nil {
		return SweepResult{}, err
	}
	var result SweepResult
	for _, m := range markers {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		inv, found, err := r.lookup(ctx, m)
		if err != nil {
			return result, err
		}
		resolution := resolveMarker(m.Stage, inv, found)
		if err := r.store.ResolveMarker(ctx, m.ID, resolution, r.now().UTC()); err != nil {
			return result, err
		}
		result.Checked++
		if resolution == ResolutionCommitted {
			result.Committed++
		} else {
			result.RolledBack++
		}
		r.logger.Info("reconciliation marker resolved",
			slog.String("marker_id", m.ID.String()),
			slog.String("number", m.InvoiceNumber),
			slog.String("stage", m.Stage),
			slog.String("resolution", resolution))
	}
	return result, nil
}

// lookup finds the invoice a marker refers to. A create marker is matched on its
// attempt id because a rolled back create frees its number for the next sale.
func (r *Reconciler) lookup(ctx context.Context, m ReconciliationMarker) (Invoice, bool, error) {
	if m.Stage == StageCreate && m.AttemptID != uuid.Nil {
		return r.store.FindInvoiceByAttempt(ctx, m.AttemptID)
	}
	return r.store.FindInvoiceByNumber(ctx, m.InvoiceNumber)
}

func resolveMarker(stage string, inv Invoice, found bool) string {
	if !found {
		return ResolutionRolledBack
	}
	switch stage {
	case StageFinalize:
		if inv.Status == StatusDraft {
			return ResolutionRolledBack
		}
	case StageCancel:
		if inv.Status != StatusCancelled {
			return ResolutionRolledBack
		}
	}
	return ResolutionCommitted
}
