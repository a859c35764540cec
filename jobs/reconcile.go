package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-retail/internal/billing"
	jobmetrics "github.com/odyssey-erp/odyssey-retail/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Sweeper resolves pending reconciliation markers.
type Sweeper interface {
	Sweep(ctx context.Context) (billing.SweepResult, error)
}

// ReconcileJob runs the billing reconciliation sweep.
type ReconcileJob struct {
	Sweeper Sweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReconcileJob wires dependencies for the sweep handler.
func NewReconcileJob(sweeper Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle processes TaskBillingReconcile tasks.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskBillingReconcile)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("trigger", payload.Trigger))

	result, err := j.Sweeper.Sweep(ctx)
	metrics.AddResolved(billing.ResolutionCommitted, result.Committed)
	metrics.AddResolved(billing.ResolutionRolledBack, result.RolledBack)
	if err != nil {
		logger.Error("reconciliation sweep", slog.Int("checked", result.Checked), slog.Any("error", err))
		return tracker.End(err)
	}
	if result.Checked > 0 {
		logger.Info("reconciliation sweep done",
			slog.Int("checked", result.Checked),
			slog.Int("committed", result.Committed),
			slog.Int("rolled_back", result.RolledBack))
	}
	return tracker.End(nil)
}
