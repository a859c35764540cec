package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-retail/internal/billing"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-retail/internal/jobs"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: QueueDefault, Type: task.Type()}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

func TestClientEnqueuesLowStockTask(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := NewClientWith(enq)
	var handler inventory.IntegrationHandler = client

	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, handler.HandleLowStock(context.Background(), inventory.LowStockEvent{
		LedgerID: 4, ProductID: 9, CurrentStock: 18, ReorderLevel: 20, MinimumStock: 10, At: at,
	}))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskInventoryLowStock, enq.tasks[0].Type())

	var payload LowStockPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, int64(9), payload.ProductID)
	assert.Equal(t, int64(18), payload.CurrentStock)
	assert.True(t, payload.At.Equal(at))

	enq.err = errors.New("redis down")
	assert.Error(t, client.HandleLowStock(context.Background(), inventory.LowStockEvent{LedgerID: 1, ProductID: 1}))
}

func TestLowStockJobHandle(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewLowStockJob(nil, metrics)

	task, err := NewLowStockTask(inventory.LowStockEvent{LedgerID: 4, ProductID: 9, CurrentStock: 5, ReorderLevel: 20, MinimumStock: 10})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	err = job.Handle(context.Background(), asynq.NewTask(TaskInventoryLowStock, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	err = job.Handle(context.Background(), asynq.NewTask(TaskInventoryLowStock, []byte(`{"ledgerId":0}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubSweeper struct {
	result billing.SweepResult
	err    error
	calls  int
}

func (s *stubSweeper) Sweep(context.Context) (billing.SweepResult, error) {
	s.calls++
	return s.result, s.err
}

func TestReconcileJobRunsSweep(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	sweeper := &stubSweeper{result: billing.SweepResult{Checked: 3, Committed: 2, RolledBack: 1}}
	job := NewReconcileJob(sweeper, nil, metrics)

	task, err := NewReconcileTask("")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, sweeper.calls)

	sweeper.err = errors.New("db gone")
	assert.Error(t, job.Handle(context.Background(), task))

	count, err := testutil.GatherAndCount(registry, "retail_jobs_total", "retail_reconciliation_markers_resolved_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	var nilJob *ReconcileJob
	assert.Error(t, nilJob.Handle(context.Background(), task))
}

func TestReconcileTaskPayload(t *testing.T) {
	task, err := NewReconcileTask("cli")
	require.NoError(t, err)
	assert.Equal(t, TaskBillingReconcile, task.Type())
	assert.JSONEq(t, `{"trigger":"cli"}`, string(task.Payload()))
}

type stubCleaner struct {
	retention time.Duration
	err       error
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.retention = olderThan
	return s.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &stubCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 72*time.Hour, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task := NewIdempotencyCleanupTask()
	assert.Equal(t, TaskIdempotencyCleanup, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 72*time.Hour, cleaner.retention)

	cleaner.err = errors.New("timeout")
	assert.Error(t, job.Handle(context.Background(), task))

	job.Retention = 0
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		body      string
	}{
		{"no inspector", nil, http.StatusOK, `{"queue":"default","pending":0}`},
		{"pending tasks", stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3}}, http.StatusOK, `{"queue":"default","pending":3}`},
		{"redis down", stubInspector{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Route("/jobs", NewHandler(tc.inspector, nil).MountRoutes)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			assert.Equal(t, tc.status, rr.Code)
			if tc.body != "" {
				assert.JSONEq(t, tc.body, rr.Body.String())
			}
		})
	}
}
