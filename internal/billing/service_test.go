package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/internal/tally"
)

var (
	testNow   = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	testToday = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
)

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.Conflict("idempotency_key", key, shared.ErrIdempotencyConflict)
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	created  map[string]int
	rejected int
	partial  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{created: make(map[string]int), partial: make(map[string]int)}
}

func (m *recordingMetrics) InvoiceCreated(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[method]++
}

func (m *recordingMetrics) StockRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

func (m *recordingMetrics) PartialCommit(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partial[stage]++
}

type notifiedLedger struct {
	previous int64
	ledger   inventory.Ledger
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifiedLedger
}

func (n *recordingNotifier) NotifyLowStock(_ context.Context, previous int64, ledger inventory.Ledger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifiedLedger{previous: previous, ledger: ledger})
}

type fixture struct {
	store    *memoryStore
	svc      *Service
	idem     *memoryIdempotency
	metrics  *recordingMetrics
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemoryStore()
	store.addProduct(1, "100", "18", 10)
	store.addProduct(2, "200", "18", 10)
	f := &fixture{
		store:    store,
		idem:     &memoryIdempotency{},
		metrics:  newRecordingMetrics(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(store, ServiceConfig{Location: time.UTC, NumberAttempts: 3}, Dependencies{
		Idempotency: f.idem,
		Stock:       f.notifier,
		Metrics:     f.metrics,
	}).WithNow(func() time.Time { return testNow })
	return f
}

func saleInput(lines ...LineInput) CreateInput {
	return CreateInput{
		Customer: Customer{Name: "Asha Traders", Phone: "9800000000"},
		Lines:    lines,
		ActorID:  7,
	}
}

func TestCreateInvoiceSettlesStockAndTally(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(
		LineInput{ProductID: 1, Quantity: 2},
		LineInput{ProductID: 2, Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-000001", inv.Number)
	assert.Equal(t, StatusSent, inv.Status)
	assert.Equal(t, PaymentPending, inv.PaymentStatus)
	assert.Equal(t, shared.PaymentCash, inv.PaymentMethod)
	assert.Equal(t, "472.00", inv.GrandTotal.StringFixed(2))
	require.NotNil(t, inv.TallyDate)
	assert.True(t, inv.TallyDate.Equal(testToday))

	assert.Equal(t, int64(8), f.store.stockOf(1))
	assert.Equal(t, int64(9), f.store.stockOf(2))
	moves := f.store.movementsFor(1)
	require.Len(t, moves, 1)
	assert.Equal(t, inventory.MovementOut, moves[0].Type)
	assert.Equal(t, "Invoice: INV-2026-000001", moves[0].Reason)
	assert.Equal(t, "INV-2026-000001", moves[0].Reference)
	assert.Equal(t, int64(10), moves[0].PreviousStock)
	assert.Equal(t, int64(8), moves[0].NewStock)

	day, ok := f.store.tallyOf(testToday)
	require.True(t, ok)
	assert.Equal(t, "472.00", day.Sales[shared.PaymentCash].StringFixed(2))
	assert.Equal(t, "472.00", day.SalesTotal.StringFixed(2))
	assert.Equal(t, []int64{inv.ID}, day.InvoiceIDs)
	assert.Equal(t, 1, f.metrics.created["cash"])

	second, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000002", second.Number)
}

func TestCreateInvoiceValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateInvoice(context.Background(), CreateInput{Lines: []LineInput{{ProductID: 1, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	input := saleInput(LineInput{ProductID: 1, Quantity: 1})
	input.PaymentMethod = "barter"
	_, err = f.svc.CreateInvoice(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = saleInput(LineInput{ProductID: 1, Quantity: 1})
	input.Status = StatusPaid
	_, err = f.svc.CreateInvoice(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = saleInput(LineInput{ProductID: 1, Quantity: 1})
	input.DueDate = "14/03/2026"
	_, err = f.svc.CreateInvoice(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)

	assert.Equal(t, 0, f.store.invoiceCount())
}

func TestCreateInvoiceInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateInvoice(context.Background(), saleInput(
		LineInput{ProductID: 2, Quantity: 1},
		LineInput{ProductID: 1, Quantity: 11},
	))
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	var ise *shared.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(1), ise.ProductID)
	assert.Equal(t, int64(11), ise.Requested)
	assert.Equal(t, int64(10), ise.Available)

	assert.Equal(t, int64(10), f.store.stockOf(1))
	assert.Equal(t, int64(10), f.store.stockOf(2))
	assert.Empty(t, f.store.movementsFor(2))
	assert.Equal(t, 0, f.store.invoiceCount())
	_, ok := f.store.tallyOf(testToday)
	assert.False(t, ok)
	assert.Equal(t, 1, f.metrics.rejected)
}

func TestCreateInvoiceWithoutLedgerHasNoStock(t *testing.T) {
	f := newFixture(t)
	f.store.mu.Lock()
	delete(f.store.byProduct, 2)
	f.store.mu.Unlock()

	_, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 2, Quantity: 1}))
	var ise *shared.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(0), ise.Available)
}

func TestCreateInvoiceRollsBackWhenTallyClosed(t *testing.T) {
	f := newFixture(t)
	closed := tally.New(testToday)
	require.NoError(t, closed.Close(1, "day end", testNow))
	f.store.putTally(closed)

	_, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 2}))
	require.ErrorIs(t, err, tally.ErrTallyClosed)
	assert.ErrorIs(t, err, shared.ErrConflict)

	assert.Equal(t, int64(10), f.store.stockOf(1))
	assert.Empty(t, f.store.movementsFor(1))
	assert.Equal(t, 0, f.store.invoiceCount())
}

func TestDraftInvoiceDefersStockUntilFinalized(t *testing.T) {
	f := newFixture(t)
	input := saleInput(LineInput{ProductID: 1, Quantity: 12})
	input.Status = StatusDraft
	draft, err := f.svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, draft.Status)
	assert.Nil(t, draft.TallyDate)
	assert.Equal(t, int64(10), f.store.stockOf(1))
	_, ok := f.store.tallyOf(testToday)
	assert.False(t, ok)

	_, err = f.svc.FinalizeInvoice(context.Background(), draft.ID, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	qty := []LineInput{{ProductID: 1, Quantity: 4}}
	_, err = f.svc.UpdateInvoice(context.Background(), draft.ID, UpdateInput{Lines: qty})
	require.NoError(t, err)

	sent, err := f.svc.TransitionStatus(context.Background(), draft.ID, StatusSent, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	assert.Equal(t, draft.Number, sent.Number)
	assert.Equal(t, int64(6), f.store.stockOf(1))
	day, ok := f.store.tallyOf(testToday)
	require.True(t, ok)
	assert.Equal(t, "472.00", day.SalesTotal.StringFixed(2))

	_, err = f.svc.FinalizeInvoice(context.Background(), draft.ID, 7)
	assert.ErrorIs(t, err, shared.ErrState)
}

func TestCancelPaidInvoiceIsRejected(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)
	paid, err := f.svc.TransitionStatus(context.Background(), inv.ID, StatusPaid, 7)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, paid.PaymentStatus)

	_, err = f.svc.CancelInvoice(context.Background(), inv.ID, "changed mind", 7)
	require.ErrorIs(t, err, shared.ErrState)
	require.ErrorIs(t, err, ErrCannotCancelPaid)

	assert.Equal(t, int64(8), f.store.stockOf(1))
	stored, err := f.svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, stored.Status)
}

func TestCancelSentInvoiceRestoresStock(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)
	require.Equal(t, int64(8), f.store.stockOf(1))

	cancelled, err := f.svc.CancelInvoice(context.Background(), inv.ID, " wrong customer ", 9)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "wrong customer", cancelled.CancelReason)
	assert.Equal(t, int64(9), cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, int64(10), f.store.stockOf(1))
	moves := f.store.movementsFor(1)
	require.Len(t, moves, 2)
	assert.Equal(t, inventory.MovementOut, moves[0].Type)
	assert.Equal(t, inventory.MovementIn, moves[1].Type)
	assert.Equal(t, "Invoice cancelled: "+inv.Number, moves[1].Reason)
	assert.Equal(t, inv.Number, moves[1].Reference)

	day, ok := f.store.tallyOf(testToday)
	require.True(t, ok)
	assert.True(t, day.SalesTotal.IsZero())
	assert.NotContains(t, day.Sales, shared.PaymentCash)
	assert.Empty(t, day.InvoiceIDs)

	_, err = f.svc.CancelInvoice(context.Background(), inv.ID, "", 9)
	assert.ErrorIs(t, err, shared.ErrState)
	assert.Equal(t, int64(10), f.store.stockOf(1))
}

func TestCancelDraftHasNoStockEffect(t *testing.T) {
	f := newFixture(t)
	input := saleInput(LineInput{ProductID: 1, Quantity: 2})
	input.Status = StatusDraft
	draft, err := f.svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.CancelInvoice(context.Background(), draft.ID, "", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.store.stockOf(1))
	assert.Empty(t, f.store.movementsFor(1))
}

func TestCancelLeavesClosedTallyUntouched(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	day, _ := f.store.tallyOf(testToday)
	require.NoError(t, day.Close(1, "", testNow))
	f.store.putTally(day)

	_, err = f.svc.CancelInvoice(context.Background(), inv.ID, "returned", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.store.stockOf(1))
	sealed, _ := f.store.tallyOf(testToday)
	assert.Equal(t, "118.00", sealed.SalesTotal.StringFixed(2))
}

func TestTransitionStatusRejectsIllegalMoves(t *testing.T) {
	f := newFixture(t)
	input := saleInput(LineInput{ProductID: 1, Quantity: 1})
	input.Status = StatusDraft
	draft, err := f.svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.TransitionStatus(context.Background(), draft.ID, StatusPaid, 7)
	assert.ErrorIs(t, err, shared.ErrState)
	_, err = f.svc.TransitionStatus(context.Background(), draft.ID, "void", 7)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.TransitionStatus(context.Background(), draft.ID, StatusSent, 7)
	require.NoError(t, err)
	overdue, err := f.svc.TransitionStatus(context.Background(), draft.ID, StatusOverdue, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, overdue.Status)
	_, err = f.svc.TransitionStatus(context.Background(), draft.ID, StatusSent, 7)
	assert.ErrorIs(t, err, shared.ErrState)

	_, err = f.svc.TransitionStatus(context.Background(), 404, StatusPaid, 7)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateInvoiceRestrictsSentInvoices(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.UpdateInvoice(context.Background(), inv.ID, UpdateInput{Lines: []LineInput{{ProductID: 2, Quantity: 1}}})
	assert.ErrorIs(t, err, shared.ErrState)

	_, err = f.svc.UpdateInvoice(context.Background(), inv.ID, UpdateInput{Tags: []string{"delivery"}})
	assert.ErrorIs(t, err, shared.ErrState)

	notes := "deliver after 5pm"
	updated, err := f.svc.UpdateInvoice(context.Background(), inv.ID, UpdateInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Empty(t, updated.Tags)
	assert.True(t, updated.GrandTotal.Equal(inv.GrandTotal))
}

func TestUpdateInvoiceTagsWhileDraft(t *testing.T) {
	f := newFixture(t)
	input := saleInput(LineInput{ProductID: 1, Quantity: 1})
	input.Status = StatusDraft
	draft, err := f.svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)

	updated, err := f.svc.UpdateInvoice(context.Background(), draft.ID, UpdateInput{Tags: []string{"Delivery", "delivery"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"delivery"}, updated.Tags)

	_, err = f.svc.TransitionStatus(context.Background(), draft.ID, StatusSent, 7)
	require.NoError(t, err)
	_, err = f.svc.UpdateInvoice(context.Background(), draft.ID, UpdateInput{Tags: []string{"gift"}})
	assert.ErrorIs(t, err, shared.ErrState)
}

func TestUpdatePaymentMovesTallyBucket(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)

	upi := shared.PaymentUPI
	updated, err := f.svc.UpdatePayment(context.Background(), inv.ID, PaymentUpdate{Method: &upi})
	require.NoError(t, err)
	assert.Equal(t, shared.PaymentUPI, updated.PaymentMethod)

	day, _ := f.store.tallyOf(testToday)
	assert.NotContains(t, day.Sales, shared.PaymentCash)
	assert.Equal(t, "236.00", day.Sales[shared.PaymentUPI].StringFixed(2))
	assert.Equal(t, "236.00", day.SalesTotal.StringFixed(2))

	paid := PaymentPaid
	updated, err = f.svc.UpdatePayment(context.Background(), inv.ID, PaymentUpdate{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, StatusSent, updated.Status)

	require.NoError(t, day.Close(1, "", testNow))
	f.store.putTally(day)
	card := shared.PaymentCard
	_, err = f.svc.UpdatePayment(context.Background(), inv.ID, PaymentUpdate{Method: &card})
	require.ErrorIs(t, err, tally.ErrTallyClosed)
	stored, _ := f.svc.GetInvoice(context.Background(), inv.ID)
	assert.Equal(t, shared.PaymentUPI, stored.PaymentMethod)

	_, err = f.svc.UpdatePayment(context.Background(), inv.ID, PaymentUpdate{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateInvoiceRetriesNumberConflicts(t *testing.T) {
	f := newFixture(t)
	f.store.conflicts = 2
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000001", inv.Number)
	assert.Equal(t, int64(9), f.store.stockOf(1))

	f.store.conflicts = 3
	_, err = f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, err, ErrNumberConflict)
	assert.Equal(t, int64(9), f.store.stockOf(1))
	assert.Equal(t, 1, f.store.invoiceCount())
}

func TestCreateInvoiceIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	input := saleInput(LineInput{ProductID: 1, Quantity: 11})
	input.IdempotencyKey = "till-3-0001"

	_, err := f.svc.CreateInvoice(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	input.Lines = []LineInput{{ProductID: 1, Quantity: 1}}
	_, err = f.svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.CreateInvoice(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 1, f.store.invoiceCount())
	assert.Equal(t, int64(9), f.store.stockOf(1))

	input.ActorID = 8
	_, err = f.svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
}

func TestCommitFailureRecordsMarker(t *testing.T) {
	cases := []struct {
		mode       string
		resolution string
		invoices   int
	}{
		{commitLost, ResolutionRolledBack, 0},
		{commitApplied, ResolutionCommitted, 1},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			f := newFixture(t)
			input := saleInput(LineInput{ProductID: 1, Quantity: 1})
			input.IdempotencyKey = "till-1-0042"
			f.store.commitMode = tc.mode

			_, err := f.svc.CreateInvoice(context.Background(), input)
			require.ErrorIs(t, err, shared.ErrPartialCommit)
			require.ErrorIs(t, err, db.ErrCommitFailed)
			var pce *shared.PartialCommitError
			require.True(t, errors.As(err, &pce))
			assert.Equal(t, "INV-2026-000001", pce.InvoiceNumber)
			assert.Equal(t, StageCreate, pce.Stage)
			assert.NotEmpty(t, pce.MarkerID)
			assert.Equal(t, 1, f.metrics.partial[StageCreate])
			assert.Equal(t, tc.invoices, f.store.invoiceCount())

			f.store.commitMode = commitOK
			_, err = f.svc.CreateInvoice(context.Background(), input)
			require.ErrorIs(t, err, shared.ErrConflict, "key stays claimed after an unknown outcome")

			rec := NewReconciler(f.store, nil)
			result, err := rec.Sweep(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, result.Checked)
			require.Len(t, f.store.markers, 1)
			assert.Equal(t, tc.resolution, f.store.markers[0].Resolution)
			assert.NotNil(t, f.store.markers[0].ResolvedAt)

			result, err = rec.Sweep(context.Background())
			require.NoError(t, err)
			assert.Zero(t, result.Checked)
		})
	}
}

func TestCancelCommitFailureIsReconciled(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	f.store.commitMode = commitLost
	_, err = f.svc.CancelInvoice(context.Background(), inv.ID, "", 7)
	var pce *shared.PartialCommitError
	require.True(t, errors.As(err, &pce))
	assert.Equal(t, StageCancel, pce.Stage)
	f.store.commitMode = commitOK

	result, err := NewReconciler(f.store, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RolledBack)
	assert.Equal(t, int64(9), f.store.stockOf(1))
}

func TestSweepDoesNotTrustReusedNumber(t *testing.T) {
	f := newFixture(t)
	f.store.commitMode = commitLost
	_, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	var pce *shared.PartialCommitError
	require.True(t, errors.As(err, &pce))
	assert.Equal(t, "INV-2026-000001", pce.InvoiceNumber)
	require.Len(t, f.store.markers, 1)
	assert.NotEqual(t, uuid.Nil, f.store.markers[0].AttemptID)

	f.store.commitMode = commitOK
	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	require.Equal(t, "INV-2026-000001", inv.Number, "rolled back number is reused")
	assert.NotEqual(t, f.store.markers[0].AttemptID, inv.AttemptID)

	result, err := NewReconciler(f.store, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RolledBack)
	assert.Zero(t, result.Committed)
	assert.Equal(t, ResolutionRolledBack, f.store.markers[0].Resolution)
	assert.Equal(t, int64(9), f.store.stockOf(1))
}

func TestDeadlockIsReportedAsConflict(t *testing.T) {
	f := newFixture(t)
	f.store.abortErr = fmt.Errorf("insert invoice: %w", &pgconn.PgError{Code: "40P01"})

	_, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.Error(t, err)
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))
	assert.False(t, errors.Is(err, shared.ErrPartialCommit))
	assert.Zero(t, f.store.invoiceCount())
	assert.Equal(t, int64(10), f.store.stockOf(1))
	assert.Empty(t, f.store.markers)

	inv, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	f.store.abortErr = &pgconn.PgError{Code: "40001"}
	_, err = f.svc.CancelInvoice(context.Background(), inv.ID, "", 7)
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))
	assert.Equal(t, int64(9), f.store.stockOf(1))
}

func TestConcurrentCreatesAllocateDistinctNumbers(t *testing.T) {
	store := newMemoryStore()
	const workers = 12
	for i := 1; i <= workers; i++ {
		store.addProduct(int64(i), "50", "5", 3)
	}
	svc := NewService(store, ServiceConfig{Location: time.UTC, NumberAttempts: workers + 1}, Dependencies{}).
		WithNow(func() time.Time { return testNow })

	var wg sync.WaitGroup
	numbers := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: int64(i + 1), Quantity: 1}))
			numbers[i], errs[i] = inv.Number, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "duplicate number %s", numbers[i])
		seen[numbers[i]] = true
	}
	for i := 1; i <= workers; i++ {
		assert.True(t, seen[fmt.Sprintf("INV-2026-%06d", i)])
	}
	day, _ := store.tallyOf(testToday)
	assert.Len(t, day.InvoiceIDs, workers)
	assert.Equal(t, "630.00", day.SalesTotal.StringFixed(2))
}

func TestConcurrentCreatesSellLastUnitOnce(t *testing.T) {
	store := newMemoryStore()
	store.addProduct(1, "100", "18", 1)
	svc := NewService(store, ServiceConfig{Location: time.UTC, NumberAttempts: 10}, Dependencies{}).
		WithNow(func() time.Time { return testNow })

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shared.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, rejected)
	assert.Equal(t, int64(0), store.stockOf(1))
	assert.Len(t, store.movementsFor(1), 1)
}

func TestSaleNotifiesStockChanges(t *testing.T) {
	f := newFixture(t)
	f.store.addProduct(3, "40", "5", 25)
	_, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 3, Quantity: 6}))
	require.NoError(t, err)

	require.Len(t, f.notifier.calls, 1)
	call := f.notifier.calls[0]
	assert.Equal(t, int64(25), call.previous)
	assert.Equal(t, int64(19), call.ledger.CurrentStock)
	_, ok := inventory.LowStockEventFor(call.previous, call.ledger, testNow)
	assert.True(t, ok, "sale crossed the reorder level")

	_, err = f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 3, Quantity: 1}))
	require.NoError(t, err)
	require.Len(t, f.notifier.calls, 2)
	_, ok = inventory.LowStockEventFor(f.notifier.calls[1].previous, f.notifier.calls[1].ledger, testNow)
	assert.False(t, ok)
}

func TestListInvoicesFiltersAndValidates(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.CreateInvoice(context.Background(), saleInput(LineInput{ProductID: 2, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.CancelInvoice(context.Background(), first.ID, "", 7)
	require.NoError(t, err)

	_, _, err = f.svc.ListInvoices(context.Background(), ListFilter{SortBy: "customer"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, _, err = f.svc.ListInvoices(context.Background(), ListFilter{Status: "void"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	invoices, page, err := f.svc.ListInvoices(context.Background(), ListFilter{Status: StatusCancelled, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, first.ID, invoices[0].ID)
	assert.Equal(t, 1, page.Total)
}
