package tally

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTally(ctx context.Context, day time.Time) (DailyTally, bool, error)
}

// Service manages the daily sales and expense rollup.
type Service struct {
	repo   RepositoryPort
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. Days are resolved in loc.
func NewService(repo RepositoryPort, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, loc: loc, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Today returns the current business day.
func (s *Service) Today() time.Time {
	return DayOf(s.now(), s.loc)
}

// Get returns the tally of day, or an unsaved empty tally when nothing was recorded.
func (s *Service) Get(ctx context.Context, day time.Time) (DailyTally, error) {
	t, ok, err := s.repo.GetTally(ctx, day)
	if err != nil {
		return DailyTally{}, err
	}
	if !ok {
		return New(day), nil
	}
	return t, nil
}

// AddExpense records an expense, creating the day's tally when needed.
func (s *Service) AddExpense(ctx context.Context, input ExpenseInput) (DailyTally, error) {
	day, err := s.resolveDay(input.Date)
	if err != nil {
		return DailyTally{}, err
	}
	expense, err := s.buildExpense(input)
	if err != nil {
		return DailyTally{}, err
	}
	var saved DailyTally
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.LockTally(ctx, day)
		if err != nil {
			return err
		}
		if t.Closed {
			return ClosedError(day)
		}
		stored, err := tx.InsertExpense(ctx, t.ID, expense)
		if err != nil {
			return err
		}
		if err := t.AddExpense(stored); err != nil {
			return err
		}
		saved, err = tx.SaveTally(ctx, t)
		return err
	})
	if err != nil {
		return DailyTally{}, err
	}
	s.logger.Info("tally expense recorded",
		slog.String("date", day.Format(DateLayout)),
		slog.String("amount", expense.Amount.StringFixed(2)),
		slog.String("category", string(expense.Category)))
	return saved, nil
}

// Close seals the tally of a day. Closing a day with no activity is NotFound.
func (s *Service) Close(ctx context.Context, input CloseInput) (DailyTally, error) {
	day, err := s.resolveDay(input.Date)
	if err != nil {
		return DailyTally{}, err
	}
	var saved DailyTally
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, ok, err := tx.FindTallyForUpdate(ctx, day)
		if err != nil {
			return err
		}
		if !ok {
			return shared.NotFound("daily_tally", day.Format(DateLayout), nil)
		}
		if err := t.Close(input.ActorID, strings.TrimSpace(input.Remarks), s.now().UTC()); err != nil {
			return err
		}
		saved, err = tx.SaveTally(ctx, t)
		return err
	})
	if err != nil {
		return DailyTally{}, err
	}
	s.logger.Info("tally closed",
		slog.String("date", day.Format(DateLayout)),
		slog.String("net", saved.NetAmount.StringFixed(2)),
		slog.Int64("closed_by", input.ActorID))
	return saved, nil
}

func (s *Service) resolveDay(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.Today(), nil
	}
	return ParseDay(raw)
}

func (s *Service) buildExpense(input ExpenseInput) (Expense, error) {
	if strings.TrimSpace(input.Description) == "" {
		return Expense{}, shared.Validation("description", "required")
	}
	amount := input.Amount.Round(2)
	if !amount.GreaterThan(decimal.Zero) {
		return Expense{}, shared.Validation("amount", "must be at least 0.01")
	}
	if !input.Category.Valid() {
		return Expense{}, shared.Validation("category", "unknown expense category")
	}
	method := input.PaymentMethod
	if method == "" {
		method = shared.PaymentCash
	}
	if !method.Valid() {
		return Expense{}, shared.Validation("paymentMethod", "unknown payment method")
	}
	return Expense{
		Description:   strings.TrimSpace(input.Description),
		Amount:        amount,
		Category:      input.Category,
		PaymentMethod: method,
		RecordedBy:    input.ActorID,
		RecordedAt:    s.now().UTC(),
	}, nil
}
