package service

import (
	"context"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/aggregation"
	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var reportTracer = otel.Tracer("service/reporting")

const (
	// DefaultTrendMonths is the trend length used when the caller omits it.
	DefaultTrendMonths = 6
	// MaxTrendMonths bounds the trend length a caller may ask for.
	MaxTrendMonths = 60

	recentTransactionCount = 5
)

// ReportingService answers the read-only report queries. Every method is a
// pure function of the store contents and its explicit arguments; the
// clock is never read here.
type ReportingService struct {
	transactions port.TransactionStore
	budgets      port.BudgetStore
	trendMonths  int
	timeout      time.Duration
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewReportingService creates the reporting service. trendMonths <= 0 falls
// back to DefaultTrendMonths; timeout <= 0 leaves the caller's deadline alone.
func NewReportingService(
	transactions port.TransactionStore,
	budgets port.BudgetStore,
	trendMonths int,
	timeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReportingService {
	if trendMonths <= 0 {
		trendMonths = DefaultTrendMonths
	}
	return &ReportingService{
		transactions: transactions,
		budgets:      budgets,
		trendMonths:  trendMonths,
		timeout:      timeout,
		metrics:      metrics,
		logger:       logger,
	}
}

func (s *ReportingService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *ReportingService) observe(operation string, start time.Time) {
	s.metrics.RecordRequestDuration(operation, time.Since(start))
}

func requireUser(userID string) error {
	if userID == "" {
		return &domain.ErrValidation{Field: "userId", Message: "required"}
	}
	return nil
}

// find wraps TransactionStore.Find with logging and error translation.
// parent is the request context, used to tell cancellation from failure.
// When only ctx is done a sibling read already failed; that failure is the
// one reported, so nothing is logged or counted here.
func (s *ReportingService) find(parent, ctx context.Context, operation, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	txns, err := s.transactions.Find(ctx, userID, filter)
	if err != nil {
		if cerr := contextError(parent, operation); cerr != nil {
			return nil, cerr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("transaction store read failed",
			zap.String("operation", operation),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrStoreError("transactions")
		return nil, wrapStoreError(parent, operation, err)
	}
	return txns, nil
}

func (s *ReportingService) sum(parent, ctx context.Context, operation, userID string, filter domain.TransactionFilter) (decimal.Decimal, error) {
	total, err := s.transactions.Sum(ctx, userID, filter)
	if err != nil {
		if cerr := contextError(parent, operation); cerr != nil {
			return decimal.Zero, cerr
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		s.logger.Error("transaction store sum failed",
			zap.String("operation", operation),
			zap.String("user_id", userID),
			zap.String("type", string(filter.Type)),
			zap.Error(err),
		)
		s.metrics.IncrStoreError("transactions")
		return decimal.Zero, wrapStoreError(parent, operation, err)
	}
	return total, nil
}

// DashboardSummary returns all-time totals, the totals of now's month and
// the most recent transactions. The five store reads run concurrently.
func (s *ReportingService) DashboardSummary(ctx context.Context, userID string, now time.Time) (*domain.DashboardSummary, error) {
	const op = "dashboard"
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := contextError(ctx, op); err != nil {
		return nil, err
	}

	ctx, span := reportTracer.Start(ctx, "ReportingService.DashboardSummary")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))
	defer s.observe(op, time.Now())

	today := domain.DateOf(now)
	month, err := domain.MonthlyWindow(int(today.Month()), today.Year())
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		totalIncome, totalExpenses     decimal.Decimal
		monthlyIncome, monthlyExpenses decimal.Decimal
		recent                         []domain.Transaction
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		totalIncome, err = s.sum(ctx, gCtx, op, userID, domain.TransactionFilter{Type: domain.TransactionIncome})
		return err
	})
	g.Go(func() (err error) {
		totalExpenses, err = s.sum(ctx, gCtx, op, userID, domain.TransactionFilter{Type: domain.TransactionExpense})
		return err
	})
	g.Go(func() (err error) {
		monthlyIncome, err = s.sum(ctx, gCtx, op, userID, domain.TransactionFilter{Type: domain.TransactionIncome, Window: &month})
		return err
	})
	g.Go(func() (err error) {
		monthlyExpenses, err = s.sum(ctx, gCtx, op, userID, domain.TransactionFilter{Type: domain.TransactionExpense, Window: &month})
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.find(ctx, gCtx, op, userID, domain.TransactionFilter{Limit: recentTransactionCount})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := contextError(ctx, op); err != nil {
		return nil, err
	}

	return &domain.DashboardSummary{
		NetBalance:         totalIncome.Sub(totalExpenses),
		TotalIncome:        totalIncome,
		TotalExpenses:      totalExpenses,
		MonthlyIncome:      monthlyIncome,
		MonthlyExpenses:    monthlyExpenses,
		RecentTransactions: aggregation.Recent(recent, recentTransactionCount),
	}, nil
}

// CategoryBreakdown returns expense totals per category for one month.
func (s *ReportingService) CategoryBreakdown(ctx context.Context, userID string, month, year int) (*domain.CategoryBreakdown, error) {
	const op = "category_breakdown"
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	window, err := domain.MonthlyWindow(month, year)
	if err != nil {
		return nil, err
	}
	if err := contextError(ctx, op); err != nil {
		return nil, err
	}

	ctx, span := reportTracer.Start(ctx, "ReportingService.CategoryBreakdown")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("report.month", month),
		attribute.Int("report.year", year),
	)
	defer s.observe(op, time.Now())

	bounded, cancel := s.bound(ctx)
	defer cancel()

	txns, err := s.find(bounded, bounded, op, userID, domain.TransactionFilter{Type: domain.TransactionExpense, Window: &window})
	if err != nil {
		return nil, err
	}

	spending, err := aggregation.GroupByCategory(txns, domain.TransactionExpense, window)
	if err != nil {
		return nil, err
	}
	return &domain.CategoryBreakdown{CategorySpending: spending}, nil
}

// MonthlyTrends returns monthCount monthly points ending at now's month.
// monthCount 0 selects the configured default.
func (s *ReportingService) MonthlyTrends(ctx context.Context, userID string, monthCount int, now time.Time) (*domain.MonthlyTrends, error) {
	const op = "monthly_trends"
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if monthCount == 0 {
		monthCount = s.trendMonths
	}
	if monthCount > MaxTrendMonths {
		return nil, &domain.ErrValidation{Field: "months", Message: "must not exceed 60"}
	}

	anchor := domain.DateOf(now)
	window, err := aggregation.TrendWindow(monthCount, anchor)
	if err != nil {
		return nil, err
	}
	if err := contextError(ctx, op); err != nil {
		return nil, err
	}

	ctx, span := reportTracer.Start(ctx, "ReportingService.MonthlyTrends")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("report.months", monthCount))
	defer s.observe(op, time.Now())

	bounded, cancel := s.bound(ctx)
	defer cancel()

	txns, err := s.find(bounded, bounded, op, userID, domain.TransactionFilter{Window: &window})
	if err != nil {
		return nil, err
	}

	points, err := aggregation.TrendSeries(txns, monthCount, anchor)
	if err != nil {
		return nil, err
	}
	return &domain.MonthlyTrends{Trends: points}, nil
}

// CalendarView returns per-day income and expense totals for one month.
func (s *ReportingService) CalendarView(ctx context.Context, userID string, month, year int) (*domain.CalendarView, error) {
	const op = "calendar"
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	window, err := domain.MonthlyWindow(month, year)
	if err != nil {
		return nil, err
	}
	if err := contextError(ctx, op); err != nil {
		return nil, err
	}

	ctx, span := reportTracer.Start(ctx, "ReportingService.CalendarView")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("report.month", month),
		attribute.Int("report.year", year),
	)
	defer s.observe(op, time.Now())

	bounded, cancel := s.bound(ctx)
	defer cancel()

	txns, err := s.find(bounded, bounded, op, userID, domain.TransactionFilter{Window: &window})
	if err != nil {
		return nil, err
	}

	days, err := aggregation.CalendarAggregate(txns, month, year)
	if err != nil {
		return nil, err
	}
	return &domain.CalendarView{CalendarData: days}, nil
}

// BudgetsWithStatus loads the user's budgets for a month and attaches the
// actual spend to each one.
func (s *ReportingService) BudgetsWithStatus(ctx context.Context, userID string, month, year int) ([]domain.BudgetStatus, error) {
	const op = "budget_status"
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	window, err := domain.MonthlyWindow(month, year)
	if err != nil {
		return nil, err
	}
	if err := contextError(ctx, op); err != nil {
		return nil, err
	}

	ctx, span := reportTracer.Start(ctx, "ReportingService.BudgetsWithStatus")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))
	defer s.observe(op, time.Now())

	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		budgets []domain.Budget
		txns    []domain.Transaction
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b, err := s.budgets.Find(gCtx, userID, domain.BudgetFilter{Month: month, Year: year})
		if err != nil {
			if cerr := contextError(ctx, op); cerr != nil {
				return cerr
			}
			s.logger.Error("budget store read failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			s.metrics.IncrStoreError("budgets")
			return wrapStoreError(ctx, op, err)
		}
		budgets = b
		return nil
	})
	g.Go(func() (err error) {
		txns, err = s.find(ctx, gCtx, op, userID, domain.TransactionFilter{Type: domain.TransactionExpense, Window: &window})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := contextError(ctx, op); err != nil {
		return nil, err
	}

	statuses, err := aggregation.AttachSpending(budgets, txns)
	if err != nil {
		s.logger.Error("budget status computation failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordBudgetStatuses(statuses)
	return statuses, nil
}
