package service_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/memory"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

// --- Mocks ---

// brokenStore fails every read with err.
type brokenStore struct {
	*memory.Store
	err error
}

func (b *brokenStore) Find(context.Context, string, domain.TransactionFilter) ([]domain.Transaction, error) {
	return nil, b.err
}

func (b *brokenStore) Sum(context.Context, string, domain.TransactionFilter) (decimal.Decimal, error) {
	return decimal.Zero, b.err
}

// stallingStore blocks every read until ctx is done.
type stallingStore struct {
	*memory.Store
}

func (s *stallingStore) Find(ctx context.Context, _ string, _ domain.TransactionFilter) ([]domain.Transaction, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stallingStore) Sum(ctx context.Context, _ string, _ domain.TransactionFilter) (decimal.Decimal, error) {
	<-ctx.Done()
	return decimal.Zero, ctx.Err()
}

// failingFindStore fails Find at once and leaves Sum waiting on ctx, so the
// sums only end when the errgroup cancels them.
type failingFindStore struct {
	*memory.Store
	err error
}

func (f *failingFindStore) Find(context.Context, string, domain.TransactionFilter) ([]domain.Transaction, error) {
	return nil, f.err
}

func (f *failingFindStore) Sum(ctx context.Context, _ string, _ domain.TransactionFilter) (decimal.Decimal, error) {
	<-ctx.Done()
	return decimal.Zero, ctx.Err()
}

// --- Helpers ---

func seed(t *testing.T, store *memory.Store, user, amount string, typ domain.TransactionType, category, date string) *domain.Transaction {
	t.Helper()
	d, err := domain.ParseDate(date)
	require.NoError(t, err)
	created, err := store.Create(context.Background(), &domain.Transaction{
		UserID:   user,
		Amount:   decimal.RequireFromString(amount),
		Type:     typ,
		Category: category,
		Date:     d,
	})
	require.NoError(t, err)
	return created
}

func newReporting(store *memory.Store, timeout time.Duration) *service.ReportingService {
	return service.NewReportingService(store, store.Budgets(), 0, timeout, observability.NewMetrics(), zap.NewNop())
}

// --- Tests ---

func TestDashboardSummary(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "u1", "3000", domain.TransactionIncome, "Salary", "2024-03-01")
	seed(t, store, "u1", "2000", domain.TransactionIncome, "Salary", "2024-02-01")
	seed(t, store, "u1", "0.10", domain.TransactionExpense, "Food", "2024-03-31")
	seed(t, store, "u1", "0.20", domain.TransactionExpense, "Food", "2024-03-02")
	seed(t, store, "u1", "500", domain.TransactionExpense, "Rent", "2024-02-28")
	seed(t, store, "u1", "1", domain.TransactionExpense, "Food", "2024-01-10")
	seed(t, store, "u2", "999", domain.TransactionIncome, "Salary", "2024-03-01")

	summary, err := newReporting(store, time.Second).DashboardSummary(context.Background(), "u1", now)
	require.NoError(t, err)

	assert.Equal(t, "5000", summary.TotalIncome.String())
	assert.Equal(t, "501.3", summary.TotalExpenses.String())
	assert.Equal(t, "4498.7", summary.NetBalance.String())
	assert.Equal(t, "3000", summary.MonthlyIncome.String())
	assert.Equal(t, "0.3", summary.MonthlyExpenses.String())

	require.Len(t, summary.RecentTransactions, 5)
	assert.Equal(t, "2024-03-31", summary.RecentTransactions[0].Date.String())
	assert.Equal(t, "2024-02-01", summary.RecentTransactions[4].Date.String())
}

func TestDashboardSummary_EmptyUserIsZero(t *testing.T) {
	summary, err := newReporting(memory.NewStore(), 0).DashboardSummary(context.Background(), "nobody", now)
	require.NoError(t, err)
	assert.True(t, summary.NetBalance.IsZero())
	assert.Empty(t, summary.RecentTransactions)
}

func TestDashboardSummary_RequiresUser(t *testing.T) {
	_, err := newReporting(memory.NewStore(), 0).DashboardSummary(context.Background(), "", now)
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)
}

func TestDashboardSummary_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newReporting(memory.NewStore(), time.Second).DashboardSummary(ctx, "u1", now)
	var ce *domain.ErrCancelled
	assert.ErrorAs(t, err, &ce)
}

func TestDashboardSummary_Timeout(t *testing.T) {
	store := &stallingStore{Store: memory.NewStore()}
	svc := service.NewReportingService(store, store.Budgets(), 0, 20*time.Millisecond, observability.NewMetrics(), zap.NewNop())

	start := time.Now()
	_, err := svc.DashboardSummary(context.Background(), "u1", now)

	var te *domain.ErrTimeout
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dashboard", te.Operation)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDashboardSummary_StoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	store := &brokenStore{Store: memory.NewStore(), err: boom}
	svc := service.NewReportingService(store, store.Budgets(), 0, time.Second, observability.NewMetrics(), zap.NewNop())

	_, err := svc.DashboardSummary(context.Background(), "u1", now)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var ce *domain.ErrCancelled
	assert.False(t, errors.As(err, &ce))
}

func TestDashboardSummary_SingleFailureCountedOnce(t *testing.T) {
	boom := errors.New("connection reset")
	store := &failingFindStore{Store: memory.NewStore(), err: boom}
	metrics := observability.NewMetrics()
	svc := service.NewReportingService(store, store.Budgets(), 0, time.Second, metrics, zap.NewNop())

	_, err := svc.DashboardSummary(context.Background(), "u1", now)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, metrics.Snapshot().StoreErrors)
}

func TestDashboardSummary_TiedTimestampsOrderIsStable(t *testing.T) {
	store := memory.NewStore()
	fixed := now.Add(-time.Hour)
	store.SetClock(func() time.Time { return fixed })

	ids := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		ids = append(ids, seed(t, store, "u1", "10", domain.TransactionExpense, "Food", "2024-03-10").ID)
	}
	slices.Sort(ids)
	slices.Reverse(ids)

	svc := newReporting(store, time.Second)
	for i := 0; i < 20; i++ {
		summary, err := svc.DashboardSummary(context.Background(), "u1", now)
		require.NoError(t, err)
		require.Len(t, summary.RecentTransactions, 5)
		got := make([]string, 0, 5)
		for _, txn := range summary.RecentTransactions {
			got = append(got, txn.ID)
		}
		assert.Equal(t, ids[:5], got)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "u1", "20", domain.TransactionExpense, "B", "2024-02-01")
	seed(t, store, "u1", "15", domain.TransactionExpense, "A", "2024-02-29")
	seed(t, store, "u1", "5", domain.TransactionExpense, "A", "2024-02-10")
	seed(t, store, "u1", "100", domain.TransactionIncome, "Salary", "2024-02-10")
	seed(t, store, "u1", "50", domain.TransactionExpense, "C", "2024-03-01")

	out, err := newReporting(store, 0).CategoryBreakdown(context.Background(), "u1", 2, 2024)
	require.NoError(t, err)

	require.Len(t, out.CategorySpending, 2)
	assert.Equal(t, "A", out.CategorySpending[0].Category)
	assert.Equal(t, "20", out.CategorySpending[0].Total.String())
	assert.Equal(t, "B", out.CategorySpending[1].Category)
}

func TestCategoryBreakdown_InvalidMonth(t *testing.T) {
	_, err := newReporting(memory.NewStore(), 0).CategoryBreakdown(context.Background(), "u1", 13, 2024)
	var ve *domain.ErrValidation
	assert.ErrorAs(t, err, &ve)
}

func TestMonthlyTrends_DefaultLength(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "u1", "100", domain.TransactionIncome, "Salary", "2023-10-05")
	seed(t, store, "u1", "40", domain.TransactionExpense, "Food", "2024-03-15")
	seed(t, store, "u1", "10", domain.TransactionExpense, "Food", "2023-09-30")

	out, err := newReporting(store, 0).MonthlyTrends(context.Background(), "u1", 0, now)
	require.NoError(t, err)

	require.Len(t, out.Trends, 6)
	assert.Equal(t, "Oct 2023", out.Trends[0].Month)
	assert.Equal(t, "2023-10", out.Trends[0].Period)
	assert.Equal(t, "100", out.Trends[0].Net.String())
	assert.Equal(t, "Mar 2024", out.Trends[5].Month)
	assert.Equal(t, "-40", out.Trends[5].Net.String())
}

func TestMonthlyTrends_Bounds(t *testing.T) {
	svc := newReporting(memory.NewStore(), 0)
	var ve *domain.ErrValidation

	_, err := svc.MonthlyTrends(context.Background(), "u1", 61, now)
	assert.ErrorAs(t, err, &ve)

	_, err = svc.MonthlyTrends(context.Background(), "u1", -1, now)
	assert.ErrorAs(t, err, &ve)
}

func TestCalendarView(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "u1", "10.50", domain.TransactionExpense, "Food", "2024-02-29")
	seed(t, store, "u1", "4.50", domain.TransactionExpense, "Food", "2024-02-29")
	seed(t, store, "u1", "30", domain.TransactionIncome, "Gift", "2024-02-29")
	seed(t, store, "u1", "1", domain.TransactionExpense, "Food", "2024-03-01")

	out, err := newReporting(store, 0).CalendarView(context.Background(), "u1", 2, 2024)
	require.NoError(t, err)

	require.Len(t, out.CalendarData, 1)
	day := out.CalendarData["2024-02-29"]
	assert.Equal(t, "15", day.Expenses.String())
	assert.Equal(t, "30", day.Income.String())
}

func TestBudgetsWithStatus(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, b := range []domain.Budget{
		{UserID: "u1", Category: "Food", Amount: decimal.NewFromInt(100), Month: 3, Year: 2024},
		{UserID: "u1", Category: "Travel", Amount: decimal.NewFromInt(200), Month: 3, Year: 2024},
		{UserID: "u1", Category: "Food", Amount: decimal.NewFromInt(100), Month: 4, Year: 2024},
	} {
		_, err := store.Budgets().Create(ctx, &b)
		require.NoError(t, err)
	}
	seed(t, store, "u1", "85", domain.TransactionExpense, "Food", "2024-03-03")
	seed(t, store, "u1", "50", domain.TransactionIncome, "Food", "2024-03-03")

	statuses, err := newReporting(store, 0).BudgetsWithStatus(ctx, "u1", 3, 2024)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	food := statuses[0]
	assert.Equal(t, "Food", food.Category)
	assert.Equal(t, "85", food.Spent.String())
	assert.Equal(t, "15", food.Remaining.String())
	assert.Equal(t, int64(85), food.PercentUsed)
	assert.Equal(t, domain.BudgetWarning, food.Status)

	travel := statuses[1]
	assert.True(t, travel.Spent.IsZero())
	assert.Equal(t, domain.BudgetGood, travel.Status)
}
