package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/sqlite"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "data", "tracker.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *sqlite.Store, userID, amount string, typ domain.TransactionType, category, date string) *domain.Transaction {
	t.Helper()
	d, err := domain.ParseDate(date)
	require.NoError(t, err)
	created, err := store.Create(context.Background(), &domain.Transaction{
		UserID:   userID,
		Amount:   decimal.RequireFromString(amount),
		Type:     typ,
		Category: category,
		Date:     d,
	})
	require.NoError(t, err)
	return created
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	require.NoError(t, sqlite.Migrate(path))
	require.NoError(t, sqlite.Migrate(path))
}

func TestStore_FindFiltersAndOrders(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	seed(t, store, "u1", "10", domain.TransactionExpense, "Food", "2024-02-28")
	seed(t, store, "u1", "20", domain.TransactionExpense, "Food", "2024-02-29")
	seed(t, store, "u1", "30", domain.TransactionExpense, "Food", "2024-03-01")
	seed(t, store, "u1", "500", domain.TransactionIncome, "Salary", "2024-02-15")
	seed(t, store, "u2", "99", domain.TransactionExpense, "Food", "2024-02-20")

	feb, err := domain.MonthlyWindow(2, 2024)
	require.NoError(t, err)

	got, err := store.Find(ctx, "u1", domain.TransactionFilter{Type: domain.TransactionExpense, Window: &feb})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-02-29", got[0].Date.String())
	assert.Equal(t, "2024-02-28", got[1].Date.String())

	n, err := store.Count(ctx, "u1", domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	page, err := store.Find(ctx, "u1", domain.TransactionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "2024-02-28", page[0].Date.String())
	assert.Equal(t, "2024-02-15", page[1].Date.String())
}

func TestStore_OneSidedWindow(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	seed(t, store, "u1", "10", domain.TransactionExpense, "Food", "2024-02-28")
	seed(t, store, "u1", "20", domain.TransactionExpense, "Food", "2024-03-01")
	seed(t, store, "u1", "30", domain.TransactionExpense, "Food", "2024-03-20")

	since := domain.DateRange{From: domain.NewDate(2024, 3, 1)}
	got, err := store.Find(ctx, "u1", domain.TransactionFilter{Window: &since})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-20", got[0].Date.String())

	until := domain.DateRange{To: domain.NewDate(2024, 3, 1)}
	n, err := store.Count(ctx, "u1", domain.TransactionFilter{Window: &until})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_SumIsExact(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		seed(t, store, "u1", "0.10", domain.TransactionExpense, "Food", "2024-01-05")
	}
	seed(t, store, "u1", "1000.01", domain.TransactionIncome, "Salary", "2024-01-01")

	expenses, err := store.Sum(ctx, "u1", domain.TransactionFilter{Type: domain.TransactionExpense})
	require.NoError(t, err)
	assert.Equal(t, "1", expenses.String())

	none, err := store.Sum(ctx, "nobody", domain.TransactionFilter{Type: domain.TransactionIncome})
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestStore_TransactionLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	created := seed(t, store, "u1", "42.50", domain.TransactionExpense, "Fuel", "2024-03-10")
	assert.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("42.5").Equal(got.Amount))
	assert.Equal(t, created.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())

	_, err = store.Get(ctx, "u2", created.ID)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf, "other users cannot read the record")

	got.Category = "Transportation"
	got.AutoCategorized = true
	updated, err := store.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Transportation", updated.Category)
	assert.True(t, updated.AutoCategorized)

	pending, err := store.Find(ctx, "u1", domain.TransactionFilter{Uncategorized: true})
	require.NoError(t, err)
	assert.Empty(t, pending)

	cats, err := store.Categories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Transportation"}, cats)

	require.NoError(t, store.Delete(ctx, "u1", created.ID))
	assert.ErrorAs(t, store.Delete(ctx, "u1", created.ID), &nf)
}

func TestBudgetStore_DuplicateRejected(t *testing.T) {
	budgets := openStore(t).Budgets()
	ctx := context.Background()

	b := &domain.Budget{
		UserID:   "u1",
		Category: "Food",
		Amount:   decimal.RequireFromString("120"),
		Month:    3,
		Year:     2024,
	}
	created, err := budgets.Create(ctx, b)
	require.NoError(t, err)

	_, err = budgets.Create(ctx, b)
	var dup *domain.ErrDuplicate
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "u1/Food/2024-03", dup.Key)

	other := *b
	other.Month = 4
	_, err = budgets.Create(ctx, &other)
	require.NoError(t, err)

	listed, err := budgets.Find(ctx, "u1", domain.BudgetFilter{Month: 3, Year: 2024})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	created.Amount = decimal.RequireFromString("150")
	updated, err := budgets.Update(ctx, created)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("150").Equal(updated.Amount))

	require.NoError(t, budgets.Delete(ctx, "u1", created.ID))
	var nf *domain.ErrNotFound
	_, err = budgets.Get(ctx, "u1", created.ID)
	assert.ErrorAs(t, err, &nf)
}

func TestStore_Subscription(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	sub, err := store.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sub)

	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.PutSubscription(ctx, domain.Subscription{
		UserID:             "u1",
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: end.AddDate(0, -1, 0),
		CurrentPeriodEnd:   end,
	}))

	sub, err = store.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.True(t, sub.IsPremium(end.Add(-time.Hour)))
	assert.False(t, sub.IsPremium(end))
}

func TestStore_CancelledContext(t *testing.T) {
	store := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Find(ctx, "u1", domain.TransactionFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var ext *domain.ErrExternalService
	assert.False(t, errors.As(err, &ext), "context errors pass through unwrapped")
}
