package memory_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/memory"
	"github.com/financetracker/finance-tracker-go/internal/port"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ port.TransactionStore  = (*memory.Store)(nil)
	_ port.BudgetStore       = (*memory.BudgetStore)(nil)
	_ port.SubscriptionStore = (*memory.Store)(nil)
)

func mustCreate(t *testing.T, s *memory.Store, amount string, typ domain.TransactionType, category, date string) *domain.Transaction {
	t.Helper()
	d, err := domain.ParseDate(date)
	require.NoError(t, err)
	created, err := s.Create(context.Background(), &domain.Transaction{
		UserID: "u1", Amount: decimal.RequireFromString(amount), Type: typ, Category: category, Date: d,
	})
	require.NoError(t, err)
	return created
}

func TestStore_FindOrdersByDateThenCreation(t *testing.T) {
	s := memory.NewStore()
	tick := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	first := mustCreate(t, s, "1", domain.TransactionExpense, "Food", "2024-03-05")
	second := mustCreate(t, s, "2", domain.TransactionExpense, "Food", "2024-03-05")
	older := mustCreate(t, s, "3", domain.TransactionExpense, "Food", "2024-03-01")

	got, err := s.Find(context.Background(), "u1", domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{second.ID, first.ID, older.ID}, []string{got[0].ID, got[1].ID, got[2].ID})

	paged, err := s.Find(context.Background(), "u1", domain.TransactionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, first.ID, paged[0].ID)
}

func TestStore_FindTiesBrokenByID(t *testing.T) {
	s := memory.NewStore()
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	var want []string
	for i := 0; i < 6; i++ {
		want = append(want, mustCreate(t, s, "1", domain.TransactionExpense, "Food", "2024-03-05").ID)
	}
	slices.Sort(want)
	slices.Reverse(want)

	for i := 0; i < 10; i++ {
		got, err := s.Find(context.Background(), "u1", domain.TransactionFilter{})
		require.NoError(t, err)
		ids := make([]string, 0, len(got))
		for _, txn := range got {
			ids = append(ids, txn.ID)
		}
		assert.Equal(t, want, ids)
	}
}

func TestStore_OneSidedWindow(t *testing.T) {
	s := memory.NewStore()
	mustCreate(t, s, "1", domain.TransactionExpense, "Food", "2024-02-28")
	mustCreate(t, s, "2", domain.TransactionExpense, "Food", "2024-03-01")
	mustCreate(t, s, "3", domain.TransactionExpense, "Food", "2024-03-20")

	since := domain.DateRange{From: domain.NewDate(2024, 3, 1)}
	got, err := s.Find(context.Background(), "u1", domain.TransactionFilter{Window: &since})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	until := domain.DateRange{To: domain.NewDate(2024, 3, 1)}
	total, err := s.Sum(context.Background(), "u1", domain.TransactionFilter{Window: &until})
	require.NoError(t, err)
	assert.Equal(t, "3", total.String())
}

func TestStore_SumAndCountRespectFilter(t *testing.T) {
	s := memory.NewStore()
	mustCreate(t, s, "0.1", domain.TransactionExpense, "Food", "2024-02-29")
	mustCreate(t, s, "0.2", domain.TransactionExpense, "Food", "2024-02-01")
	mustCreate(t, s, "9", domain.TransactionExpense, "Food", "2024-03-01")
	mustCreate(t, s, "100", domain.TransactionIncome, "Salary", "2024-02-10")

	feb, err := domain.MonthlyWindow(2, 2024)
	require.NoError(t, err)
	filter := domain.TransactionFilter{Type: domain.TransactionExpense, Window: &feb}

	sum, err := s.Sum(context.Background(), "u1", filter)
	require.NoError(t, err)
	assert.Equal(t, "0.3", sum.String())

	n, err := s.Count(context.Background(), "u1", filter)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	other, err := s.Sum(context.Background(), "u2", domain.TransactionFilter{})
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}

func TestStore_UpdateAndDeleteScopedToOwner(t *testing.T) {
	s := memory.NewStore()
	created := mustCreate(t, s, "5", domain.TransactionExpense, "Food", "2024-02-01")

	foreign := *created
	foreign.UserID = "u2"
	_, err := s.Update(context.Background(), &foreign)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, s.Delete(context.Background(), "u2", created.ID), &nf)

	require.NoError(t, s.Delete(context.Background(), "u1", created.ID))
	_, err = s.Get(context.Background(), "u1", created.ID)
	assert.ErrorAs(t, err, &nf)
}

func TestBudgetStore_UniqueKey(t *testing.T) {
	budgets := memory.NewStore().Budgets()
	ctx := context.Background()
	b := &domain.Budget{UserID: "u1", Category: "Food", Amount: decimal.NewFromInt(120), Month: 3, Year: 2024}

	created, err := budgets.Create(ctx, b)
	require.NoError(t, err)

	_, err = budgets.Create(ctx, b)
	var dup *domain.ErrDuplicate
	assert.ErrorAs(t, err, &dup)

	created.Amount = decimal.NewFromInt(200)
	updated, err := budgets.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "200", updated.Amount.String())
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestStore_CancelledContext(t *testing.T) {
	s := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Find(ctx, "u1", domain.TransactionFilter{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.GetSubscription(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}
