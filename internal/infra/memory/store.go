// Package memory provides in-process implementations of the store ports.
// It backs DATA_BACKEND=memory and doubles as the fake used in tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps transactions, budgets and subscriptions in maps keyed by id.
type Store struct {
	mu sync.RWMutex

	transactions  map[string]domain.Transaction
	budgets       map[string]domain.Budget
	subscriptions map[string]domain.Subscription

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		transactions:  make(map[string]domain.Transaction),
		budgets:       make(map[string]domain.Budget),
		subscriptions: make(map[string]domain.Subscription),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for createdAt/updatedAt stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutSubscription records a subscription; billing sync is external, so this
// is only used for seeding.
func (s *Store) PutSubscription(sub domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.UserID] = sub
}

// matching collects the user's transactions accepted by filter, newest first.
// Callers must hold at least a read lock.
func (s *Store) matching(userID string, filter domain.TransactionFilter) []domain.Transaction {
	out := make([]domain.Transaction, 0)
	for _, t := range s.transactions {
		if t.UserID == userID && filter.Matches(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, domain.CompareRecency)
	return out
}

// --- Transactions (implements port.TransactionStore) ---

func (s *Store) Find(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.matching(userID, filter)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Transaction{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, userID string, filter domain.TransactionFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(userID, filter)), nil
}

func (s *Store) Sum(ctx context.Context, userID string, filter domain.TransactionFilter) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, t := range s.transactions {
		if t.UserID == userID && filter.Matches(t) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (s *Store) Get(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *t
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.transactions[rec.ID] = rec
	return &rec, nil
}

func (s *Store) Update(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[t.ID]
	if !ok || existing.UserID != t.UserID {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: t.ID}
	}
	rec := *t
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = s.now()
	s.transactions[rec.ID] = rec
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) Categories(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, t := range s.matching(userID, domain.TransactionFilter{}) {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	slices.Sort(out)
	return out, nil
}

// --- Budgets (implements port.BudgetStore) ---

// Budgets exposes the budget half of the store. Both halves share the same
// maps, but the method names of the two ports collide.
func (s *Store) Budgets() *BudgetStore {
	return &BudgetStore{s: s}
}

// BudgetStore is the budget view of a Store.
type BudgetStore struct {
	s *Store
}

func (b *BudgetStore) Find(ctx context.Context, userID string, filter domain.BudgetFilter) ([]domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	out := make([]domain.Budget, 0)
	for _, bud := range b.s.budgets {
		if bud.UserID == userID && filter.Matches(bud) {
			out = append(out, bud)
		}
	}
	slices.SortFunc(out, func(x, y domain.Budget) int {
		if c := strings.Compare(x.Category, y.Category); c != 0 {
			return c
		}
		if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	return out, nil
}

func (b *BudgetStore) Get(ctx context.Context, userID, id string) (*domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	bud, ok := b.s.budgets[id]
	if !ok || bud.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	return &bud, nil
}

func (b *BudgetStore) Create(ctx context.Context, bud *domain.Budget) (*domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	key := bud.Key()
	for _, existing := range b.s.budgets {
		if existing.Key() == key {
			return nil, &domain.ErrDuplicate{Key: key}
		}
	}

	rec := *bud
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := b.s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	b.s.budgets[rec.ID] = rec
	return &rec, nil
}

func (b *BudgetStore) Update(ctx context.Context, bud *domain.Budget) (*domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	existing, ok := b.s.budgets[bud.ID]
	if !ok || existing.UserID != bud.UserID {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: bud.ID}
	}
	key := bud.Key()
	for id, other := range b.s.budgets {
		if id != bud.ID && other.Key() == key {
			return nil, &domain.ErrDuplicate{Key: key}
		}
	}
	rec := *bud
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = b.s.now()
	b.s.budgets[rec.ID] = rec
	return &rec, nil
}

func (b *BudgetStore) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	bud, ok := b.s.budgets[id]
	if !ok || bud.UserID != userID {
		return &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	delete(b.s.budgets, id)
	return nil
}

// --- Subscriptions (implements port.SubscriptionStore) ---

func (s *Store) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}
