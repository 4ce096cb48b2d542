package supabase

import (
	"context"
	"net/http"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================
// Budgets: CRUD via PostgREST
// ============================================================

// BudgetStore implements port.BudgetStore against the budgets table.
type BudgetStore struct {
	c *Client
}

// Budgets returns the budget view of the client.
func (c *Client) Budgets() *BudgetStore {
	return &BudgetStore{c: c}
}

type budgetRow struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (r budgetRow) toDomain() domain.Budget {
	return domain.Budget{
		ID:        r.ID,
		UserID:    r.UserID,
		Category:  r.Category,
		Amount:    r.Amount,
		Month:     r.Month,
		Year:      r.Year,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (b *BudgetStore) Find(ctx context.Context, userID string, filter domain.BudgetFilter) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindBudgets")
	defer span.End()

	q := budgetQuery(userID, filter)
	q.Set("order", "category.asc,created_at.asc,id.asc")

	rows, err := fetch[budgetRow](ctx, b.c, "budgets", http.MethodGet, "budgets?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Budget, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (b *BudgetStore) Get(ctx context.Context, userID, id string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBudget")
	defer span.End()

	rows, err := fetch[budgetRow](ctx, b.c, "budgets", http.MethodGet, byID("budgets", userID, id)+"&limit=1", nil, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	bud := rows[0].toDomain()
	return &bud, nil
}

// Create relies on the table's unique (user_id, category, month, year)
// constraint; PostgREST answers 409 when it is violated.
func (b *BudgetStore) Create(ctx context.Context, bud *domain.Budget) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateBudget")
	defer span.End()

	rec := *bud
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := b.c.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	row := budgetRow{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Category:  rec.Category,
		Amount:    rec.Amount,
		Month:     rec.Month,
		Year:      rec.Year,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	rows, err := fetch[budgetRow](ctx, b.c, "budgets", http.MethodPost, "budgets", row, "return=representation")
	if isConflict(err) {
		return nil, &domain.ErrDuplicate{Key: rec.Key()}
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &rec, nil
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (b *BudgetStore) Update(ctx context.Context, bud *domain.Budget) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateBudget")
	defer span.End()

	patch := map[string]any{
		"category":   bud.Category,
		"amount":     bud.Amount,
		"month":      bud.Month,
		"year":       bud.Year,
		"updated_at": b.c.now(),
	}
	rows, err := fetch[budgetRow](ctx, b.c, "budgets", http.MethodPatch, byID("budgets", bud.UserID, bud.ID),
		patch, "return=representation")
	if isConflict(err) {
		return nil, &domain.ErrDuplicate{Key: bud.Key()}
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: bud.ID}
	}
	updated := rows[0].toDomain()
	return &updated, nil
}

func (b *BudgetStore) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteBudget")
	defer span.End()

	rows, err := fetch[budgetRow](ctx, b.c, "budgets", http.MethodDelete, byID("budgets", userID, id),
		nil, "return=representation")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	return nil
}
