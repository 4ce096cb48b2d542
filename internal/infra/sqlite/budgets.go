package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetStore implements port.BudgetStore on the same database as Store.
type BudgetStore struct {
	s *Store
}

// Budgets returns the budget view of the store.
func (s *Store) Budgets() *BudgetStore {
	return &BudgetStore{s: s}
}

const budgetColumns = "id, user_id, category, amount, month, year, created_at, updated_at"

func scanBudget(row scanner) (domain.Budget, error) {
	var (
		b                domain.Budget
		amount           string
		created, updated string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Category, &amount, &b.Month, &b.Year, &created, &updated); err != nil {
		return b, err
	}

	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return b, fmt.Errorf("budget %s: bad amount %q: %w", b.ID, amount, err)
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return b, fmt.Errorf("budget %s: bad created_at: %w", b.ID, err)
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return b, fmt.Errorf("budget %s: bad updated_at: %w", b.ID, err)
	}
	return b, nil
}

func (b *BudgetStore) Find(ctx context.Context, userID string, filter domain.BudgetFilter) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindBudgets")
	defer span.End()

	conds := []string{"user_id = ?"}
	args := []any{userID}
	if filter.Month != 0 {
		conds = append(conds, "month = ?")
		args = append(args, filter.Month)
	}
	if filter.Year != 0 {
		conds = append(conds, "year = ?")
		args = append(args, filter.Year)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}

	rows, err := b.s.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE "+strings.Join(conds, " AND ")+" ORDER BY category, created_at, id",
		args...)
	if err != nil {
		return nil, storeError("budgets", err)
	}
	defer rows.Close()

	out := make([]domain.Budget, 0)
	for rows.Next() {
		bud, err := scanBudget(rows)
		if err != nil {
			return nil, storeError("budgets", err)
		}
		out = append(out, bud)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("budgets", err)
	}
	return out, nil
}

func (b *BudgetStore) Get(ctx context.Context, userID, id string) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetBudget")
	defer span.End()

	row := b.s.db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE id = ? AND user_id = ?", id, userID)
	bud, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	if err != nil {
		return nil, storeError("budgets", err)
	}
	return &bud, nil
}

// Create inserts a budget; the unique index rejects a second budget for the
// same (user, category, month, year).
func (b *BudgetStore) Create(ctx context.Context, bud *domain.Budget) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateBudget")
	defer span.End()

	rec := *bud
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := b.s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := b.s.db.ExecContext(ctx,
		"INSERT INTO budgets ("+budgetColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.UserID, rec.Category, rec.Amount.String(), rec.Month, rec.Year,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return nil, &domain.ErrDuplicate{Key: rec.Key()}
	}
	if err != nil {
		return nil, storeError("budgets", err)
	}
	return &rec, nil
}

func (b *BudgetStore) Update(ctx context.Context, bud *domain.Budget) (*domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateBudget")
	defer span.End()

	res, err := b.s.db.ExecContext(ctx,
		`UPDATE budgets SET category = ?, amount = ?, month = ?, year = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		bud.Category, bud.Amount.String(), bud.Month, bud.Year, formatTime(b.s.now()),
		bud.ID, bud.UserID,
	)
	if isUniqueViolation(err) {
		return nil, &domain.ErrDuplicate{Key: bud.Key()}
	}
	if err != nil {
		return nil, storeError("budgets", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &domain.ErrNotFound{Resource: "budget", ID: bud.ID}
	}
	return b.Get(ctx, bud.UserID, bud.ID)
}

func (b *BudgetStore) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteBudget")
	defer span.End()

	res, err := b.s.db.ExecContext(ctx, "DELETE FROM budgets WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return storeError("budgets", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "budget", ID: id}
	}
	return nil
}
