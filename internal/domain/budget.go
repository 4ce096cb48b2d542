package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Budgets
// ============================================================

// MinBudgetYear is the earliest year a budget may be planned for.
const MinBudgetYear = 2020

// Budget is a monthly spending limit for one category. At most one budget
// exists per (user, category, month, year).
type Budget struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Validate checks category, amount and period bounds.
func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return &ErrValidation{Field: "category", Message: "required"}
	}
	if !b.Amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if b.Month < 1 || b.Month > 12 {
		return &ErrValidation{Field: "month", Message: "must be between 1 and 12"}
	}
	if b.Year < MinBudgetYear {
		return &ErrValidation{Field: "year", Message: "must be 2020 or later"}
	}
	return nil
}

// Key identifies the uniqueness tuple of a budget.
func (b Budget) Key() string {
	return fmt.Sprintf("%s/%s/%04d-%02d", b.UserID, b.Category, b.Year, b.Month)
}

// BudgetFilter narrows budget lookups. Zero values do not filter.
type BudgetFilter struct {
	Month    int
	Year     int
	Category string
}

// Matches reports whether b satisfies every set field of the filter.
func (f BudgetFilter) Matches(b Budget) bool {
	if f.Month != 0 && b.Month != f.Month {
		return false
	}
	if f.Year != 0 && b.Year != f.Year {
		return false
	}
	if f.Category != "" && b.Category != f.Category {
		return false
	}
	return true
}

// BudgetHealth is the threshold classification of a budget's usage.
type BudgetHealth string

const (
	BudgetGood    BudgetHealth = "good"
	BudgetWarning BudgetHealth = "warning"
	BudgetOver    BudgetHealth = "over"
)

// BudgetStatus pairs a budget with its actual spend. It is derived on every
// query and never persisted.
type BudgetStatus struct {
	Budget
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed int64           `json:"percentUsed"`
	Status      BudgetHealth    `json:"status"`
}

// BudgetList is returned by GET /v1/budgets.
type BudgetList struct {
	Budgets []BudgetStatus `json:"budgets"`
}
