package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions
// ============================================================

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is one of the two known variants.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// ParseTransactionType converts user input into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	return t, nil
}

// Transaction is a single income or expense record owned by one user.
type Transaction struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	Category        string          `json:"category"`
	Description     string          `json:"description,omitempty"`
	Date            Date            `json:"date"`
	IsRecurring     bool            `json:"isRecurring"`
	ReceiptURL      string          `json:"receiptUrl,omitempty"`
	AutoCategorized bool            `json:"autoCategorizationApplied"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Validate checks the record invariants: positive amount, known type,
// non-empty category and a well-formed date.
func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if !t.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	if strings.TrimSpace(t.Category) == "" {
		return &ErrValidation{Field: "category", Message: "required"}
	}
	if t.Date.IsZero() {
		return &ErrValidation{Field: "date", Message: "required"}
	}
	if len(t.Description) > 255 {
		return &ErrValidation{Field: "description", Message: "too long (max 255 characters)"}
	}
	return nil
}

// CompareRecency orders transactions newest first: date, then creation
// time, both descending. The id breaks remaining ties so that equal store
// contents always yield the same order.
func CompareRecency(a, b Transaction) int {
	if c := b.Date.Compare(a.Date.Time); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

// TransactionFilter narrows a store query. Zero-valued fields do not filter.
type TransactionFilter struct {
	Type     TransactionType
	Category string
	Window   *DateRange
	// Uncategorized selects records the classifier has not touched yet.
	Uncategorized bool
	Limit         int
	Offset        int
}

// Matches reports whether t satisfies every set field of the filter.
// Limit and Offset are paging concerns and are ignored here.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Window != nil && !f.Window.Contains(t.Date) {
		return false
	}
	if f.Uncategorized && t.AutoCategorized {
		return false
	}
	return true
}

// Validate rejects malformed filters before they reach a store.
func (f TransactionFilter) Validate() error {
	if f.Type != "" && !f.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	if f.Window != nil {
		if err := f.Window.Validate(); err != nil {
			return err
		}
	}
	if f.Limit < 0 || f.Offset < 0 {
		return &ErrValidation{Field: "pagination", Message: "must not be negative"}
	}
	return nil
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// TransactionPage is returned by GET /v1/transactions.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}

// CategoriesResponse is returned by GET /v1/transactions/categories.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}
