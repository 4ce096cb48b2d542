// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"github.com/shopspring/decimal"
)

// TransactionStore persists transactions per user.
// Implemented by the SQLite, Supabase and in-memory adapters.
type TransactionStore interface {
	// Find returns the user's transactions matching filter, ordered by
	// (date desc, createdAt desc). Limit/Offset page the result when set.
	Find(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
	// Count returns how many transactions match filter, ignoring paging.
	Count(ctx context.Context, userID string, filter domain.TransactionFilter) (int, error)
	// Sum totals the amounts of matching transactions. No rows is zero, not an error.
	Sum(ctx context.Context, userID string, filter domain.TransactionFilter) (decimal.Decimal, error)

	Get(ctx context.Context, userID, id string) (*domain.Transaction, error)
	Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	Update(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	Delete(ctx context.Context, userID, id string) error

	// Categories lists the distinct categories the user has used.
	Categories(ctx context.Context, userID string) ([]string, error)
}

// BudgetStore persists one budget per (user, category, month, year).
type BudgetStore interface {
	Find(ctx context.Context, userID string, filter domain.BudgetFilter) ([]domain.Budget, error)
	Get(ctx context.Context, userID, id string) (*domain.Budget, error)
	// Create fails with *domain.ErrDuplicate when the tuple already exists.
	Create(ctx context.Context, b *domain.Budget) (*domain.Budget, error)
	Update(ctx context.Context, b *domain.Budget) (*domain.Budget, error)
	Delete(ctx context.Context, userID, id string) error
}

// SubscriptionStore reads premium subscription records. A user without a
// record yields (nil, nil).
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
}

// Classifier is the external AI service used for category suggestions and
// budget forecasts.
type Classifier interface {
	Categorize(ctx context.Context, req *domain.ClassificationRequest) (string, error)
	PredictBudget(ctx context.Context, req *domain.PredictionRequest) (*domain.BudgetPrediction, error)
}

// ReceiptScanner extracts structured data from a receipt image.
type ReceiptScanner interface {
	Scan(ctx context.Context, image []byte, contentType string) (*domain.ReceiptData, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
