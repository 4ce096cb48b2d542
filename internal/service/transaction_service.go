package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var txnTracer = otel.Tracer("service/transactions")

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TransactionService is the CRUD surface over the transaction store.
type TransactionService struct {
	store      port.TransactionStore
	categories domain.CategorySet
	cache      port.Cache[[]string]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewTransactionService creates the service. categories is the configured
// default list merged into every user's category listing.
func NewTransactionService(
	store port.TransactionStore,
	categories domain.CategorySet,
	cache port.Cache[[]string],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TransactionService {
	return &TransactionService{
		store:      store,
		categories: categories,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
}

func categoriesKey(userID string) string {
	return fmt.Sprintf("categories:%s", userID)
}

// List returns one page of the user's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, userID string, filter domain.TransactionFilter, page, limit int) (*domain.TransactionPage, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionService.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	txns, err := s.store.Find(ctx, userID, filter)
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, wrapStoreError(ctx, "list transactions", err)
	}
	total, err := s.store.Count(ctx, userID, filter)
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, wrapStoreError(ctx, "count transactions", err)
	}

	return &domain.TransactionPage{
		Transactions: txns,
		Pagination: domain.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

func normalizeTransaction(t *domain.Transaction) {
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)
}

// Create validates and stores a new transaction for userID.
func (s *TransactionService) Create(ctx context.Context, userID string, t *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionService.Create")
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	t.ID = ""
	t.UserID = userID
	normalizeTransaction(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, t)
	if err != nil {
		s.logger.Error("failed to create transaction",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrStoreError("transactions")
		return nil, wrapStoreError(ctx, "create transaction", err)
	}
	s.cache.Delete(categoriesKey(userID))
	return created, nil
}

// Update replaces the editable fields of an existing transaction.
func (s *TransactionService) Update(ctx context.Context, userID, id string, t *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	normalizeTransaction(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, wrapStoreError(ctx, "get transaction", err)
	}

	existing.Amount = t.Amount
	existing.Type = t.Type
	existing.Category = t.Category
	existing.Description = t.Description
	existing.Date = t.Date
	existing.IsRecurring = t.IsRecurring
	existing.ReceiptURL = t.ReceiptURL

	updated, err := s.store.Update(ctx, existing)
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, wrapStoreError(ctx, "update transaction", err)
	}
	s.cache.Delete(categoriesKey(userID))
	return updated, nil
}

// Delete removes a transaction owned by userID.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := txnTracer.Start(ctx, "TransactionService.Delete")
	defer span.End()

	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return wrapStoreError(ctx, "delete transaction", err)
	}
	s.cache.Delete(categoriesKey(userID))
	return nil
}

// Categories returns the user's own categories followed by the configured
// defaults not already present.
func (s *TransactionService) Categories(ctx context.Context, userID string) ([]string, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionService.Categories")
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, err
	}

	key := categoriesKey(userID)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("categories")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("categories")

	own, err := s.store.Categories(ctx, userID)
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, wrapStoreError(ctx, "list categories", err)
	}

	merged := s.categories.Merge(own)
	s.cache.Set(key, merged)
	return merged, nil
}
