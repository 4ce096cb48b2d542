package service

import (
	"context"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var budgetTracer = otel.Tracer("service/budgets")

// BudgetService is the CRUD surface over the budget store. Listing goes
// through the reporting service so every budget carries its status.
type BudgetService struct {
	store   port.BudgetStore
	reports *ReportingService
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewBudgetService(store port.BudgetStore, reports *ReportingService, metrics *observability.Metrics, logger *zap.Logger) *BudgetService {
	return &BudgetService{
		store:   store,
		reports: reports,
		metrics: metrics,
		logger:  logger,
	}
}

// List returns the budgets of the given month with spending attached.
// A zero month or year is taken from now.
func (s *BudgetService) List(ctx context.Context, userID string, month, year int, now time.Time) (*domain.BudgetList, error) {
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	statuses, err := s.reports.BudgetsWithStatus(ctx, userID, month, year)
	if err != nil {
		return nil, err
	}
	return &domain.BudgetList{Budgets: statuses}, nil
}

// Create stores a new budget. A second budget for the same category and
// month is rejected with *domain.ErrDuplicate.
func (s *BudgetService) Create(ctx context.Context, userID string, b *domain.Budget) (*domain.Budget, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	b.ID = ""
	b.UserID = userID
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.Find(ctx, userID, domain.BudgetFilter{Month: b.Month, Year: b.Year, Category: b.Category})
	if err != nil {
		s.metrics.IncrStoreError("budgets")
		return nil, wrapStoreError(ctx, "find budgets", err)
	}
	if len(existing) > 0 {
		return nil, &domain.ErrDuplicate{Key: b.Key()}
	}

	created, err := s.store.Create(ctx, b)
	if err != nil {
		s.logger.Warn("failed to create budget",
			zap.String("user_id", userID),
			zap.String("category", b.Category),
			zap.Error(err),
		)
		return nil, wrapStoreError(ctx, "create budget", err)
	}
	return created, nil
}

// Update changes the amount of an existing budget. Category and period are
// fixed once created.
func (s *BudgetService) Update(ctx context.Context, userID, id string, amount decimal.Decimal) (*domain.Budget, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("budget.id", id))

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}

	b, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, wrapStoreError(ctx, "get budget", err)
	}
	b.Amount = amount

	updated, err := s.store.Update(ctx, b)
	if err != nil {
		s.metrics.IncrStoreError("budgets")
		return nil, wrapStoreError(ctx, "update budget", err)
	}
	return updated, nil
}

// Delete removes a budget owned by userID.
func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.Delete")
	defer span.End()

	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return wrapStoreError(ctx, "delete budget", err)
	}
	return nil
}
