package service

import (
	"context"
	"fmt"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var subTracer = otel.Tracer("service/subscriptions")

// SubscriptionService answers premium checks. Records are written by the
// billing provider; lookups are cached for the configured TTL.
type SubscriptionService struct {
	store   port.SubscriptionStore
	cache   port.Cache[*domain.Subscription]
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewSubscriptionService(store port.SubscriptionStore, cache port.Cache[*domain.Subscription], metrics *observability.Metrics, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// IsPremium reports whether userID holds an active subscription at now.
func (s *SubscriptionService) IsPremium(ctx context.Context, userID string, now time.Time) (bool, error) {
	ctx, span := subTracer.Start(ctx, "SubscriptionService.IsPremium")
	defer span.End()

	if err := requireUser(userID); err != nil {
		return false, err
	}

	key := fmt.Sprintf("subscription:%s", userID)
	if sub, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("subscription")
		return sub.IsPremium(now), nil
	}
	s.metrics.IncrCacheMiss("subscription")

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error("failed to fetch subscription",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrStoreError("subscriptions")
		return false, wrapStoreError(ctx, "get subscription", err)
	}
	s.cache.Set(key, sub)
	return sub.IsPremium(now), nil
}
