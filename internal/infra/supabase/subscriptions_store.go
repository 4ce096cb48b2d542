package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

type subscriptionRow struct {
	UserID                 string    `json:"user_id"`
	ProviderCustomerID     string    `json:"provider_customer_id"`
	ProviderSubscriptionID string    `json:"provider_subscription_id"`
	Status                 string    `json:"status"`
	CurrentPeriodStart     time.Time `json:"current_period_start"`
	CurrentPeriodEnd       time.Time `json:"current_period_end"`
}

// GetSubscription implements port.SubscriptionStore. A user with no row
// yields (nil, nil).
func (c *Client) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("limit", "1")

	rows, err := fetch[subscriptionRow](ctx, c, "subscriptions", http.MethodGet, "subscriptions?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0]
	return &domain.Subscription{
		UserID:                 r.UserID,
		ProviderCustomerID:     r.ProviderCustomerID,
		ProviderSubscriptionID: r.ProviderSubscriptionID,
		Status:                 domain.SubscriptionStatus(r.Status),
		CurrentPeriodStart:     r.CurrentPeriodStart,
		CurrentPeriodEnd:       r.CurrentPeriodEnd,
	}, nil
}
