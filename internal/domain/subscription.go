package domain

import "time"

// SubscriptionStatus mirrors the billing provider's subscription states.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionUnpaid    SubscriptionStatus = "unpaid"
)

// Subscription is the premium plan record kept in sync by the billing
// provider. This service only reads it.
type Subscription struct {
	UserID                 string             `json:"userId"`
	ProviderCustomerID     string             `json:"providerCustomerId"`
	ProviderSubscriptionID string             `json:"providerSubscriptionId"`
	Status                 SubscriptionStatus `json:"status"`
	CurrentPeriodStart     time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd       time.Time          `json:"currentPeriodEnd"`
}

// IsPremium reports whether the subscription grants premium features at now.
func (s *Subscription) IsPremium(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionActive && now.Before(s.CurrentPeriodEnd)
}
