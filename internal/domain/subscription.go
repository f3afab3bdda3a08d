/**
 * @description
 * This file defines the subscription domain models for the TherapAI backend.
 * A subscription is a single row per user, upserted on user_id, transitioned
 * by RevenueCat webhook events and read back on status queries.
 */
package domain

import "time"

// SubscriptionStatus enumerates the states a subscription row can be in.
type SubscriptionStatus string

const (
	StatusActive       SubscriptionStatus = "active"
	StatusCancelled    SubscriptionStatus = "cancelled"
	StatusBillingIssue SubscriptionStatus = "billing_issue"
)

// Subscription represents the structure of a user's subscription in the database.
type Subscription struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	Plan               Tier               `json:"plan"`
	Status             SubscriptionStatus `json:"status"`
	RevenueCatID       string             `json:"revenuecat_id,omitempty"`
	ProductID          string             `json:"product_id,omitempty"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// SubscriptionState is the DTO returned on synchronous status queries.
// Stale is true when the billing provider could not be reached and the values
// come from the last known local row.
type SubscriptionState struct {
	Plan             Tier               `json:"plan"`
	Status           SubscriptionStatus `json:"status"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	Stale            bool               `json:"stale"`
}

// Feature names a gated capability.
type Feature string

const (
	FeatureChat  Feature = "chat"
	FeatureVoice Feature = "voice"
	FeatureVideo Feature = "video"
)

// Plan is static metadata describing a purchasable tier.
type Plan struct {
	ID           Tier     `json:"id"`
	Name         string   `json:"name"`
	PriceMonthly int      `json:"price_monthly_cents"`
	ProductIDs   []string `json:"product_ids"`
	Features     []string `json:"features"`
}
