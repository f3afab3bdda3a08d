/**
 * @description
 * This file defines the webhook payload shapes received from RevenueCat and
 * the internal events this service publishes to RabbitMQ.
 */
package domain

// RevenueCat webhook event types this service reacts to. Events of any other
// type are acknowledged without a state change.
const (
	EventInitialPurchase = "INITIAL_PURCHASE"
	EventRenewal         = "RENEWAL"
	EventCancellation    = "CANCELLATION"
	EventExpiration      = "EXPIRATION"
	EventBillingIssue    = "BILLING_ISSUE"
)

// RevenueCatEvent is the inner event object of a RevenueCat webhook delivery.
type RevenueCatEvent struct {
	ID                    string `json:"id"`
	Type                  string `json:"type"`
	AppUserID             string `json:"app_user_id"`
	ProductID             string `json:"product_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	EventTimestampMs      int64  `json:"event_timestamp_ms"`
	ExpirationAtMs        int64  `json:"expiration_at_ms"`
	PurchasedAtMs         int64  `json:"purchased_at_ms"`
	Store                 string `json:"store"`
	Environment           string `json:"environment"`
}

// RevenueCatWebhook is the envelope RevenueCat POSTs to the webhook endpoint.
type RevenueCatWebhook struct {
	APIVersion string          `json:"api_version"`
	Event      RevenueCatEvent `json:"event"`
}

// SubscriptionUpdatedEvent is published to RabbitMQ after a webhook event has
// been applied to the local subscription row.
type SubscriptionUpdatedEvent struct {
	UserID    string `json:"user_id"`
	Plan      string `json:"plan"`
	Status    string `json:"status"`
	EventType string `json:"event_type"`
	ProductID string `json:"product_id"`
}

// SessionEndedEvent is published when a user closes a conversation session.
type SessionEndedEvent struct {
	SessionID    string  `json:"session_id"`
	UserID       string  `json:"user_id"`
	SessionType  string  `json:"session_type"`
	MessageCount int     `json:"message_count"`
	TotalWords   int     `json:"total_words"`
	AvgSentiment float64 `json:"avg_sentiment"`
}
