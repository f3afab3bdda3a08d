/**
 * @description
 * This file contains the core business logic for subscription management: the
 * webhook-driven state machine, plan derivation from product ids, feature
 * entitlement checks (including the own-keys bypass), and the synchronous
 * status query with its local-row fallback.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/therapai/backend/internal/domain"
	"github.com/therapai/backend/internal/store"
	"github.com/therapai/backend/pkg/rabbitmq"
	"github.com/therapai/backend/pkg/revenuecatclient"
)

// SubscriptionRepository defines the database operations the subscription
// service needs.
type SubscriptionRepository interface {
	GetSubscriptionByUserID(ctx context.Context, userID string) (*domain.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error)
	SetUserTier(ctx context.Context, userID string, tier domain.Tier) error
}

// BillingProvider is the synchronous entitlement source (RevenueCat).
type BillingProvider interface {
	GetSubscriber(ctx context.Context, appUserID string) (*revenuecatclient.Subscriber, error)
}

// SubscriptionService provides the business logic for subscription state.
type SubscriptionService struct {
	repo     SubscriptionRepository
	billing  BillingProvider // nil when no provider key is configured
	producer rabbitmq.Publisher
	logger   *slog.Logger
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(repo SubscriptionRepository, billing BillingProvider, producer rabbitmq.Publisher, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{repo: repo, billing: billing, producer: producer, logger: logger}
}

// PlanFromProductID derives a tier from a billing product id by substring
// match. Product ids look like "premium_monthly" or "pro_annual".
func PlanFromProductID(productID string) domain.Tier {
	id := strings.ToLower(productID)
	switch {
	case strings.Contains(id, "premium"):
		return domain.TierPremium
	case strings.Contains(id, "pro"):
		return domain.TierPro
	default:
		return domain.TierFree
	}
}

// ApplyWebhookEvent transitions the local subscription row according to a
// provider event. The write is an upsert keyed on user id, so replayed events
// converge to the same state. Unknown event types are acknowledged without a
// write and return a nil subscription.
func (s *SubscriptionService) ApplyWebhookEvent(ctx context.Context, event domain.RevenueCatEvent) (*domain.Subscription, error) {
	if event.AppUserID == "" {
		return nil, errors.New("webhook event missing app_user_id")
	}

	sub := &domain.Subscription{
		UserID:    event.AppUserID,
		ProductID: event.ProductID,
	}

	switch event.Type {
	case domain.EventInitialPurchase, domain.EventRenewal:
		sub.Plan = PlanFromProductID(event.ProductID)
		sub.Status = domain.StatusActive
		if event.PurchasedAtMs > 0 {
			sub.CurrentPeriodStart = time.UnixMilli(event.PurchasedAtMs)
		}
		if event.ExpirationAtMs > 0 {
			sub.CurrentPeriodEnd = time.UnixMilli(event.ExpirationAtMs)
		}

	case domain.EventCancellation, domain.EventExpiration:
		// The paid-through period is kept from the purchase so the expiry
		// remains visible after cancellation.
		prior, err := s.priorSubscription(ctx, event.AppUserID)
		if err != nil {
			return nil, err
		}
		sub.Plan = domain.TierFree
		sub.Status = domain.StatusCancelled
		sub.CurrentPeriodStart = prior.CurrentPeriodStart
		sub.CurrentPeriodEnd = prior.CurrentPeriodEnd
		sub.RevenueCatID = prior.RevenueCatID
		if sub.ProductID == "" {
			sub.ProductID = prior.ProductID
		}

	case domain.EventBillingIssue:
		// Plan is unchanged on a billing issue; carry the prior plan forward.
		prior, err := s.priorSubscription(ctx, event.AppUserID)
		if err != nil {
			return nil, err
		}
		sub.Plan = prior.Plan
		sub.Status = domain.StatusBillingIssue
		sub.CurrentPeriodStart = prior.CurrentPeriodStart
		sub.CurrentPeriodEnd = prior.CurrentPeriodEnd
		sub.RevenueCatID = prior.RevenueCatID
		if sub.ProductID == "" {
			sub.ProductID = prior.ProductID
		}

	default:
		s.logger.Info("ignoring webhook event of unknown type", "type", event.Type, "app_user_id", event.AppUserID)
		return nil, nil
	}

	// The original transaction id is stable across a subscription's lifetime;
	// an already stored id comes next and the per-delivery event id is the
	// last resort, so the column never ends up tracking individual deliveries.
	if event.OriginalTransactionID != "" {
		sub.RevenueCatID = event.OriginalTransactionID
	} else if sub.RevenueCatID == "" {
		prior, err := s.priorSubscription(ctx, event.AppUserID)
		if err != nil {
			return nil, err
		}
		sub.RevenueCatID = prior.RevenueCatID
		if sub.RevenueCatID == "" {
			sub.RevenueCatID = event.ID
		}
	}

	applied, err := s.repo.UpsertSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}

	// Mirror the plan onto the user row. The mirror may not exist yet when the
	// purchase webhook races the first sign-in.
	if err := s.repo.SetUserTier(ctx, applied.UserID, applied.Plan); err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Warn("no user row to mirror tier onto", "user_id", applied.UserID)
	}

	if s.producer != nil {
		evt := domain.SubscriptionUpdatedEvent{
			UserID:    applied.UserID,
			Plan:      string(applied.Plan),
			Status:    string(applied.Status),
			EventType: event.Type,
			ProductID: applied.ProductID,
		}
		if err := s.producer.Publish(ctx, "subscription_events", "subscription.updated", evt); err != nil {
			s.logger.Warn("failed to publish subscription.updated", "user_id", applied.UserID, "error", err)
		}
	}

	return applied, nil
}

// priorSubscription loads the existing row for carry-forward transitions; a
// missing row degrades to an empty free subscription.
func (s *SubscriptionService) priorSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	prior, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrSubscriptionNotFound) {
			return nil, err
		}
		return &domain.Subscription{Plan: domain.TierFree}, nil
	}
	return prior, nil
}

// GetStatus answers "what plan is this user on". It prefers live provider
// data and falls back silently to the last known local row on any provider
// failure. A missing local row means the free tier, not an error.
func (s *SubscriptionService) GetStatus(ctx context.Context, userID string) (*domain.SubscriptionState, error) {
	liveFailed := false
	if s.billing != nil {
		subscriber, err := s.billing.GetSubscriber(ctx, userID)
		if err == nil {
			return stateFromSubscriber(subscriber), nil
		}
		liveFailed = true
		s.logger.Warn("billing provider query failed, falling back to local record", "user_id", userID, "error", err)
	}

	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return &domain.SubscriptionState{
				Plan:   domain.TierFree,
				Status: domain.StatusActive,
				Stale:  liveFailed,
			}, nil
		}
		return nil, err
	}

	return &domain.SubscriptionState{
		Plan:             sub.Plan,
		Status:           sub.Status,
		CurrentPeriodEnd: &sub.CurrentPeriodEnd,
		Stale:            liveFailed,
	}, nil
}

func stateFromSubscriber(subscriber *revenuecatclient.Subscriber) *domain.SubscriptionState {
	now := time.Now()
	state := &domain.SubscriptionState{
		Plan:   domain.TierFree,
		Status: domain.StatusActive,
	}
	for _, ent := range subscriber.Entitlements {
		if ent.ExpiresDate != nil && ent.ExpiresDate.Before(now) {
			continue
		}
		plan := PlanFromProductID(ent.ProductIdentifier)
		if rankTier(plan) > rankTier(state.Plan) {
			state.Plan = plan
			state.CurrentPeriodEnd = ent.ExpiresDate
		}
	}
	return state
}

func rankTier(t domain.Tier) int {
	switch t {
	case domain.TierPro:
		return 2
	case domain.TierPremium:
		return 1
	default:
		return 0
	}
}

// CanAccessFeature applies the gating rules: chat is free for everyone, voice
// requires a paid tier, video requires pro. A user-supplied vendor key grants
// the matching feature unconditionally (own-keys bypass, a documented design
// decision rather than a loophole).
func CanAccessFeature(tier domain.Tier, feature domain.Feature, keys domain.APIKeys) bool {
	switch feature {
	case domain.FeatureChat:
		return true
	case domain.FeatureVoice:
		if keys.UseOwnKeys && keys.ElevenLabsKey != "" {
			return true
		}
		return tier == domain.TierPremium || tier == domain.TierPro
	case domain.FeatureVideo:
		if keys.UseOwnKeys && keys.TavusKey != "" {
			return true
		}
		return tier == domain.TierPro
	default:
		return false
	}
}

// Plans returns the static plan catalog shown on the pricing page.
func Plans() []domain.Plan {
	return []domain.Plan{
		{
			ID:           domain.TierFree,
			Name:         "Free",
			PriceMonthly: 0,
			ProductIDs:   nil,
			Features:     []string{"Unlimited text chat", "Community access"},
		},
		{
			ID:           domain.TierPremium,
			Name:         "Premium",
			PriceMonthly: 1900,
			ProductIDs:   []string{"premium_monthly", "premium_annual"},
			Features:     []string{"Everything in Free", "Voice sessions", "Session history insights"},
		},
		{
			ID:           domain.TierPro,
			Name:         "Pro",
			PriceMonthly: 4900,
			ProductIDs:   []string{"pro_monthly", "pro_annual"},
			Features:     []string{"Everything in Premium", "Video avatar sessions", "Priority support"},
		},
	}
}
