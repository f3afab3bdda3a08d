/**
 * @description
 * This file defines the core user model for the TherapAI backend.
 * Identity is owned by Supabase Auth; rows here are a local mirror used for
 * display and subscription gating.
 */
package domain

import (
	"strings"
	"time"
)

// Tier defines a subscription level controlling feature gating.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierPro:
		return true
	}
	return false
}

// User represents the local mirror of a Supabase Auth user.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name"`
	SubscriptionTier Tier      `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GuestIDPrefix marks synthetic users created for unauthenticated access.
// Guest users are never written to the database.
const GuestIDPrefix = "guest-"

// IsGuestID reports whether id denotes a synthetic guest user.
func IsGuestID(id string) bool {
	return strings.HasPrefix(id, GuestIDPrefix)
}

// APIKeys holds user-supplied vendor keys. A non-empty key grants access to
// the matching feature regardless of subscription tier (own-keys bypass).
type APIKeys struct {
	UseOwnKeys    bool   `json:"use_own_keys"`
	GeminiKey     string `json:"gemini_key,omitempty"`
	ElevenLabsKey string `json:"elevenlabs_key,omitempty"`
	TavusKey      string `json:"tavus_key,omitempty"`
}

// UpdateUserRequest represents the data accepted on a profile update.
type UpdateUserRequest struct {
	FullName string `json:"full_name"`
}
