package domain

import "time"

// ReactionKind enumerates the supported post reactions.
type ReactionKind string

const (
	ReactionHeart   ReactionKind = "heart"
	ReactionSupport ReactionKind = "support"
)

// Valid reports whether k is a known reaction kind.
func (k ReactionKind) Valid() bool {
	return k == ReactionHeart || k == ReactionSupport
}

// CommunityPost is an anonymized post on the community board. DisplayName is
// generated server-side at creation with a random 4-digit suffix; uniqueness
// of the suffix is not guaranteed and it is not a security boundary.
type CommunityPost struct {
	ID           string        `json:"id"`
	UserID       string        `json:"-"`
	DisplayName  string        `json:"display_name"`
	Content      string        `json:"content"`
	HeartCount   int           `json:"heart_count"`
	SupportCount int           `json:"support_count"`
	OwnReaction  *ReactionKind `json:"own_reaction,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
