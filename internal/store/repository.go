/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the TherapAI backend. The
 * interface decouples the service layer from the PostgreSQL implementation so
 * business logic can be tested with hand-written stubs.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/therapai/backend/internal/domain"
)

// Sentinel errors returned by repository implementations.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPostNotFound         = errors.New("post not found")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error)
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)
	UpdateUserProfile(ctx context.Context, userID, fullName string) (*domain.User, error)
	SetUserTier(ctx context.Context, userID string, tier domain.Tier) error

	// Session and message methods
	CreateSession(ctx context.Context, session *domain.Session) (*domain.Session, error)
	FindSessionByID(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	CloseSession(ctx context.Context, sessionID string) (*domain.Session, error)
	AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	ListMessagesBySession(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	AttachMessageAudioURL(ctx context.Context, messageID, audioURL string) error
	UpdateSessionAggregates(ctx context.Context, sessionID string, messageCount, totalWords, sentimentCount int, avgSentiment float64) error

	// Subscription methods
	GetSubscriptionByUserID(ctx context.Context, userID string) (*domain.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error)

	// Community methods
	CreatePost(ctx context.Context, post *domain.CommunityPost) (*domain.CommunityPost, error)
	ListPosts(ctx context.Context, callerUserID string, limit int) ([]domain.CommunityPost, error)
	ReactToPost(ctx context.Context, postID, userID string, kind domain.ReactionKind) error
	RemoveReaction(ctx context.Context, postID, userID string) error
}
