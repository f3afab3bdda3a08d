/**
 * @description
 * This file contains the user-mirror logic. Identity is owned by Supabase
 * Auth; this service keeps a local row per authenticated user for display and
 * tier gating, and synthesizes guest users for unauthenticated access.
 */
package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/therapai/backend/internal/domain"
	"github.com/therapai/backend/internal/store"
)

// UserRepository defines the database operations the user service needs.
type UserRepository interface {
	UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error)
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)
	UpdateUserProfile(ctx context.Context, userID, fullName string) (*domain.User, error)
}

// UserService maintains the local user mirror.
type UserService struct {
	repo UserRepository
}

// NewUserService creates a new user service.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// EnsureUser upserts the local mirror for an authenticated user. Called on
// each authenticated profile read so the first request after sign-up creates
// the row.
func (s *UserService) EnsureUser(ctx context.Context, userID, email string) (*domain.User, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	return s.repo.UpsertUser(ctx, &domain.User{
		ID:               userID,
		Email:            email,
		SubscriptionTier: domain.TierFree,
	})
}

// GetUser returns the local mirror row.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

// UpdateProfile updates the editable profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	user, err := s.repo.UpdateUserProfile(ctx, userID, req.FullName)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, store.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// NewGuestUser synthesizes a transient user for unauthenticated access.
// Guests are never persisted and are always on the free tier.
func NewGuestUser() domain.User {
	return domain.User{
		ID:               domain.GuestIDPrefix + uuid.NewString(),
		FullName:         "Guest",
		SubscriptionTier: domain.TierFree,
	}
}

// TierFor resolves the effective tier for a user id. Guests are free; a
// missing mirror row is free as well.
func (s *UserService) TierFor(ctx context.Context, userID string) (domain.Tier, error) {
	if domain.IsGuestID(userID) {
		return domain.TierFree, nil
	}
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.TierFree, nil
		}
		return "", err
	}
	if !user.SubscriptionTier.Valid() {
		return domain.TierFree, nil
	}
	return user.SubscriptionTier, nil
}
