/**
 * @description
 * This file contains the business logic for the anonymized community board.
 * Display names are generated server-side at post creation with a random
 * 4-digit suffix; the suffix is cosmetic and not guaranteed unique.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/therapai/backend/internal/domain"
)

// CommunityRepository defines the database operations the community service needs.
type CommunityRepository interface {
	CreatePost(ctx context.Context, post *domain.CommunityPost) (*domain.CommunityPost, error)
	ListPosts(ctx context.Context, callerUserID string, limit int) ([]domain.CommunityPost, error)
	ReactToPost(ctx context.Context, postID, userID string, kind domain.ReactionKind) error
	RemoveReaction(ctx context.Context, postID, userID string) error
}

// maxPostLength bounds community post content.
const maxPostLength = 2000

// Validation sentinels let handlers separate bad input from backend failures.
var (
	ErrInvalidPostContent = errors.New("invalid post content")
	ErrUnknownReaction    = errors.New("unknown reaction kind")
)

// CommunityService provides the community board operations.
type CommunityService struct {
	repo CommunityRepository
}

// NewCommunityService creates a new community service.
func NewCommunityService(repo CommunityRepository) *CommunityService {
	return &CommunityService{repo: repo}
}

// AnonymousDisplayName produces a display name like "Anonymous Founder #4821".
func AnonymousDisplayName() string {
	return fmt.Sprintf("Anonymous Founder #%04d", rand.Intn(10000))
}

// CreatePost stores a new anonymized post.
func (s *CommunityService) CreatePost(ctx context.Context, userID, content string) (*domain.CommunityPost, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidPostContent)
	}
	if len(content) > maxPostLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidPostContent, maxPostLength)
	}
	post := &domain.CommunityPost{
		UserID:      userID,
		DisplayName: AnonymousDisplayName(),
		Content:     content,
	}
	return s.repo.CreatePost(ctx, post)
}

// ListPosts returns recent posts with the caller's own reactions marked.
func (s *CommunityService) ListPosts(ctx context.Context, callerUserID string, limit int) ([]domain.CommunityPost, error) {
	return s.repo.ListPosts(ctx, callerUserID, limit)
}

// React records a reaction; an invalid kind is rejected before touching the store.
func (s *CommunityService) React(ctx context.Context, postID, userID string, kind domain.ReactionKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownReaction, kind)
	}
	return s.repo.ReactToPost(ctx, postID, userID, kind)
}

// Unreact removes the caller's reaction, if any.
func (s *CommunityService) Unreact(ctx context.Context, postID, userID string) error {
	return s.repo.RemoveReaction(ctx, postID, userID)
}
