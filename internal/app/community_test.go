package app

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/therapai/backend/internal/domain"
)

type communityRepoStub struct {
	posts     []domain.CommunityPost
	reactions map[string]domain.ReactionKind
}

func newCommunityRepoStub() *communityRepoStub {
	return &communityRepoStub{reactions: make(map[string]domain.ReactionKind)}
}

func (s *communityRepoStub) CreatePost(ctx context.Context, post *domain.CommunityPost) (*domain.CommunityPost, error) {
	copied := *post
	copied.ID = "post-1"
	s.posts = append(s.posts, copied)
	out := copied
	return &out, nil
}

func (s *communityRepoStub) ListPosts(ctx context.Context, callerUserID string, limit int) ([]domain.CommunityPost, error) {
	out := make([]domain.CommunityPost, len(s.posts))
	copy(out, s.posts)
	return out, nil
}

func (s *communityRepoStub) ReactToPost(ctx context.Context, postID, userID string, kind domain.ReactionKind) error {
	s.reactions[postID+"/"+userID] = kind
	return nil
}

func (s *communityRepoStub) RemoveReaction(ctx context.Context, postID, userID string) error {
	delete(s.reactions, postID+"/"+userID)
	return nil
}

func TestAnonymousDisplayName_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^Anonymous Founder #\d{4}$`)
	for i := 0; i < 50; i++ {
		name := AnonymousDisplayName()
		if !pattern.MatchString(name) {
			t.Fatalf("unexpected display name %q", name)
		}
	}
}

func TestCreatePost_AssignsAnonymousName(t *testing.T) {
	repo := newCommunityRepoStub()
	svc := NewCommunityService(repo)

	post, err := svc.CreatePost(context.Background(), "u1", "raised a bridge round, still anxious")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasPrefix(post.DisplayName, "Anonymous Founder #") {
		t.Fatalf("expected anonymized display name, got %q", post.DisplayName)
	}
	if post.UserID != "u1" {
		t.Fatalf("expected owner recorded for reaction checks, got %q", post.UserID)
	}
}

func TestCreatePost_Validation(t *testing.T) {
	svc := NewCommunityService(newCommunityRepoStub())
	ctx := context.Background()

	if _, err := svc.CreatePost(ctx, "u1", ""); !errors.Is(err, ErrInvalidPostContent) {
		t.Fatalf("expected ErrInvalidPostContent for empty content, got %v", err)
	}
	if _, err := svc.CreatePost(ctx, "u1", strings.Repeat("a", maxPostLength+1)); !errors.Is(err, ErrInvalidPostContent) {
		t.Fatalf("expected ErrInvalidPostContent for oversized content, got %v", err)
	}
	if _, err := svc.CreatePost(ctx, "u1", strings.Repeat("a", maxPostLength)); err != nil {
		t.Fatalf("content at the limit must pass, got %v", err)
	}
}

func TestReact_RejectsUnknownKind(t *testing.T) {
	repo := newCommunityRepoStub()
	svc := NewCommunityService(repo)
	ctx := context.Background()

	if err := svc.React(ctx, "post-1", "u1", domain.ReactionKind("downvote")); !errors.Is(err, ErrUnknownReaction) {
		t.Fatalf("expected ErrUnknownReaction, got %v", err)
	}
	if len(repo.reactions) != 0 {
		t.Fatal("invalid reaction must not reach the store")
	}

	if err := svc.React(ctx, "post-1", "u1", domain.ReactionHeart); err != nil {
		t.Fatalf("valid reaction failed: %v", err)
	}
	if repo.reactions["post-1/u1"] != domain.ReactionHeart {
		t.Fatal("expected reaction recorded")
	}
}

func TestUnreact(t *testing.T) {
	repo := newCommunityRepoStub()
	svc := NewCommunityService(repo)
	ctx := context.Background()

	if err := svc.React(ctx, "post-1", "u1", domain.ReactionSupport); err != nil {
		t.Fatalf("react failed: %v", err)
	}
	if err := svc.Unreact(ctx, "post-1", "u1"); err != nil {
		t.Fatalf("unreact failed: %v", err)
	}
	if len(repo.reactions) != 0 {
		t.Fatal("expected reaction removed")
	}
}
