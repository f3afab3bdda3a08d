package app

import (
	"context"
	"strings"
	"testing"

	"github.com/therapai/backend/internal/domain"
	"github.com/therapai/backend/internal/store"
)

type userRepoStub struct {
	users map[string]*domain.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]*domain.User)}
}

func (s *userRepoStub) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	existing, ok := s.users[user.ID]
	if ok {
		// Tier is owned by the subscription pipeline, not the auth mirror.
		existing.Email = user.Email
		copied := *existing
		return &copied, nil
	}
	copied := *user
	s.users[user.ID] = &copied
	out := copied
	return &out, nil
}

func (s *userRepoStub) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *userRepoStub) UpdateUserProfile(ctx context.Context, userID, fullName string) (*domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	user.FullName = fullName
	copied := *user
	return &copied, nil
}

func TestEnsureUser_PreservesPaidTierOnRepeat(t *testing.T) {
	repo := newUserRepoStub()
	svc := NewUserService(repo)
	ctx := context.Background()

	if _, err := svc.EnsureUser(ctx, "u1", "founder@example.com"); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	repo.users["u1"].SubscriptionTier = domain.TierPro

	user, err := svc.EnsureUser(ctx, "u1", "founder@example.com")
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if user.SubscriptionTier != domain.TierPro {
		t.Fatalf("repeat sign-in must not reset tier, got %q", user.SubscriptionTier)
	}
}

func TestEnsureUser_RequiresID(t *testing.T) {
	svc := NewUserService(newUserRepoStub())
	if _, err := svc.EnsureUser(context.Background(), "", "a@b.c"); err == nil {
		t.Fatal("expected an error for empty user id")
	}
}

func TestNewGuestUser(t *testing.T) {
	guest := NewGuestUser()
	if !strings.HasPrefix(guest.ID, domain.GuestIDPrefix) {
		t.Fatalf("guest id must carry the guest prefix, got %q", guest.ID)
	}
	if !domain.IsGuestID(guest.ID) {
		t.Fatal("IsGuestID must recognize a fresh guest")
	}
	if guest.SubscriptionTier != domain.TierFree {
		t.Fatalf("guests are free tier, got %q", guest.SubscriptionTier)
	}

	other := NewGuestUser()
	if other.ID == guest.ID {
		t.Fatal("guest ids must be unique")
	}
}

func TestTierFor(t *testing.T) {
	repo := newUserRepoStub()
	repo.users["paid"] = &domain.User{ID: "paid", SubscriptionTier: domain.TierPremium}
	repo.users["corrupt"] = &domain.User{ID: "corrupt", SubscriptionTier: domain.Tier("platinum")}
	svc := NewUserService(repo)
	ctx := context.Background()

	cases := []struct {
		userID string
		want   domain.Tier
	}{
		{"guest-anything", domain.TierFree},
		{"missing", domain.TierFree},
		{"paid", domain.TierPremium},
		{"corrupt", domain.TierFree},
	}
	for _, tc := range cases {
		got, err := svc.TierFor(ctx, tc.userID)
		if err != nil {
			t.Errorf("TierFor(%q) returned error %v", tc.userID, err)
			continue
		}
		if got != tc.want {
			t.Errorf("TierFor(%q) = %q, want %q", tc.userID, got, tc.want)
		}
	}
}
