package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/therapai/backend/internal/app"
	"github.com/therapai/backend/internal/domain"
	"github.com/therapai/backend/internal/store"
	"github.com/therapai/backend/pkg/geminiclient"
	"github.com/therapai/backend/pkg/tavusclient"
)

type routerUserRepo struct {
	users map[string]*domain.User
}

func (s *routerUserRepo) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if existing, ok := s.users[user.ID]; ok {
		copied := *existing
		return &copied, nil
	}
	copied := *user
	s.users[user.ID] = &copied
	out := copied
	return &out, nil
}

func (s *routerUserRepo) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *routerUserRepo) UpdateUserProfile(ctx context.Context, userID, fullName string) (*domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	user.FullName = fullName
	copied := *user
	return &copied, nil
}

type routerSessionRepo struct {
	sessions map[string]*domain.Session
	messages map[string][]domain.Message
	nextID   int
}

func (s *routerSessionRepo) CreateSession(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	s.nextID++
	copied := *session
	copied.ID = fmt.Sprintf("sess-%d", s.nextID)
	s.sessions[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (s *routerSessionRepo) FindSessionByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *routerSessionRepo) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	out := []domain.Session{}
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *routerSessionRepo) CloseSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	now := time.Now()
	sess.EndTime = &now
	copied := *sess
	return &copied, nil
}

func (s *routerSessionRepo) AppendMessage(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	s.nextID++
	copied := *msg
	copied.ID = fmt.Sprintf("msg-%d", s.nextID)
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], copied)
	out := copied
	return &out, nil
}

func (s *routerSessionRepo) ListMessagesBySession(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	return append([]domain.Message{}, s.messages[sessionID]...), nil
}

func (s *routerSessionRepo) UpdateSessionAggregates(ctx context.Context, sessionID string, messageCount, totalWords, sentimentCount int, avgSentiment float64) error {
	return nil
}

type routerCommunityRepo struct {
	posts []domain.CommunityPost
	err   error
}

func (s *routerCommunityRepo) CreatePost(ctx context.Context, post *domain.CommunityPost) (*domain.CommunityPost, error) {
	if s.err != nil {
		return nil, s.err
	}
	copied := *post
	copied.ID = fmt.Sprintf("post-%d", len(s.posts)+1)
	s.posts = append(s.posts, copied)
	out := copied
	return &out, nil
}

func (s *routerCommunityRepo) ListPosts(ctx context.Context, callerUserID string, limit int) ([]domain.CommunityPost, error) {
	return append([]domain.CommunityPost{}, s.posts...), nil
}

func (s *routerCommunityRepo) ReactToPost(ctx context.Context, postID, userID string, kind domain.ReactionKind) error {
	return s.err
}

func (s *routerCommunityRepo) RemoveReaction(ctx context.Context, postID, userID string) error {
	return nil
}

type routerGenerator struct {
	reply string
	err   error
}

func (g *routerGenerator) Generate(ctx context.Context, systemPrompt string, history []geminiclient.Content, overrideKey string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type routerSynth struct{}

func (routerSynth) Synthesize(ctx context.Context, text, voiceID, overrideKey string) ([]byte, string, error) {
	return []byte("audio"), "audio/mpeg", nil
}

type routerVideoGen struct{}

func (routerVideoGen) CreateVideo(ctx context.Context, script, replicaID, overrideKey string) (*tavusclient.Video, error) {
	return &tavusclient.Video{VideoID: "v1", Status: tavusclient.JobQueued}, nil
}

func (routerVideoGen) GetVideo(ctx context.Context, videoID, overrideKey string) (*tavusclient.Video, error) {
	return &tavusclient.Video{VideoID: videoID, Status: tavusclient.JobGenerating}, nil
}

// denyLimiter reports every subject as over budget.
type denyLimiter struct{}

func (denyLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return limit + 1, 42, nil
}

// countingLimiter tracks consumption per subject like the real fixed window.
type countingLimiter struct {
	counts map[string]int
}

func (l *countingLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	key := scope + ":" + subject
	l.counts[key]++
	return l.counts[key], 60, nil
}

type testRouterOptions struct {
	generator     app.TextGenerator
	limiter       app.RateLimiter
	userRepo      *routerUserRepo
	communityRepo *routerCommunityRepo
}

func newTestRouter(t *testing.T, opts testRouterOptions) http.Handler {
	t.Helper()
	if opts.generator == nil {
		opts.generator = &routerGenerator{reply: "I hear you."}
	}
	if opts.limiter == nil {
		opts.limiter = app.NopRateLimiter{}
	}
	if opts.userRepo == nil {
		opts.userRepo = &routerUserRepo{users: make(map[string]*domain.User)}
	}
	if opts.communityRepo == nil {
		opts.communityRepo = &routerCommunityRepo{}
	}
	logger := testLogger()

	subRepo := newWebhookRepoStub()
	sessRepo := &routerSessionRepo{
		sessions: make(map[string]*domain.Session),
		messages: make(map[string][]domain.Message),
	}

	users := app.NewUserService(opts.userRepo)
	subs := app.NewSubscriptionService(subRepo, nil, nil, logger)
	chat := app.NewChatService(sessRepo, opts.generator, nil, logger)
	voice := app.NewVoiceService(routerSynth{}, nil, nil, logger)
	video := app.NewVideoService(routerVideoGen{}, nil, 0, 0, logger)
	community := app.NewCommunityService(opts.communityRepo)

	h := NewHandler(users, subs, chat, voice, video, community, opts.limiter, logger)
	webhook := NewWebhookHandler(subs, "", logger)
	return NewRouter(h, webhook, testJWTSecret, "*")
}

func authHeader(t *testing.T, userID string) string {
	t.Helper()
	return "Bearer " + signedToken(t, testJWTSecret, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

func decodeEnvelope(t *testing.T, body string) (bool, json.RawMessage, string) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, body)
	}
	return envelope.Success, envelope.Data, envelope.Message
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, testRouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_PlansAreOpen(t *testing.T) {
	router := newTestRouter(t, testRouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/plans", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("plans must not require auth, got %d", rec.Code)
	}
	success, data, _ := decodeEnvelope(t, rec.Body.String())
	if !success {
		t.Fatal("expected success envelope")
	}
	var plans []domain.Plan
	if err := json.Unmarshal(data, &plans); err != nil {
		t.Fatalf("decode plans: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(plans))
	}
}

func TestRouter_ChatAsGuest(t *testing.T) {
	router := newTestRouter(t, testRouterOptions{})
	body := strings.NewReader(`{"message":"I can't sleep before the board meeting"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("guest chat must work, got %d: %s", rec.Code, rec.Body.String())
	}
	success, data, _ := decodeEnvelope(t, rec.Body.String())
	if !success {
		t.Fatal("expected success envelope")
	}
	var reply app.ChatReply
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.SessionID != "" {
		t.Fatalf("guest reply must carry no session id, got %q", reply.SessionID)
	}
	if reply.Message.Content != "I hear you." {
		t.Fatalf("unexpected reply %q", reply.Message.Content)
	}
}

func TestRouter_ChatSentimentOutOfRange(t *testing.T) {
	router := newTestRouter(t, testRouterOptions{})
	body := strings.NewReader(`{"message":"hi","sentiment":1.5}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range sentiment, got %d", rec.Code)
	}
}

func TestRouter_ChatRateLimited(t *testing.T) {
	router := newTestRouter(t, testRouterOptions{limiter: denyLimiter{}})
	body := strings.NewReader(`{"message":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "42" {
		t.Fatalf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}
	success, _, message := decodeEnvelope(t, rec.Body.String())
	if success || message == "" {
		t.Fatal("expected failure envelope with a message")
	}
}

func TestRouter_GuestChatLimitSharedAcrossRequests(t *testing.T) {
	limiter := &countingLimiter{}
	router := newTestRouter(t, testRouterOptions{limiter: limiter})

	for i := 0; i < 11; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(`{"message":"hi"}`))
		req.RemoteAddr = "203.0.113.7:52133"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if i < 10 && rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if i == 10 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: expected 429 once the guest budget is spent, got %d", i+1, rec.Code)
		}
	}

	// all eleven guests with the same address share one budget
	if len(limiter.counts) != 1 {
		t.Fatalf("expected a single limiter subject, got %d: %v", len(limiter.counts), limiter.counts)
	}
	if got := limiter.counts["ai_chat:ip:203.0.113.7"]; got != 11 {
		t.Fatalf("expected 11 consumptions against the client address, got %d", got)
	}
}

func TestRouter_GuestChatHonorsForwardedFor(t *testing.T) {
	limiter := &countingLimiter{}
	router := newTestRouter(t, testRouterOptions{limiter: limiter})

	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(`{"message":"hi"}`))
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := limiter.counts["ai_chat:ip:198.51.100.9"]; !ok {
		t.Fatalf("expected the forwarded client address as subject, got %v", limiter.counts)
	}
}

func TestRouter_VoiceGatedForFreeTier(t *testing.T) {
	userRepo := &routerUserRepo{users: map[string]*domain.User{
		"free-user": {ID: "free-user", SubscriptionTier: domain.TierFree},
	}}
	router := newTestRouter(t, testRouterOptions{userRepo: userRepo})

	body := strings.NewReader(`{"text":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/voice/synthesize", body)
	req.Header.Set("Authorization", authHeader(t, "free-user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("free tier voice must be 403, got %d", rec.Code)
	}
}

func TestRouter_VoiceOwnKeyBypassesGate(t *testing.T) {
	userRepo := &routerUserRepo{users: map[string]*domain.User{
		"free-user": {ID: "free-user", SubscriptionTier: domain.TierFree},
	}}
	router := newTestRouter(t, testRouterOptions{userRepo: userRepo})

	body := strings.NewReader(`{"text":"hello","api_keys":{"use_own_keys":true,"elevenlabs_key":"el-123"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/voice/synthesize", body)
	req.Header.Set("Authorization", authHeader(t, "free-user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("own key must bypass the gate, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_VoiceRequiresAuth(t *testing.T) {
	router := newTestRouter(t, testRouterOptions{})
	body := strings.NewReader(`{"text":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/voice/synthesize", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("voice without a token must be 401, got %d", rec.Code)
	}
}

func TestRouter_VideoGatedBelowPro(t *testing.T) {
	userRepo := &routerUserRepo{users: map[string]*domain.User{
		"premium-user": {ID: "premium-user", SubscriptionTier: domain.TierPremium},
		"pro-user":     {ID: "pro-user", SubscriptionTier: domain.TierPro},
	}}
	router := newTestRouter(t, testRouterOptions{userRepo: userRepo})

	req := httptest.NewRequest(http.MethodPost, "/api/video/create", strings.NewReader(`{"script":"hello"}`))
	req.Header.Set("Authorization", authHeader(t, "premium-user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("premium video must be 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/video/create", strings.NewReader(`{"script":"hello"}`))
	req.Header.Set("Authorization", authHeader(t, "pro-user"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("pro video create must be 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_GetMeCreatesMirrorRow(t *testing.T) {
	userRepo := &routerUserRepo{users: make(map[string]*domain.User)}
	router := newTestRouter(t, testRouterOptions{userRepo: userRepo})

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", authHeader(t, "new-user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if userRepo.users["new-user"] == nil {
		t.Fatal("first profile read must create the mirror row")
	}
}

func TestRouter_CreateCommunityPost(t *testing.T) {
	router := newTestRouter(t, testRouterOptions{})

	body := strings.NewReader(`{"content":"shipped v1 after 14 months"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/community/posts", body)
	req.Header.Set("Authorization", authHeader(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	success, data, _ := decodeEnvelope(t, rec.Body.String())
	if !success {
		t.Fatal("expected success envelope")
	}
	var post domain.CommunityPost
	if err := json.Unmarshal(data, &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	if !strings.HasPrefix(post.DisplayName, "Anonymous Founder #") {
		t.Fatalf("expected anonymized name, got %q", post.DisplayName)
	}
}

func TestRouter_CreateCommunityPostBackendFailureStaysGeneric(t *testing.T) {
	repoErr := errors.New(`ERROR: relation "community_posts" does not exist (SQLSTATE 42P01)`)
	router := newTestRouter(t, testRouterOptions{communityRepo: &routerCommunityRepo{err: repoErr}})

	body := strings.NewReader(`{"content":"anyone else burnt out?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/community/posts", body)
	req.Header.Set("Authorization", authHeader(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "SQLSTATE") {
		t.Fatalf("backend error leaked to the client: %s", rec.Body.String())
	}
	success, _, message := decodeEnvelope(t, rec.Body.String())
	if success || message != "Failed to create post" {
		t.Fatalf("expected generic failure message, got %q", message)
	}
}

func TestRouter_ReactBackendFailureStaysGeneric(t *testing.T) {
	repoErr := errors.New(`ERROR: insert or update on table "post_reactions" violates foreign key constraint (SQLSTATE 23503)`)
	router := newTestRouter(t, testRouterOptions{communityRepo: &routerCommunityRepo{err: repoErr}})

	body := strings.NewReader(`{"kind":"heart"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/community/posts/p1/react", body)
	req.Header.Set("Authorization", authHeader(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "SQLSTATE") {
		t.Fatalf("backend error leaked to the client: %s", rec.Body.String())
	}
	success, _, message := decodeEnvelope(t, rec.Body.String())
	if success || message != "Failed to update reaction" {
		t.Fatalf("expected generic failure message, got %q", message)
	}
}

func TestRouter_ReactUnknownKindRejected(t *testing.T) {
	router := newTestRouter(t, testRouterOptions{})

	body := strings.NewReader(`{"kind":"fire"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/community/posts/p1/react", body)
	req.Header.Set("Authorization", authHeader(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown reaction kind, got %d", rec.Code)
	}
}
