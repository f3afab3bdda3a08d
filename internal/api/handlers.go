/**
 * @description
 * This file defines the Handler that holds the application services and the
 * handlers for user profile and session routes. Handlers parse requests, call
 * the service layer, and write envelope responses; feature gating and rate
 * limiting live in the more specific handler files.
 */
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/therapai/backend/internal/app"
	"github.com/therapai/backend/internal/domain"
	"github.com/therapai/backend/internal/store"
)

// Handler holds the application services that handlers interact with.
type Handler struct {
	users     *app.UserService
	subs      *app.SubscriptionService
	chat      *app.ChatService
	voice     *app.VoiceService
	video     *app.VideoService
	community *app.CommunityService
	limiter   app.RateLimiter
	logger    *slog.Logger
}

// NewHandler creates a new Handler with the given services.
func NewHandler(
	users *app.UserService,
	subs *app.SubscriptionService,
	chat *app.ChatService,
	voice *app.VoiceService,
	video *app.VideoService,
	community *app.CommunityService,
	limiter app.RateLimiter,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		users:     users,
		subs:      subs,
		chat:      chat,
		voice:     voice,
		video:     video,
		community: community,
		limiter:   limiter,
		logger:    logger,
	}
}

// handleGetMe returns the caller's profile, creating the local mirror row on
// first contact.
func (h *Handler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.users.EnsureUser(r.Context(), userID, EmailFromContext(r.Context()))
	if err != nil {
		h.logger.Error("failed to ensure user", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// handleUpdateMe updates the caller's profile fields.
func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FullName == "" {
		respondWithError(w, http.StatusBadRequest, "full_name is required")
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// handleListSessions returns the caller's recent sessions.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sessions, err := h.chat.ListSessions(r.Context(), userID, 0)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	respondWithJSON(w, http.StatusOK, sessions)
}

// handleListMessages returns the messages of one of the caller's sessions.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "id")
	messages, err := h.chat.ListMessages(r.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			respondWithError(w, http.StatusNotFound, "Session not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}
	respondWithJSON(w, http.StatusOK, messages)
}

// handleEndSession closes a session and reports its final aggregates.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "id")
	session, err := h.chat.EndSession(r.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			respondWithError(w, http.StatusNotFound, "Session not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to end session")
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

// consumeLimit applies the rate limiter and writes the 429 itself when the
// subject is over budget. Limiter backend errors fail open.
func (h *Handler) consumeLimit(w http.ResponseWriter, r *http.Request, scope, subject string, limit int, window time.Duration) bool {
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), scope, subject, limit, window)
	if err != nil {
		h.logger.Warn("rate limiter unavailable, allowing request", "scope", scope, "error", err)
		return true
	}
	if limit > 0 && count > limit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded, try again later")
		return false
	}
	return true
}

// clientIP resolves the caller's address, trusting the first X-Forwarded-For
// hop when a proxy set one.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
