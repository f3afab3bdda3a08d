/**
 * @description
 * This file contains the handler for the AI chat proxy route. The route is
 * reachable by guests; guest conversations are not persisted and carry a
 * tighter rate limit.
 */
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/therapai/backend/internal/domain"
	"github.com/therapai/backend/internal/store"
	"github.com/therapai/backend/pkg/geminiclient"
)

const (
	chatLimitPerHour      = 60
	guestChatLimitPerHour = 10
)

type chatRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Message   string         `json:"message"`
	Sentiment *float64       `json:"sentiment,omitempty"`
	APIKeys   domain.APIKeys `json:"api_keys"`
}

// handleChat forwards a message to the generative model and relays the reply.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		respondWithError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Sentiment != nil && (*req.Sentiment < -1 || *req.Sentiment > 1) {
		respondWithError(w, http.StatusBadRequest, "sentiment must be between -1 and 1")
		return
	}

	// Guest identities are minted per request, so their budget is keyed on
	// the client address instead.
	limit := chatLimitPerHour
	subject := userID
	if domain.IsGuestID(userID) {
		limit = guestChatLimitPerHour
		subject = "ip:" + clientIP(r)
	}
	if !h.consumeLimit(w, r, "ai_chat", subject, limit, time.Hour) {
		return
	}

	ownKey := ""
	if req.APIKeys.UseOwnKeys {
		ownKey = req.APIKeys.GeminiKey
	}

	reply, err := h.chat.SendMessage(r.Context(), userID, req.SessionID, req.Message, req.Sentiment, ownKey)
	if err != nil {
		h.writeChatError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reply)
}

// writeChatError maps upstream AI failures onto the response taxonomy:
// selected upstream statuses get specific messages, everything else is a
// generic 500.
func (h *Handler) writeChatError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		respondWithError(w, http.StatusNotFound, "Session not found")
		return
	}
	var apiErr *geminiclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest:
			respondWithError(w, http.StatusInternalServerError, "The AI provider rejected the request")
		case http.StatusForbidden:
			respondWithError(w, http.StatusInternalServerError, "The AI provider rejected the API key")
		case http.StatusTooManyRequests:
			respondWithError(w, http.StatusInternalServerError, "The AI provider is rate limiting requests, try again shortly")
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to generate a response")
		}
		h.logger.Warn("ai provider error", "status", apiErr.StatusCode, "message", apiErr.Message)
		return
	}
	h.logger.Error("chat failed", "error", err)
	respondWithError(w, http.StatusInternalServerError, "Failed to generate a response")
}
