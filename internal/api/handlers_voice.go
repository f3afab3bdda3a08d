/**
 * @description
 * This file contains the handler for the voice synthesis route. Voice is
 * gated: it requires a paid tier unless the caller supplies their own
 * ElevenLabs key (own-keys bypass).
 */
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/therapai/backend/internal/app"
	"github.com/therapai/backend/internal/domain"
)

const voiceLimitPerHour = 30

type voiceRequest struct {
	Text      string         `json:"text"`
	VoiceID   string         `json:"voice_id,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	APIKeys   domain.APIKeys `json:"api_keys"`
}

// handleSynthesize converts text to speech and returns inline base64 audio
// plus a durable URL when media storage is configured.
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		respondWithError(w, http.StatusBadRequest, "text is required")
		return
	}

	tier, err := h.users.TierFor(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to resolve subscription tier")
		return
	}
	if !app.CanAccessFeature(tier, domain.FeatureVoice, req.APIKeys) {
		respondWithError(w, http.StatusForbidden, "Voice sessions require a Premium or Pro subscription, or your own ElevenLabs API key")
		return
	}

	if !h.consumeLimit(w, r, "voice", userID, voiceLimitPerHour, time.Hour) {
		return
	}

	ownKey := ""
	if req.APIKeys.UseOwnKeys {
		ownKey = req.APIKeys.ElevenLabsKey
	}

	result, err := h.voice.Synthesize(r.Context(), req.Text, req.VoiceID, req.MessageID, ownKey)
	if err != nil {
		h.logger.Error("voice synthesis failed", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to synthesize speech")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
