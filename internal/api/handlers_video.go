/**
 * @description
 * This file contains the handlers for the video avatar routes. Video is the
 * most gated feature: it requires the Pro tier unless the caller supplies
 * their own Tavus key. Creation returns a job id; clients poll the status
 * route until the job reaches a terminal state.
 */
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/therapai/backend/internal/app"
	"github.com/therapai/backend/internal/domain"
)

const videoLimitPerHour = 10

type videoCreateRequest struct {
	Script    string         `json:"script"`
	ReplicaID string         `json:"replica_id,omitempty"`
	APIKeys   domain.APIKeys `json:"api_keys"`
}

// handleCreateVideo submits a video generation job.
func (h *Handler) handleCreateVideo(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req videoCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Script == "" {
		respondWithError(w, http.StatusBadRequest, "script is required")
		return
	}

	tier, err := h.users.TierFor(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to resolve subscription tier")
		return
	}
	if !app.CanAccessFeature(tier, domain.FeatureVideo, req.APIKeys) {
		respondWithError(w, http.StatusForbidden, "Video sessions require a Pro subscription, or your own Tavus API key")
		return
	}

	if !h.consumeLimit(w, r, "video", userID, videoLimitPerHour, time.Hour) {
		return
	}

	ownKey := ""
	if req.APIKeys.UseOwnKeys {
		ownKey = req.APIKeys.TavusKey
	}

	job, err := h.video.CreateVideo(r.Context(), req.Script, req.ReplicaID, ownKey)
	if err != nil {
		h.logger.Error("video creation failed", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to start video generation")
		return
	}
	respondWithJSON(w, http.StatusAccepted, job)
}

// handleVideoStatus reports the current state of a generation job. The own
// key, when needed, travels in a header because this is a GET.
func (h *Handler) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	jobID := chi.URLParam(r, "id")
	ownKey := r.Header.Get("X-Tavus-Key")

	job, err := h.video.GetStatus(r.Context(), jobID, ownKey)
	if err != nil {
		h.logger.Warn("video status query failed", "job_id", jobID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch video status")
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}
