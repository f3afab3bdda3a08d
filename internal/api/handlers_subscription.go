/**
 * @description
 * This file contains the handlers for the synchronous subscription routes:
 * the public plan catalog and the caller's current subscription state.
 * The asynchronous webhook path lives in webhook.go.
 */
package api

import (
	"net/http"

	"github.com/therapai/backend/internal/app"
	"github.com/therapai/backend/internal/domain"
)

// handlePlans returns the static plan catalog.
func (h *Handler) handlePlans(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, app.Plans())
}

// handleSubscriptionStatus answers "what plan is this user on". Guests are
// always free.
func (h *Handler) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if domain.IsGuestID(userID) {
		respondWithJSON(w, http.StatusOK, &domain.SubscriptionState{
			Plan:   domain.TierFree,
			Status: domain.StatusActive,
		})
		return
	}

	state, err := h.subs.GetStatus(r.Context(), userID)
	if err != nil {
		h.logger.Error("subscription status query failed", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load subscription status")
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}
