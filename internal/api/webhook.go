/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from
 * the billing provider (RevenueCat). It is the entry point for all
 * asynchronous subscription state changes.
 *
 * Key features:
 * - Security: validates the HMAC-SHA256 signature of incoming webhooks when a
 *   secret is configured; logs a warning and skips validation when it is not
 *   (an explicit opt-out, not an oversight).
 * - Idempotency: recently seen event ids are suppressed in memory; the state
 *   write itself is an upsert, so replays that slip past suppression still
 *   converge.
 * - Error mapping: malformed payloads get a 400, store failures get a 500 so
 *   the provider retries per its own policy.
 */
package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/therapai/backend/internal/app"
	"github.com/therapai/backend/internal/domain"
)

// signatureHeaders lists the headers the provider may carry the signature in.
var signatureHeaders = []string{"X-RevenueCat-Signature", "X-Webhook-Signature"}

const processedEventTTL = 24 * time.Hour

// WebhookHandler processes incoming billing provider webhooks.
type WebhookHandler struct {
	subs            *app.SubscriptionService
	secret          string
	logger          *slog.Logger
	processedEvents map[string]time.Time
	mutex           sync.Mutex
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(subs *app.SubscriptionService, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		subs:            subs,
		secret:          secret,
		logger:          logger,
		processedEvents: make(map[string]time.Time),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Cannot read request body")
		return
	}

	if !h.isValidSignature(r, body) {
		h.logger.Warn("rejected webhook with invalid signature", "remote", r.RemoteAddr)
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var payload domain.RevenueCatWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	event := payload.Event
	if event.Type == "" {
		respondWithError(w, http.StatusBadRequest, "Webhook payload missing event type")
		return
	}
	if event.AppUserID == "" {
		respondWithError(w, http.StatusBadRequest, "Webhook payload missing app_user_id")
		return
	}

	if h.isDuplicateEvent(event.ID) {
		h.logger.Info("suppressing duplicate webhook event", "event_id", event.ID, "type", event.Type)
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
		return
	}

	sub, err := h.subs.ApplyWebhookEvent(r.Context(), event)
	if err != nil {
		h.logger.Error("failed to apply webhook event", "event_id", event.ID, "type", event.Type, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to process webhook event")
		return
	}
	if sub == nil {
		// Unknown event type: acknowledged, no state change.
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	h.logger.Info("applied webhook event",
		"event_id", event.ID, "type", event.Type,
		"user_id", sub.UserID, "plan", string(sub.Plan), "status", string(sub.Status))
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// isValidSignature validates the HMAC signature over the raw body. The
// expected value is accepted in hex or base64, with or without a "sha256="
// prefix, because provider configurations differ.
func (h *WebhookHandler) isValidSignature(r *http.Request, body []byte) bool {
	if h.secret == "" {
		h.logger.Warn("REVENUECAT_WEBHOOK_SECRET is not set, skipping signature validation")
		return true
	}

	var header string
	for _, name := range signatureHeaders {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			header = v
			break
		}
	}
	if header == "" {
		return false
	}
	header = strings.TrimPrefix(header, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, candidate := range []string{
		hex.EncodeToString(expected),
		base64.StdEncoding.EncodeToString(expected),
	} {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(header)) == 1 {
			return true
		}
	}
	return false
}

// isDuplicateEvent records the event id and reports whether it was already
// seen within the TTL. Events without an id are never suppressed.
func (h *WebhookHandler) isDuplicateEvent(eventID string) bool {
	if eventID == "" {
		return false
	}
	now := time.Now()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id, seen := range h.processedEvents {
		if now.Sub(seen) > processedEventTTL {
			delete(h.processedEvents, id)
		}
	}
	if _, seen := h.processedEvents[eventID]; seen {
		return true
	}
	h.processedEvents[eventID] = now
	return false
}
