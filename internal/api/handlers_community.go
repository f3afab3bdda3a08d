/**
 * @description
 * This file contains the handlers for the community board routes.
 */
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/therapai/backend/internal/app"
	"github.com/therapai/backend/internal/domain"
	"github.com/therapai/backend/internal/store"
)

type createPostRequest struct {
	Content string `json:"content"`
}

type reactRequest struct {
	Kind   domain.ReactionKind `json:"kind"`
	Remove bool                `json:"remove,omitempty"`
}

// handleListPosts returns recent community posts with the caller's own
// reactions marked.
func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	posts, err := h.community.ListPosts(r.Context(), userID, 0)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list posts")
		return
	}
	respondWithJSON(w, http.StatusOK, posts)
}

// handleCreatePost stores a new anonymized post.
func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	post, err := h.community.CreatePost(r.Context(), userID, req.Content)
	if err != nil {
		if errors.Is(err, app.ErrInvalidPostContent) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create community post", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create post")
		return
	}
	respondWithJSON(w, http.StatusCreated, post)
}

// handleReact adds or removes a reaction on a post.
func (h *Handler) handleReact(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	postID := chi.URLParam(r, "id")

	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var err error
	if req.Remove {
		err = h.community.Unreact(r.Context(), postID, userID)
	} else {
		err = h.community.React(r.Context(), postID, userID, req.Kind)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPostNotFound):
			respondWithError(w, http.StatusNotFound, "Post not found")
		case errors.Is(err, app.ErrUnknownReaction):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to record reaction", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to update reaction")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
