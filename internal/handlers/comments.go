package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"postdesk/internal/apperr"
	"postdesk/internal/authz"
	"postdesk/internal/models"
)

// CommentStore persists comments.
type CommentStore interface {
	ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	UpdateBody(ctx context.Context, id uuid.UUID, body string) (*models.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostVisibility resolves a post the caller is allowed to read.
type PostVisibility interface {
	Visible(ctx context.Context, caller authz.Caller, id uuid.UUID) (*models.Post, error)
}

// DisplayNamer resolves a user's display name.
type DisplayNamer interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Comments groups the comment endpoints nested under a post.
type Comments struct {
	posts    PostVisibility
	comments CommentStore
	users    DisplayNamer
}

// NewComments creates the comment handlers.
func NewComments(posts PostVisibility, comments CommentStore, users DisplayNamer) *Comments {
	return &Comments{posts: posts, comments: comments, users: users}
}

// List handles GET /posts/{id}/comments.
func (h *Comments) List(w http.ResponseWriter, r *http.Request) {
	post, err := h.post(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.comments.ListByPost(r.Context(), post.ID)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to load comments.", err))
		return
	}
	if items == nil {
		items = []models.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": items})
}

// Create handles POST /posts/{id}/comments.
func (h *Comments) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.FromContext(r.Context()).(authz.Authenticated)
	if !ok {
		writeError(w, r, apperr.Unauthorized("Authentication required."))
		return
	}
	post, err := h.post(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateComment(body.Body); err != nil {
		writeError(w, r, err)
		return
	}

	author, err := h.users.DisplayName(r.Context(), caller.UserID)
	if err != nil {
		slog.Warn("resolve comment author failed", "error", err, "user_id", caller.UserID)
		author = models.AnonymousAuthor
	}
	c, err := h.comments.Create(r.Context(), &models.Comment{
		PostID: post.ID,
		UserID: caller.UserID,
		Author: author,
		Body:   strings.TrimSpace(body.Body),
	})
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to save comment.", err))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Update handles PUT /posts/{id}/comments/{commentId}.
func (h *Comments) Update(w http.ResponseWriter, r *http.Request) {
	c, err := h.owned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateComment(body.Body); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.comments.UpdateBody(r.Context(), c.ID, strings.TrimSpace(body.Body))
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to update comment.", err))
		return
	}
	if updated == nil {
		writeError(w, r, apperr.NotFound("Comment not found."))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /posts/{id}/comments/{commentId}.
func (h *Comments) Delete(w http.ResponseWriter, r *http.Request) {
	c, err := h.owned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.comments.Delete(r.Context(), c.ID); err != nil {
		writeError(w, r, apperr.Internal("Failed to delete comment.", err))
		return
	}
	writeJSON(w, http.StatusOK, MessageBody{Message: "Comment deleted."})
}

func (h *Comments) post(r *http.Request) (*models.Post, error) {
	id, err := uuidParam(r, "id", "Post")
	if err != nil {
		return nil, err
	}
	return h.posts.Visible(r.Context(), authz.FromContext(r.Context()), id)
}

// owned loads the addressed comment and checks the caller wrote it.
func (h *Comments) owned(r *http.Request) (*models.Comment, error) {
	caller := authz.FromContext(r.Context())
	if _, ok := caller.(authz.Authenticated); !ok {
		return nil, apperr.Unauthorized("Authentication required.")
	}
	post, err := h.post(r)
	if err != nil {
		return nil, err
	}
	id, err := uuidParam(r, "commentId", "Comment")
	if err != nil {
		return nil, err
	}
	c, err := h.comments.FindByID(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal("Failed to load comment.", err)
	}
	if c == nil || c.PostID != post.ID {
		return nil, apperr.NotFound("Comment not found.")
	}
	if !authz.CanMutate(caller, c) {
		return nil, apperr.Forbidden("You can only modify your own comments.")
	}
	return c, nil
}
