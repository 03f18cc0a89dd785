// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"postdesk/internal/apperr"
	"postdesk/internal/authz"
	"postdesk/internal/models"
)

// CategoryStore persists categories.
type CategoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	Update(ctx context.Context, c *models.Category) (*models.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountPosts(ctx context.Context, id uuid.UUID) (int, error)
}

// Invalidator drops cached listings after a change.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

// Categories groups the category endpoints.
type Categories struct {
	store CategoryStore
	cache Invalidator
}

// NewCategories creates the category handlers. cache may be nil.
func NewCategories(store CategoryStore, cache Invalidator) *Categories {
	return &Categories{store: store, cache: cache}
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Template    bool   `json:"template"`
}

// List handles GET /categories.
func (h *Categories) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to load categories.", err))
		return
	}
	if items == nil {
		items = []models.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": items})
}

// Create handles POST /categories. Only admins may create templates.
func (h *Categories) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.FromContext(r.Context()).(authz.Authenticated)
	if !ok {
		writeError(w, r, apperr.Unauthorized("Authentication required."))
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateCategory(req.Name, req.Description); err != nil {
		writeError(w, r, err)
		return
	}

	owner := caller.UserID
	if req.Template {
		if caller.Role != authz.RoleAdmin {
			writeError(w, r, apperr.Forbidden("Only admins can create template categories."))
			return
		}
		owner = models.SystemTemplateAuthor
	}

	c, err := h.store.Create(r.Context(), &models.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		AuthorID:    &owner,
	})
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to create category.", err))
		return
	}
	slog.Info("category created", "category_id", c.ID, "template", req.Template)
	writeJSON(w, http.StatusCreated, c)
}

// Update handles PUT /categories/{id}.
func (h *Categories) Update(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadManaged(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateCategory(req.Name, req.Description); err != nil {
		writeError(w, r, err)
		return
	}

	c.Name = strings.TrimSpace(req.Name)
	c.Description = strings.TrimSpace(req.Description)
	updated, err := h.store.Update(r.Context(), c)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to update category.", err))
		return
	}
	if updated == nil {
		writeError(w, r, apperr.NotFound("Category not found."))
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /categories/{id}. Categories still referenced by
// posts cannot be deleted.
func (h *Categories) Delete(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadManaged(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.store.CountPosts(r.Context(), c.ID)
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to check category usage.", err))
		return
	}
	if n > 0 {
		writeError(w, r, apperr.InvalidArgument("category",
			fmt.Sprintf("Category is used by %d post(s). Move or delete them first.", n)))
		return
	}
	if err := h.store.Delete(r.Context(), c.ID); err != nil {
		writeError(w, r, apperr.Internal("Failed to delete category.", err))
		return
	}
	slog.Info("category deleted", "category_id", c.ID)
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, MessageBody{Message: "Category deleted."})
}

// Clone handles POST /categories/{id}/clone: the caller gets an owned copy,
// typically of a template. The body may override name and description.
func (h *Categories) Clone(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.FromContext(r.Context()).(authz.Authenticated)
	if !ok {
		writeError(w, r, apperr.Unauthorized("Authentication required."))
		return
	}
	src, err := h.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = src.Name
	}
	if req.Description == "" {
		req.Description = src.Description
	}
	if err := validateCategory(req.Name, req.Description); err != nil {
		writeError(w, r, err)
		return
	}

	owner := caller.UserID
	c, err := h.store.Create(r.Context(), &models.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		AuthorID:    &owner,
	})
	if err != nil {
		writeError(w, r, apperr.Internal("Failed to clone category.", err))
		return
	}
	slog.Info("category cloned", "source_id", src.ID, "category_id", c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (h *Categories) load(r *http.Request) (*models.Category, error) {
	id, err := uuidParam(r, "id", "Category")
	if err != nil {
		return nil, err
	}
	c, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal("Failed to load category.", err)
	}
	if c == nil {
		return nil, apperr.NotFound("Category not found.")
	}
	return c, nil
}

// loadManaged loads the category and checks the caller may change it:
// owners manage their own categories, admins manage templates and
// categories without an owner.
func (h *Categories) loadManaged(r *http.Request) (*models.Category, error) {
	caller := authz.FromContext(r.Context())
	user, ok := caller.(authz.Authenticated)
	if !ok {
		return nil, apperr.Unauthorized("Authentication required.")
	}
	c, err := h.load(r)
	if err != nil {
		return nil, err
	}
	if c.OwnerID() == "" {
		if user.Role != authz.RoleAdmin {
			return nil, apperr.Forbidden("Only admins can modify template categories.")
		}
		return c, nil
	}
	if !authz.CanMutate(caller, c) {
		return nil, apperr.Forbidden("You can only modify your own categories.")
	}
	return c, nil
}

func (h *Categories) invalidate(ctx context.Context) {
	if h.cache != nil {
		h.cache.InvalidateAll(ctx)
	}
}
