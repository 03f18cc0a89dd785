// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package posts

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"postdesk/internal/apperr"
	"postdesk/internal/authz"
	"postdesk/internal/models"
	"postdesk/internal/storage"
)

// UpdateInput carries a partial update. Nil fields are left unchanged.
//
// Tags follows three states: nil leaves tags alone, a list replaces them,
// and an empty (or blank) string re-derives them from the title.
type UpdateInput struct {
	Title      *string
	Content    *string
	CategoryID *string
	Status     *string
	Author     *string
	Tags       *string

	Image     *storage.Upload
	ImagePath string
}

// Update applies a partial update to a post owned by the caller. A replaced
// featured image is removed only after the document has been written.
func (s *Service) Update(ctx context.Context, caller authz.Caller, id uuid.UUID, in UpdateInput) (*models.Post, error) {
	post, task, err := s.reconcile(ctx, caller, id, in)
	if err != nil {
		return nil, err
	}
	s.runCleanup(ctx, task)
	s.changed(ctx, post)
	return post, nil
}

// reconcile validates and persists an update, returning the stored post
// and the assets it no longer references.
func (s *Service) reconcile(ctx context.Context, caller authz.Caller, id uuid.UUID, in UpdateInput) (*models.Post, CleanupTask, error) {
	current, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return nil, CleanupTask{}, err
	}

	next := current.Clone()
	var fields apperr.FieldList

	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
		if next.Title == "" {
			fields.Add("title", "Title is required.")
		}
	}
	if in.Content != nil {
		next.Content = strings.TrimSpace(*in.Content)
		if next.Content == "" {
			fields.Add("content", "Content is required.")
		}
	}
	if in.CategoryID != nil {
		raw := strings.TrimSpace(*in.CategoryID)
		if raw == "" {
			fields.Add("category", "Category is required.")
		} else {
			cat, err := s.category(ctx, raw, &fields)
			if err != nil {
				return nil, CleanupTask{}, err
			}
			if cat != nil {
				next.CategoryID = cat.ID
				next.Category = cat
			}
		}
	}
	if in.Status != nil {
		st, ok := models.ParseStatus(*in.Status)
		if !ok {
			fields.Add("status", "Invalid status.")
		}
		next.Status = st
	}
	if in.Author != nil {
		if a := strings.TrimSpace(*in.Author); a != "" {
			next.Author = a
		}
	}
	if in.Tags != nil {
		next.Tags = resolveTags(in.Tags, next.Title)
	}

	if in.Image != nil {
		if err := storage.Validate(*in.Image); err != nil {
			fields.Add("image", "Images only: JPEG or PNG, at most 5 MB.")
		}
	} else if in.ImagePath != "" && !samePath(current.FeaturedImage, in.ImagePath) {
		if err := s.checkImagePath(ctx, in.ImagePath, &fields); err != nil {
			return nil, CleanupTask{}, err
		}
	}

	if err := fields.Err(); err != nil {
		return nil, CleanupTask{}, err
	}

	var stored string
	if in.Image != nil {
		if stored, err = s.storeUpload(ctx, *in.Image); err != nil {
			return nil, CleanupTask{}, err
		}
		next.FeaturedImage = &stored
	} else if in.ImagePath != "" {
		p := in.ImagePath
		next.FeaturedImage = &p
	}

	next.AuthorID = current.AuthorID
	next.UpdatedAt = s.now().UTC()

	if err := s.posts.Update(ctx, &next); err != nil {
		s.discard(ctx, stored)
		return nil, CleanupTask{}, apperr.Internal("Failed to update post.", err)
	}

	task := CleanupTask{PostID: id}
	if current.FeaturedImage != nil && !samePath(next.FeaturedImage, *current.FeaturedImage) {
		task.Paths = append(task.Paths, *current.FeaturedImage)
	}

	slog.Info("post updated", "post_id", id, "image_replaced", !task.Empty())
	return &next, task, nil
}

func samePath(p *string, other string) bool {
	return p != nil && *p == other
}
