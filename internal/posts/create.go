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
	"postdesk/internal/tags"
)

// CreateInput carries the fields of a new post.
type CreateInput struct {
	Title      string
	Content    string
	CategoryID string
	Status     string // empty means draft
	Author     string // empty resolves the caller's display name
	Tags       *string

	// Image is a freshly uploaded file. ImagePath instead references a file
	// stored earlier through the upload endpoint.
	Image     *storage.Upload
	ImagePath string
}

// Create validates the input and stores a new post owned by the caller.
func (s *Service) Create(ctx context.Context, caller authz.Caller, in CreateInput) (*models.Post, error) {
	user, ok := caller.(authz.Authenticated)
	if !ok {
		return nil, apperr.Unauthorized("Authentication required.")
	}
	if !user.Role.CanAuthor() {
		return nil, apperr.Forbidden("Only editors can create posts.")
	}

	var fields apperr.FieldList
	title := strings.TrimSpace(in.Title)
	if title == "" {
		fields.Add("title", "Title is required.")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		fields.Add("content", "Content is required.")
	}

	var cat *models.Category
	if strings.TrimSpace(in.CategoryID) == "" {
		fields.Add("category", "Category is required.")
	} else {
		var err error
		if cat, err = s.category(ctx, strings.TrimSpace(in.CategoryID), &fields); err != nil {
			return nil, err
		}
	}

	status := models.PostStatusDraft
	if in.Status != "" {
		st, ok := models.ParseStatus(in.Status)
		if !ok {
			fields.Add("status", "Invalid status.")
		}
		status = st
	}

	if in.Image != nil {
		if err := storage.Validate(*in.Image); err != nil {
			fields.Add("image", "Images only: JPEG or PNG, at most 5 MB.")
		}
	} else if in.ImagePath != "" {
		if err := s.checkImagePath(ctx, in.ImagePath, &fields); err != nil {
			return nil, err
		}
	}

	if err := fields.Err(); err != nil {
		return nil, err
	}

	author := strings.TrimSpace(in.Author)
	if author == "" {
		author = s.authorName(ctx, user.UserID)
	}

	postSlug, err := s.uniqueSlug(ctx, title)
	if err != nil {
		return nil, apperr.Internal("Failed to create post.", err)
	}

	now := s.now().UTC()
	post := &models.Post{
		ID:         uuid.New(),
		Title:      title,
		Slug:       postSlug,
		Content:    content,
		CategoryID: cat.ID,
		Category:   cat,
		Status:     status,
		Author:     author,
		AuthorID:   user.UserID,
		Tags:       resolveTags(in.Tags, title),
		ViewedBy:   []models.ViewEntry{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var stored string
	if in.Image != nil {
		if stored, err = s.storeUpload(ctx, *in.Image); err != nil {
			return nil, err
		}
		post.FeaturedImage = &stored
	} else if in.ImagePath != "" {
		p := in.ImagePath
		post.FeaturedImage = &p
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.discard(ctx, stored)
		return nil, apperr.Internal("Failed to create post.", err)
	}

	slog.Info("post created", "post_id", post.ID, "author_id", post.AuthorID)
	s.changed(ctx, post)
	return post, nil
}

// resolveTags returns the parsed tag list, or tags derived from title when
// raw is absent or yields no tags.
func resolveTags(raw *string, title string) []string {
	if raw != nil {
		if parsed := tags.Parse(*raw); len(parsed) > 0 {
			return parsed
		}
	}
	return tags.Derive(title)
}
