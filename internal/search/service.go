// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"postdesk/internal/models"
)

// DefaultLimit caps result sets when the caller does not.
const DefaultLimit = 20

// Document is the indexed representation of a published post.
type Document struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	Author     string   `json:"author"`
	AuthorID   string   `json:"authorId"`
	CategoryID string   `json:"categoryId"`
	Status     string   `json:"status"`
	CreatedAt  int64    `json:"createdAt"`
}

// NewDocument builds the index document for a post.
func NewDocument(p *models.Post) Document {
	return Document{
		ID:         p.ID.String(),
		Title:      p.Title,
		Slug:       p.Slug,
		Content:    p.Content,
		Tags:       p.Tags,
		Author:     p.Author,
		AuthorID:   p.AuthorID,
		CategoryID: p.CategoryID.String(),
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt.Unix(),
	}
}

// Index is an external full-text index.
type Index interface {
	Healthy() bool
	Search(q string, limit int) ([]string, error)
	IndexPost(doc Document) error
	IndexPosts(docs []Document) error
	DeletePost(id string) error
}

// Posts is the database side: Postgres full-text search plus id lookups
// for hydrating index hits.
type Posts interface {
	Search(ctx context.Context, q string, limit int) ([]models.Post, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListPublished(ctx context.Context) ([]models.Post, error)
}

// Service tries the external index first and falls back to Postgres.
type Service struct {
	index Index
	posts Posts
	spawn func(func())
}

// NewService creates a search service. index may be nil when no external
// index is configured.
func NewService(index Index, posts Posts) *Service {
	return &Service{
		index: index,
		posts: posts,
		spawn: func(f func()) { go f() },
	}
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Search returns published posts matching q. Failures degrade to an empty
// result rather than an error.
func (s *Service) Search(ctx context.Context, q string, limit int) []models.Post {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Post{}
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultLimit
	}

	if s.indexReady() {
		ids, err := s.index.Search(q, limit)
		if err == nil {
			return s.hydrate(ctx, ids)
		}
		slog.Warn("search index failed, falling back to postgres", "error", err)
	}

	items, err := s.posts.Search(ctx, q, limit)
	if err != nil {
		slog.Error("postgres search", "error", err)
		return []models.Post{}
	}
	if items == nil {
		items = []models.Post{}
	}
	return items
}

// hydrate loads index hits from the database, dropping entries that are
// stale or no longer published.
func (s *Service) hydrate(ctx context.Context, ids []string) []models.Post {
	items := make([]models.Post, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		p, err := s.posts.FindByID(ctx, id)
		if err != nil {
			slog.Warn("load search hit", "post_id", raw, "error", err)
			continue
		}
		if p == nil || p.Status != models.PostStatusPublished {
			continue
		}
		items = append(items, *p)
	}
	return items
}

// PostChanged indexes published posts and removes everything else.
func (s *Service) PostChanged(_ context.Context, p *models.Post) {
	if !s.indexReady() || p == nil {
		return
	}
	if p.Status != models.PostStatusPublished {
		s.remove(p.ID.String())
		return
	}
	doc := NewDocument(p)
	s.spawn(func() {
		if err := s.index.IndexPost(doc); err != nil {
			slog.Warn("index post", "post_id", doc.ID, "error", err)
		}
	})
}

// PostDeleted removes the post from the index.
func (s *Service) PostDeleted(_ context.Context, id uuid.UUID) {
	if !s.indexReady() {
		return
	}
	s.remove(id.String())
}

func (s *Service) remove(id string) {
	s.spawn(func() {
		if err := s.index.DeletePost(id); err != nil {
			slog.Warn("remove post from index", "post_id", id, "error", err)
		}
	})
}

// Reindex pushes every published post to the external index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if !s.indexReady() {
		return 0, nil
	}
	items, err := s.posts.ListPublished(ctx)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	docs := make([]Document, len(items))
	for i := range items {
		docs[i] = NewDocument(&items[i])
	}
	if err := s.index.IndexPosts(docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
