// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package posts implements the post lifecycle: create, read, list, update,
// status changes and delete. It keeps a post's featured image, its tags and
// its view statistics consistent with the stored document, and enforces
// that only a post's author may change it.
package posts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"postdesk/internal/apperr"
	"postdesk/internal/authz"
	"postdesk/internal/markdown"
	"postdesk/internal/models"
	"postdesk/internal/slug"
	"postdesk/internal/storage"
)

const (
	DefaultLimit  = 10
	MaxLimit      = 100
	ExcerptLength = 200
)

// Repository persists posts. Reads populate the post's Category and
// ViewedBy. Finders return (nil, nil) when nothing matches.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	FindBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, f models.PostFilter) ([]models.Post, int, error)
	Create(ctx context.Context, p *models.Post) error
	Update(ctx context.Context, p *models.Post) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	ImageInUse(ctx context.Context, path string) (bool, error)
}

// Categories resolves category references.
type Categories interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

// Directory resolves a user id to the name shown as a post's author.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// ViewTracker counts a read toward the post's view statistics.
type ViewTracker interface {
	Track(ctx context.Context, caller authz.Caller, post *models.Post) bool
}

// ChangeHook observes committed changes. Hooks must not fail the request;
// they log their own errors.
type ChangeHook interface {
	PostChanged(ctx context.Context, p *models.Post)
	PostDeleted(ctx context.Context, id uuid.UUID)
}

// Config wires a Service.
type Config struct {
	Posts      Repository
	Categories Categories
	Directory  Directory
	Assets     storage.AssetStore
	Views      ViewTracker   // optional
	Cleanup    CleanupRunner // defaults to an InlineRunner over Assets
	Hooks      []ChangeHook

	// Placeholder is the shared default image path. It is never deleted.
	Placeholder string
}

// Service coordinates post operations.
type Service struct {
	posts       Repository
	categories  Categories
	directory   Directory
	assets      storage.AssetStore
	views       ViewTracker
	cleanup     CleanupRunner
	hooks       []ChangeHook
	placeholder string
	now         func() time.Time
}

// New creates a post service.
func New(cfg Config) *Service {
	cleanup := cfg.Cleanup
	if cleanup == nil {
		cleanup = NewInlineRunner(cfg.Assets, cfg.Placeholder)
	}
	return &Service{
		posts:       cfg.Posts,
		categories:  cfg.Categories,
		directory:   cfg.Directory,
		assets:      cfg.Assets,
		views:       cfg.Views,
		cleanup:     cleanup,
		hooks:       cfg.Hooks,
		placeholder: cfg.Placeholder,
		now:         time.Now,
	}
}

// Placeholder returns the shared default image path.
func (s *Service) Placeholder() string {
	return s.placeholder
}

// Get returns a post by id or slug. Drafts and archived posts are only
// visible to their author; everyone else gets NotFound. Reads by
// viewer-role callers are counted toward the post's views.
func (s *Service) Get(ctx context.Context, caller authz.Caller, idOrSlug string) (*models.Post, error) {
	post, err := s.visible(ctx, caller, idOrSlug)
	if err != nil {
		return nil, err
	}

	if s.views != nil {
		s.views.Track(ctx, caller, post)
	}

	html, err := markdown.ToHTML(post.Content)
	if err != nil {
		slog.Warn("render post content failed", "error", err, "post_id", post.ID)
	} else {
		post.ContentHTML = html
	}
	return post, nil
}

// Visible returns the post if the caller may read it, without rendering
// or counting a view. Sub-resources such as comments use it to inherit the
// post's visibility.
func (s *Service) Visible(ctx context.Context, caller authz.Caller, id uuid.UUID) (*models.Post, error) {
	return s.visible(ctx, caller, id.String())
}

func (s *Service) visible(ctx context.Context, caller authz.Caller, idOrSlug string) (*models.Post, error) {
	post, err := s.lookup(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if post == nil || (!post.IsPublished() && !authz.CanMutate(caller, post)) {
		return nil, apperr.NotFound("Post not found.")
	}
	return post, nil
}

func (s *Service) lookup(ctx context.Context, idOrSlug string) (*models.Post, error) {
	var (
		post *models.Post
		err  error
	)
	if id, perr := uuid.Parse(idOrSlug); perr == nil {
		post, err = s.posts.FindByID(ctx, id)
	} else {
		post, err = s.posts.FindBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load post.", err)
	}
	return post, nil
}

// List returns one page of posts. Only published posts are listed unless
// the caller filters by their own author id.
func (s *Service) List(ctx context.Context, caller authz.Caller, f models.PostFilter) (*models.PostPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	uid := authz.UserID(caller)
	f.AllStatuses = f.AuthorID != "" && uid != "" && f.AuthorID == uid

	items, total, err := s.posts.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("Failed to list posts.", err)
	}
	if items == nil {
		items = []models.Post{}
	}
	for i := range items {
		items[i].Excerpt = markdown.Excerpt(items[i].Content, ExcerptLength)
	}
	return &models.PostPage{
		Posts:      items,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

// UpdateStatus changes only a post's status.
func (s *Service) UpdateStatus(ctx context.Context, caller authz.Caller, id uuid.UUID, raw string) (*models.Post, error) {
	status, ok := models.ParseStatus(raw)
	if !ok {
		return nil, apperr.InvalidArgument("status", "Status must be one of draft, published or archived.")
	}

	post, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.posts.UpdateStatus(ctx, id, status, now); err != nil {
		return nil, apperr.Internal("Failed to update post status.", err)
	}
	post.Status = status
	post.UpdatedAt = now

	slog.Info("post status changed", "post_id", id, "status", status)
	s.changed(ctx, post)
	return post, nil
}

// Delete removes a post, then its featured image unless it is the
// placeholder. Image removal is best-effort.
func (s *Service) Delete(ctx context.Context, caller authz.Caller, id uuid.UUID) error {
	post, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return apperr.Internal("Failed to delete post.", err)
	}
	slog.Info("post deleted", "post_id", id)

	task := CleanupTask{PostID: id}
	if post.FeaturedImage != nil {
		task.Paths = append(task.Paths, *post.FeaturedImage)
	}
	s.runCleanup(ctx, task)

	for _, h := range s.hooks {
		h.PostDeleted(ctx, id)
	}
	return nil
}

// loadOwned fetches a post for mutation. The caller must be its author.
func (s *Service) loadOwned(ctx context.Context, caller authz.Caller, id uuid.UUID) (*models.Post, error) {
	if _, ok := caller.(authz.Authenticated); !ok {
		return nil, apperr.Unauthorized("Authentication required.")
	}
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load post.", err)
	}
	if post == nil {
		return nil, apperr.NotFound("Post not found.")
	}
	if !authz.CanMutate(caller, post) {
		return nil, apperr.Forbidden("You can only modify your own posts.")
	}
	return post, nil
}

// authorName resolves the display name for a new post's author.
func (s *Service) authorName(ctx context.Context, userID string) string {
	if s.directory == nil {
		return models.AnonymousAuthor
	}
	name, err := s.directory.DisplayName(ctx, userID)
	if err != nil {
		slog.Warn("resolve author name failed", "error", err, "user_id", userID)
		return models.AnonymousAuthor
	}
	if name == "" {
		return models.AnonymousAuthor
	}
	return name
}

// category checks a raw category reference, recording problems in fields.
func (s *Service) category(ctx context.Context, raw string, fields *apperr.FieldList) (*models.Category, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		fields.Add("category", "Invalid category ID.")
		return nil, nil
	}
	cat, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("Failed to load category.", err)
	}
	if cat == nil {
		fields.Add("category", "Category does not exist.")
	}
	return cat, nil
}

// uniqueSlug derives a slug from title that no other post uses.
func (s *Service) uniqueSlug(ctx context.Context, title string) (string, error) {
	return slug.Unique(ctx, title, s.posts.SlugExists)
}

// storeUpload saves an uploaded image, mapping type errors to validation.
func (s *Service) storeUpload(ctx context.Context, u storage.Upload) (string, error) {
	path, err := s.assets.Save(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return "", apperr.InvalidArgument("image", "Images only: JPEG or PNG.")
		}
		return "", apperr.Internal("Failed to store image.", err)
	}
	return path, nil
}

// checkImagePath validates a previously uploaded image reference. Apart
// from the placeholder, a path may only be claimed while no post uses it.
func (s *Service) checkImagePath(ctx context.Context, p string, fields *apperr.FieldList) error {
	if p == s.placeholder {
		return nil
	}
	ok, err := s.assets.Exists(ctx, p)
	if err != nil {
		return apperr.Internal("Failed to check image.", err)
	}
	if !ok {
		fields.Add("image", "Image has not been uploaded.")
		return nil
	}
	inUse, err := s.posts.ImageInUse(ctx, p)
	if err != nil {
		return apperr.Internal("Failed to check image.", err)
	}
	if inUse {
		fields.Add("image", "Image is already used by another post.")
	}
	return nil
}

// discard removes an asset stored during a request that then failed.
func (s *Service) discard(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.assets.Delete(context.WithoutCancel(ctx), path); err != nil {
		slog.Warn("remove orphaned upload failed", "error", err, "path", path)
	}
}

func (s *Service) runCleanup(ctx context.Context, task CleanupTask) {
	task = s.unreferenced(ctx, task)
	if task.Empty() {
		return
	}
	s.cleanup.Run(context.WithoutCancel(ctx), task)
}

// unreferenced drops paths some post still points at. A path whose
// references cannot be checked is kept on storage.
func (s *Service) unreferenced(ctx context.Context, task CleanupTask) CleanupTask {
	var paths []string
	for _, p := range task.Paths {
		if p == s.placeholder {
			continue
		}
		inUse, err := s.posts.ImageInUse(context.WithoutCancel(ctx), p)
		if err != nil {
			slog.Warn("check image references failed", "error", err, "post_id", task.PostID, "path", p)
			continue
		}
		if inUse {
			slog.Info("asset kept, still referenced", "post_id", task.PostID, "path", p)
			continue
		}
		paths = append(paths, p)
	}
	task.Paths = paths
	return task
}

func (s *Service) changed(ctx context.Context, p *models.Post) {
	for _, h := range s.hooks {
		h.PostChanged(ctx, p)
	}
}
