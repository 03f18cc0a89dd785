// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// PostStatus represents the publishing state of a post. Any status may
// move to any other status.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// ParseStatus validates a raw status value.
func ParseStatus(s string) (PostStatus, bool) {
	switch PostStatus(s) {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return PostStatus(s), true
	}
	return "", false
}

// ViewEntry records when a user last counted toward a post's views.
type ViewEntry struct {
	UserID     string    `json:"userId"`
	LastViewed time.Time `json:"lastViewed"`
}

// Post is a unit of publishable content.
type Post struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	Slug          string      `json:"slug"`
	Content       string      `json:"content"`
	ContentHTML   string      `json:"contentHtml,omitempty"`
	Excerpt       string      `json:"excerpt,omitempty"`
	CategoryID    uuid.UUID   `json:"categoryId"`
	Category      *Category   `json:"category,omitempty"`
	Status        PostStatus  `json:"status"`
	Author        string      `json:"author"`
	AuthorID      string      `json:"authorId"`
	Tags          []string    `json:"tags"`
	FeaturedImage *string     `json:"featuredImage"`
	ViewCount     int         `json:"viewCount"`
	ViewedBy      []ViewEntry `json:"viewedBy"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// OwnerID returns the identity allowed to mutate the post.
func (p *Post) OwnerID() string {
	return p.AuthorID
}

// IsPublished returns true if the post is publicly visible.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// FindView returns the viewedBy entry for userID, or nil.
func (p *Post) FindView(userID string) *ViewEntry {
	for i := range p.ViewedBy {
		if p.ViewedBy[i].UserID == userID {
			return &p.ViewedBy[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() Post {
	c := *p
	c.Tags = slices.Clone(p.Tags)
	c.ViewedBy = slices.Clone(p.ViewedBy)
	if p.FeaturedImage != nil {
		img := *p.FeaturedImage
		c.FeaturedImage = &img
	}
	if p.Category != nil {
		cat := *p.Category
		c.Category = &cat
	}
	return c
}

// PostFilter narrows a post listing.
type PostFilter struct {
	Page       int
	Limit      int
	CategoryID *uuid.UUID
	Tag        string
	AuthorID   string

	// AllStatuses includes drafts and archived posts. Only set when the
	// caller is listing their own posts.
	AllStatuses bool
}

// Offset returns the row offset for the filter's page.
func (f PostFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// PostPage is one page of a post listing.
type PostPage struct {
	Posts      []Post `json:"posts"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}
