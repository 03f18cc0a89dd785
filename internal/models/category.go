// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemTemplateAuthor marks a category as a reusable template rather than
// one owned by an editor.
const SystemTemplateAuthor = "system-template"

// Category is a named grouping assigned to posts.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AuthorID    *string   `json:"authorId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Virtual field populated by list queries.
	PostCount int `json:"postCount"`
}

// OwnerID returns the owning editor, or "" for unowned and template categories.
func (c *Category) OwnerID() string {
	if c.AuthorID == nil || *c.AuthorID == SystemTemplateAuthor {
		return ""
	}
	return *c.AuthorID
}

// IsTemplate reports whether the category is a system template.
func (c *Category) IsTemplate() bool {
	return c.AuthorID != nil && *c.AuthorID == SystemTemplateAuthor
}
