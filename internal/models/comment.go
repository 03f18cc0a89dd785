package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a reader's note attached to a post.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"postId"`
	UserID    string    `json:"userId"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerID returns the comment's author identity.
func (c *Comment) OwnerID() string {
	return c.UserID
}
