// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"

	"postdesk/internal/authz"
)

// AnonymousAuthor is the display name used when an identity has neither a
// full name nor a username.
const AnonymousAuthor = "Anonymous"

// User is an account known to the identity provider.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"fullName"`
	PasswordHash string     `json:"-"` // Never serialize the hash
	Role         authz.Role `json:"role"`
	TOTPSecret   *string    `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled  bool       `json:"totpEnabled"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// DisplayName resolves the name shown as a post's author: full name, else
// username, else "Anonymous".
func (u *User) DisplayName() string {
	if u == nil {
		return AnonymousAuthor
	}
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return AnonymousAuthor
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == authz.RoleAdmin
}
