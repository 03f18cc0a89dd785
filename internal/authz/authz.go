// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package authz models who is making a request and what they may change.
//
// A request is made by exactly one Caller: either Anonymous or
// Authenticated. Code that behaves differently for the two cases switches
// on the concrete type instead of probing for optional fields.
package authz

import "context"

// Role is a caller classification issued by the identity provider.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// CanAuthor reports whether the role may create posts and categories.
func (r Role) CanAuthor() bool {
	return r == RoleEditor || r == RoleAdmin
}

// NormalizeRole maps unknown values to the least privileged role.
func NormalizeRole(role string) Role {
	r := Role(role)
	if r.Valid() {
		return r
	}
	return RoleViewer
}

// Caller is the actor behind a request. The set of implementations is
// closed: Anonymous and Authenticated.
type Caller interface {
	caller()
}

// Anonymous is a caller without a session.
type Anonymous struct{}

// Authenticated is a caller with a verified identity.
type Authenticated struct {
	UserID string
	Role   Role
}

func (Anonymous) caller()     {}
func (Authenticated) caller() {}

// Owned is implemented by resources with a single owner key.
type Owned interface {
	OwnerID() string
}

// CanMutate is the single authorization predicate applied before every
// mutating operation: only the resource owner may change or delete it.
func CanMutate(c Caller, resource Owned) bool {
	switch c := c.(type) {
	case Authenticated:
		owner := resource.OwnerID()
		return owner != "" && c.UserID != "" && owner == c.UserID
	default:
		return false
	}
}

// IsViewer reports whether the caller counts toward view statistics.
func IsViewer(c Caller) bool {
	switch c := c.(type) {
	case Authenticated:
		return c.Role == RoleViewer
	default:
		return false
	}
}

// UserID returns the caller's user id, or "" for anonymous callers.
func UserID(c Caller) string {
	if a, ok := c.(Authenticated); ok {
		return a.UserID
	}
	return ""
}

type ctxKey struct{}

// WithCaller returns a context carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Caller {
	if c, ok := ctx.Value(ctxKey{}).(Caller); ok && c != nil {
		return c
	}
	return Anonymous{}
}
