// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"postdesk/internal/authz"
	"postdesk/internal/session"
)

type contextKey string

// SessionKey is the context key for the session data.
const SessionKey contextKey = "session"

// SessionLoader reads the session attached to a request.
type SessionLoader interface {
	Get(ctx context.Context, r *http.Request) (*session.Data, error)
}

// LoadIdentity resolves the request's session and stores both the session
// and the derived authz.Caller in the context. Requests without a complete
// session continue as authz.Anonymous.
func LoadIdentity(store SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				slog.Warn("load session failed", "error", err)
			}

			ctx := r.Context()
			if data != nil {
				ctx = context.WithValue(ctx, SessionKey, data)
			}
			ctx = authz.WithCaller(ctx, CallerFromSession(data))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromSession maps session data to a caller. Sessions still waiting
// on a second factor are anonymous.
func CallerFromSession(data *session.Data) authz.Caller {
	if data == nil || !data.TwoFADone {
		return authz.Anonymous{}
	}
	return authz.Authenticated{
		UserID: data.UserID.String(),
		Role:   authz.NormalizeRole(data.Role),
	}
}

// RequireAuth rejects anonymous callers with 401.
// Must be applied after LoadIdentity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authz.FromContext(r.Context()).(authz.Authenticated); !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects callers whose role is not in roles: 401 when
// anonymous, 403 otherwise.
func RequireRole(roles ...authz.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := authz.FromContext(r.Context()).(authz.Authenticated)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required.")
				return
			}
			if !slices.Contains(roles, c.Role) {
				writeError(w, http.StatusForbidden, "You do not have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromCtx extracts the session data from the request context.
// Returns nil if no session is loaded.
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(SessionKey).(*session.Data)
	return data
}
