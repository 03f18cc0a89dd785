// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the route table, the middleware chains and
// static upload serving.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"postdesk/internal/handlers"
	"postdesk/internal/middleware"
	"postdesk/internal/session"
)

// headerSessions resolves a session from the X-Role header.
type headerSessions struct{}

func (headerSessions) Get(_ context.Context, r *http.Request) (*session.Data, error) {
	role := r.Header.Get("X-Role")
	if role == "" {
		return nil, nil
	}
	return &session.Data{UserID: uuid.New(), Role: role, TwoFADone: true}, nil
}

func newTestRouter(t *testing.T, mutate func(*Deps)) http.Handler {
	t.Helper()
	d := Deps{
		Sessions:       headerSessions{},
		AllowedOrigins: []string{"https://app.example.com"},
		Posts:          handlers.NewPosts(nil, nil, nil),
		Comments:       handlers.NewComments(nil, nil, nil),
		Categories:     handlers.NewCategories(nil, nil),
		Upload:         handlers.NewUpload(nil),
		Auth:           handlers.NewAuth(nil, nil),
		Health:         handlers.NewHealth(nil),
	}
	if mutate != nil {
		mutate(&d)
	}
	return New(d)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthRoute(t *testing.T) {
	rr := serve(newTestRouter(t, nil), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: got %q", ct)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %v, want ok", body["status"])
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `"error"`) {
		t.Errorf("GET /api/nope: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(h, httptest.NewRequest(http.MethodPatch, "/health", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH /health: got %d, want 405", rr.Code)
	}
}

func TestProtectedRoutes(t *testing.T) {
	h := newTestRouter(t, nil)
	id := uuid.NewString()

	tests := []struct {
		method string
		path   string
		role   string
		want   int
	}{
		{http.MethodPost, "/api/posts", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/posts", "viewer", http.StatusForbidden},
		{http.MethodPut, "/api/posts/" + id, "", http.StatusUnauthorized},
		{http.MethodPatch, "/api/posts/" + id + "/status", "", http.StatusUnauthorized},
		{http.MethodDelete, "/api/posts/" + id, "", http.StatusUnauthorized},
		{http.MethodPost, "/api/posts/" + id + "/comments", "", http.StatusUnauthorized},
		{http.MethodDelete, "/api/posts/" + id + "/comments/" + id, "", http.StatusUnauthorized},
		{http.MethodPost, "/api/upload", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/upload", "viewer", http.StatusForbidden},
		{http.MethodPost, "/api/categories", "viewer", http.StatusForbidden},
		{http.MethodDelete, "/api/categories/" + id, "", http.StatusUnauthorized},
		{http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/auth/2fa/setup", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path+" "+tt.role, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("X-Role", tt.role)
			}
			if rr := serve(h, req); rr.Code != tt.want {
				t.Errorf("got %d, want %d; body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := serve(h, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin: got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	if rr := serve(h, req); rr.Code != http.StatusForbidden {
		t.Errorf("foreign origin: got %d, want 403", rr.Code)
	}
}

func TestAuthRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(1, time.Minute)
	t.Cleanup(rl.Stop)
	h := newTestRouter(t, func(d *Deps) { d.AuthLimit = rl })

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		return serve(h, req).Code
	}
	// The first request reaches the handler and fails validation.
	if got := post(); got != http.StatusBadRequest {
		t.Fatalf("first: got %d, want 400", got)
	}
	if got := post(); got != http.StatusTooManyRequests {
		t.Errorf("second: got %d, want 429", got)
	}
}

func TestStaticUploads(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "image-1.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newTestRouter(t, func(d *Deps) {
		d.UploadDir = dir
		d.UploadPrefix = "/uploads"
	})

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/uploads/image-1.png", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "png-bytes" {
		t.Errorf("GET file: %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("directory listing: got %d, want 404", rr.Code)
	}

	rr = serve(h, httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing file: got %d, want 404", rr.Code)
	}
}
