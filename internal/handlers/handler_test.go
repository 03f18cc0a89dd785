// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared in-memory fakes and a router wired like
// production for the handler tests.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"postdesk/internal/authz"
	"postdesk/internal/cache"
	"postdesk/internal/middleware"
	"postdesk/internal/models"
	"postdesk/internal/posts"
	"postdesk/internal/storage"
	"postdesk/internal/views"
)

const testPlaceholder = "/uploads/default-placeholder.png"

// ---------- posts ----------

type memPosts struct {
	mu    sync.Mutex
	posts map[uuid.UUID]models.Post
}

func (r *memPosts) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	c := p.Clone()
	return &c, nil
}

func (r *memPosts) FindBySlug(_ context.Context, s string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.Slug == s {
			c := p.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memPosts) List(_ context.Context, f models.PostFilter) ([]models.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Post
	for _, p := range r.posts {
		if !f.AllStatuses && !p.IsPublished() {
			continue
		}
		if f.AuthorID != "" && p.AuthorID != f.AuthorID {
			continue
		}
		if f.Tag != "" && !slices.Contains(p.Tags, f.Tag) {
			continue
		}
		if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	total := len(out)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return out[start:end], total, nil
}

func (r *memPosts) Create(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[p.ID] = p.Clone()
	return nil
}

func (r *memPosts) Update(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[p.ID] = p.Clone()
	return nil
}

func (r *memPosts) UpdateStatus(_ context.Context, id uuid.UUID, st models.PostStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[id]
	p.Status, p.UpdatedAt = st, at
	r.posts[id] = p
	return nil
}

func (r *memPosts) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

func (r *memPosts) SlugExists(_ context.Context, s string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.Slug == s {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPosts) ImageInUse(_ context.Context, path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.FeaturedImage != nil && *p.FeaturedImage == path {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPosts) RecordView(_ context.Context, id uuid.UUID, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[id]
	p.ViewCount++
	if e := p.FindView(userID); e != nil {
		e.LastViewed = at
	} else {
		p.ViewedBy = append(p.ViewedBy, models.ViewEntry{UserID: userID, LastViewed: at})
	}
	r.posts[id] = p
	return nil
}

func (r *memPosts) get(id uuid.UUID) (models.Post, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	return p, ok
}

// ---------- categories ----------

type memCategories struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.Category
	posts *memPosts
}

func (m *memCategories) List(context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Category
	for _, c := range m.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memCategories) FindByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memCategories) Create(_ context.Context, c *models.Category) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *c
	out.ID = uuid.New()
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	m.items[out.ID] = out
	return &out, nil
}

func (m *memCategories) Update(_ context.Context, c *models.Category) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[c.ID]
	if !ok {
		return nil, nil
	}
	cur.Name, cur.Description = c.Name, c.Description
	m.items[c.ID] = cur
	return &cur, nil
}

func (m *memCategories) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memCategories) CountPosts(_ context.Context, id uuid.UUID) (int, error) {
	m.posts.mu.Lock()
	defer m.posts.mu.Unlock()
	n := 0
	for _, p := range m.posts.posts {
		if p.CategoryID == id {
			n++
		}
	}
	return n, nil
}

func (m *memCategories) add(name string, author *string) models.Category {
	c, _ := m.Create(context.Background(), &models.Category{Name: name, AuthorID: author})
	return *c
}

// ---------- comments ----------

type memComments struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.Comment
}

func (m *memComments) ListByPost(_ context.Context, postID uuid.UUID) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Comment
	for _, c := range m.items {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memComments) FindByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memComments) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *c
	out.ID = uuid.New()
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	m.items[out.ID] = out
	return &out, nil
}

func (m *memComments) UpdateBody(_ context.Context, id uuid.UUID, body string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	c.Body = body
	m.items[id] = c
	return &c, nil
}

func (m *memComments) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// ---------- users ----------

type memUsers struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.User
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *memUsers) Create(_ context.Context, username, password, fullName string, role authz.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		FullName:     fullName,
		PasswordHash: string(hash),
		Role:         role,
	}
	m.mu.Lock()
	m.items[u.ID] = u
	m.mu.Unlock()
	c := *u
	return &c, nil
}

func (m *memUsers) UsernameTaken(ctx context.Context, username string) (bool, error) {
	u, err := m.FindByUsername(ctx, username)
	return u != nil, err
}

func (m *memUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].TOTPSecret = &secret
	return nil
}

func (m *memUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].TOTPEnabled = true
	return nil
}

func (m *memUsers) CheckPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (m *memUsers) DisplayName(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return models.AnonymousAuthor, nil
	}
	u, err := m.FindByID(ctx, id)
	return u.DisplayName(), err
}

// ---------- search ----------

type stubSearch struct {
	results []models.Post
	queries []string
}

func (s *stubSearch) Search(_ context.Context, q string, _ int) []models.Post {
	s.queries = append(s.queries, q)
	return s.results
}

// ---------- environment ----------

type testEnv struct {
	handler  http.Handler
	posts    *memPosts
	cats     *memCategories
	comments *memComments
	users    *memUsers
	assets   *storage.FS
	search   *stubSearch
	redis    *miniredis.Miniredis
	category models.Category
}

// callerHeader carries "userID:role" for requests in tests, standing in
// for a real session.
const callerHeader = "X-Test-Caller"

func testIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c authz.Caller = authz.Anonymous{}
		if v := r.Header.Get(callerHeader); v != "" {
			id, role, _ := strings.Cut(v, ":")
			c = authz.Authenticated{UserID: id, Role: authz.Role(role)}
		}
		next.ServeHTTP(w, r.WithContext(authz.WithCaller(r.Context(), c)))
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	assets, err := storage.NewFS(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(assets.Dir(), "default-placeholder.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	listings := cache.NewListCache(rdb, time.Minute)

	env := &testEnv{
		posts:    &memPosts{posts: map[uuid.UUID]models.Post{}},
		comments: &memComments{items: map[uuid.UUID]models.Comment{}},
		users:    &memUsers{items: map[uuid.UUID]*models.User{}},
		assets:   assets,
		search:   &stubSearch{},
		redis:    mr,
	}
	env.cats = &memCategories{items: map[uuid.UUID]models.Category{}, posts: env.posts}
	owner := "editor-1"
	env.category = env.cats.add("Engineering", &owner)

	svc := posts.New(posts.Config{
		Posts:       env.posts,
		Categories:  env.cats,
		Directory:   env.users,
		Assets:      assets,
		Views:       views.NewTracker(env.posts, views.DefaultWindow),
		Hooks:       []posts.ChangeHook{listings},
		Placeholder: testPlaceholder,
	})

	ph := NewPosts(svc, env.search, listings)
	ch := NewComments(svc, env.comments, env.users)
	cat := NewCategories(env.cats, listings)
	up := NewUpload(assets)

	r := chi.NewRouter()
	r.Use(testIdentity)
	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", ph.List)
		r.Get("/posts/search", ph.Search)
		r.Get("/posts/{id}", ph.Get)
		r.Get("/posts/{id}/comments", ch.List)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/posts/{id}/comments", ch.Create)
			r.Put("/posts/{id}/comments/{commentId}", ch.Update)
			r.Delete("/posts/{id}/comments/{commentId}", ch.Delete)
			r.Put("/posts/{id}", ph.Update)
			r.Patch("/posts/{id}/status", ph.UpdateStatus)
			r.Delete("/posts/{id}", ph.Delete)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(authz.RoleEditor, authz.RoleAdmin))
			r.Post("/posts", ph.Create)
			r.Post("/upload", up.Create)
			r.Post("/categories", cat.Create)
			r.Put("/categories/{id}", cat.Update)
			r.Delete("/categories/{id}", cat.Delete)
			r.Post("/categories/{id}/clone", cat.Clone)
		})
		r.Get("/categories", cat.List)
	})
	env.handler = r
	return env
}

var (
	editorCaller  = authz.Authenticated{UserID: "editor-1", Role: authz.RoleEditor}
	editor2Caller = authz.Authenticated{UserID: "editor-2", Role: authz.RoleEditor}
	viewerCaller  = authz.Authenticated{UserID: "viewer-1", Role: authz.RoleViewer}
	adminCaller   = authz.Authenticated{UserID: "admin-1", Role: authz.RoleAdmin}
)

func (e *testEnv) do(t *testing.T, method, path string, caller authz.Caller, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a, ok := caller.(authz.Authenticated); ok {
		req.Header.Set(callerHeader, a.UserID+":"+string(a.Role))
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(t *testing.T, method, path string, caller authz.Caller, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	return e.do(t, method, path, caller, "application/json", body)
}

// formFile is an image part in a multipart request.
type formFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, file *formFile) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(file.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType(), &buf
}

func pngFile(name string) *formFile {
	return &formFile{name: name, contentType: "image/png", data: []byte("\x89PNG\r\n\x1a\n fake " + name)}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

// createPost creates a post through the API as caller.
func (e *testEnv) createPost(t *testing.T, caller authz.Caller, fields map[string]string) models.Post {
	t.Helper()
	body := map[string]string{
		"title":    "Hello World",
		"content":  "Body text",
		"category": e.category.ID.String(),
	}
	for k, v := range fields {
		body[k] = v
	}
	rr := e.doJSON(t, http.MethodPost, "/api/posts", caller, body)
	expectStatus(t, rr, http.StatusCreated)
	return decode[models.Post](t, rr)
}
