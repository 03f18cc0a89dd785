// Package router sets up the HTTP routes and middleware chains for the
// Postdesk API. Reads are public, mutations require a session, and
// authoring requires the editor or admin role.
package router

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"postdesk/internal/authz"
	"postdesk/internal/handlers"
	"postdesk/internal/middleware"
)

// Deps carries everything the router mounts.
type Deps struct {
	Sessions       middleware.SessionLoader
	AllowedOrigins []string

	Posts      *handlers.Posts
	Comments   *handlers.Comments
	Categories *handlers.Categories
	Upload     *handlers.Upload
	Auth       *handlers.Auth
	Health     *handlers.Health

	// AuthLimit throttles login and registration; UploadLimit throttles
	// image uploads. Either may be nil.
	AuthLimit   *middleware.RateLimiter
	UploadLimit *middleware.RateLimiter

	// UploadDir, when set, is served as static files under UploadPrefix.
	UploadDir    string
	UploadPrefix string
}

// New creates the chi router with all middleware and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(middleware.LoadIdentity(d.Sessions))

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", d.Health.Check)

	if d.UploadDir != "" {
		prefix := "/" + strings.Trim(d.UploadPrefix, "/")
		static := http.StripPrefix(prefix+"/", http.FileServer(noListing{http.Dir(d.UploadDir)}))
		r.Handle(prefix+"/*", static)
	}

	r.Route("/api", func(r chi.Router) {
		// Auth. Verify accepts the pending session left by a password-only
		// login, so it sits outside RequireAuth.
		r.Route("/auth", func(r chi.Router) {
			r.With(limit(d.AuthLimit)).Post("/register", d.Auth.Register)
			r.With(limit(d.AuthLimit)).Post("/login", d.Auth.Login)
			r.With(limit(d.AuthLimit)).Post("/2fa/verify", d.Auth.Verify)
			r.Post("/logout", d.Auth.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/me", d.Auth.Me)
				r.Post("/2fa/setup", d.Auth.Setup2FA)
				r.Post("/2fa/enable", d.Auth.Enable2FA)
			})
		})

		// Public reads.
		r.Get("/posts", d.Posts.List)
		r.Get("/posts/search", d.Posts.Search)
		r.Get("/posts/{id}", d.Posts.Get)
		r.Get("/posts/{id}/comments", d.Comments.List)
		r.Get("/categories", d.Categories.List)

		// Any signed-in user; ownership is checked per resource.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Put("/posts/{id}", d.Posts.Update)
			r.Patch("/posts/{id}/status", d.Posts.UpdateStatus)
			r.Delete("/posts/{id}", d.Posts.Delete)

			r.Post("/posts/{id}/comments", d.Comments.Create)
			r.Put("/posts/{id}/comments/{commentId}", d.Comments.Update)
			r.Delete("/posts/{id}/comments/{commentId}", d.Comments.Delete)
		})

		// Authoring.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(authz.RoleEditor, authz.RoleAdmin))
			r.Post("/posts", d.Posts.Create)
			r.With(limit(d.UploadLimit)).Post("/upload", d.Upload.Create)

			r.Post("/categories", d.Categories.Create)
			r.Put("/categories/{id}", d.Categories.Update)
			r.Delete("/categories/{id}", d.Categories.Delete)
			r.Post("/categories/{id}/clone", d.Categories.Clone)
		})
	})

	return r
}

// limit returns rl's middleware, or a pass-through when rl is nil.
func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not found."}` + "\n"))
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	w.Write([]byte(`{"error":"Method not allowed."}` + "\n"))
}

// noListing hides directory indexes from the static file server.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
