// Package main is the entry point for the Postdesk API server and its
// maintenance commands. Without arguments it serves HTTP; see usage for
// the one-off backfill and reindex commands.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postdesk/internal/cache"
	"postdesk/internal/config"
	"postdesk/internal/database"
	"postdesk/internal/handlers"
	"postdesk/internal/middleware"
	"postdesk/internal/posts"
	"postdesk/internal/router"
	"postdesk/internal/search"
	"postdesk/internal/session"
	"postdesk/internal/storage"
	"postdesk/internal/store"
	"postdesk/internal/views"
)

const usage = `usage: postdesk [command]

commands:
  serve                      run the HTTP API (default)
  backfill-tags              derive tags for posts stored without any
  backfill-category-author   mark categories without an owner as templates
  reindex                    rebuild the Meilisearch index from published posts
`

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg)
	case "backfill-tags":
		err = withDB(cfg, func(db *sql.DB) error { return backfillTags(ctx, store.NewPostStore(db)) })
	case "backfill-category-author":
		err = withDB(cfg, func(db *sql.DB) error { return backfillCategoryAuthor(ctx, store.NewCategoryStore(db)) })
	case "reindex":
		err = withDB(cfg, func(db *sql.DB) error { return reindex(ctx, cfg, store.NewPostStore(db)) })
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// withDB connects to PostgreSQL, applies pending migrations and runs fn.
func withDB(cfg *config.Config, fn func(db *sql.DB) error) error {
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return fn(db)
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"asset_backend", cfg.AssetBackend,
	)

	return withDB(cfg, func(db *sql.DB) error {
		// Seed development data (no-op if data already exists).
		if cfg.IsDev() {
			if err := database.Seed(db); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
		}

		// Valkey backs sessions and the listing cache.
		valkeyClient, err := cache.ConnectValkey(cfg.ValkeyAddr(), cfg.ValkeyPassword)
		if err != nil {
			return fmt.Errorf("connect valkey: %w", err)
		}
		defer valkeyClient.Close()

		sessionStore := session.NewStore(valkeyClient, !cfg.IsDev())
		listCache := cache.NewListCache(valkeyClient, cache.DefaultListTTL)

		postStore := store.NewPostStore(db)
		categoryStore := store.NewCategoryStore(db)
		commentStore := store.NewCommentStore(db)
		userStore := store.NewUserStore(db)

		assets, uploadDir, err := assetStore(cfg)
		if err != nil {
			return err
		}

		// Meilisearch is optional; without it search runs on Postgres.
		var index search.Index
		if cfg.MeiliURL != "" {
			meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
			defer meili.Close()
			index = meili
		} else {
			slog.Warn("meilisearch not configured, using postgres full-text search")
		}
		searcher := search.NewService(index, postStore)

		postService := posts.New(posts.Config{
			Posts:       postStore,
			Categories:  categoryStore,
			Directory:   userStore,
			Assets:      assets,
			Views:       views.NewTracker(postStore, cfg.ViewWindow),
			Hooks:       []posts.ChangeHook{listCache, searcher},
			Placeholder: cfg.DefaultImagePath,
		})

		authLimit := middleware.NewRateLimiter(10, time.Minute)
		defer authLimit.Stop()
		uploadLimit := middleware.NewRateLimiter(30, time.Minute)
		defer uploadLimit.Stop()

		pingValkey := func(ctx context.Context) error { return valkeyClient.Ping(ctx).Err() }
		checks := map[string]handlers.Pinger{
			"postgres": db,
			"valkey":   handlers.PingFunc(pingValkey),
		}

		r := router.New(router.Deps{
			Sessions:       sessionStore,
			AllowedOrigins: cfg.AllowedOrigins,
			Posts:          handlers.NewPosts(postService, searcher, listCache),
			Comments:       handlers.NewComments(postService, commentStore, userStore),
			Categories:     handlers.NewCategories(categoryStore, listCache),
			Upload:         handlers.NewUpload(assets),
			Auth:           handlers.NewAuth(sessionStore, userStore),
			Health:         handlers.NewHealth(checks),
			AuthLimit:      authLimit,
			UploadLimit:    uploadLimit,
			UploadDir:      uploadDir,
			UploadPrefix:   cfg.UploadURLPrefix,
		})

		srv := &http.Server{
			Addr:         cfg.Addr(),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("server starting", "addr", cfg.Addr())
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("listen: %w", err)
		case <-ctx.Done():
			slog.Info("shutdown signal received")
		}

		// Give active requests up to 30 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		slog.Info("server stopped gracefully")
		return nil
	})
}

// assetStore builds the configured image backend. For the filesystem
// backend it also returns the directory to serve statically.
func assetStore(cfg *config.Config) (storage.AssetStore, string, error) {
	if cfg.AssetBackend == "s3" {
		s3, err := storage.NewS3(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3Bucket, cfg.S3PublicURL, "")
		if err != nil {
			return nil, "", fmt.Errorf("init s3 storage: %w", err)
		}
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		return s3, "", nil
	}
	fs, err := storage.NewFS(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		return nil, "", err
	}
	return fs, fs.Dir(), nil
}
