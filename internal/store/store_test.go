// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"postdesk/internal/database"
	"postdesk/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "postdesk")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "postdesk")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", testDSN())
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// cleanUsers removes test users by username. Call in t.Cleanup().
func cleanUsers(t *testing.T, db *sql.DB, usernames ...string) {
	t.Helper()
	for _, name := range usernames {
		db.Exec("DELETE FROM users WHERE username = $1", name)
	}
}

// testCategory inserts a throwaway category and removes it, with its
// posts, when the test ends.
func testCategory(t *testing.T, db *sql.DB) *models.Category {
	t.Helper()
	c, err := NewCategoryStore(db).Create(context.Background(), &models.Category{
		Name: "store-test-" + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM posts WHERE category_id = $1", c.ID)
		db.Exec("DELETE FROM categories WHERE id = $1", c.ID)
	})
	return c
}
