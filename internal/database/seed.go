package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// seedUser is a development account created on an empty database.
type seedUser struct {
	username string
	fullName string
	role     string
}

var seedUsers = []seedUser{
	{username: "admin", fullName: "Admin", role: "admin"},
	{username: "editor", fullName: "Editor", role: "editor"},
	{username: "viewer", fullName: "", role: "viewer"},
}

// seedCategories become system templates that editors can clone.
var seedCategories = []struct{ name, description string }{
	{"General", "Posts that don't fit anywhere else."},
	{"Technology", "Software, hardware and the web."},
	{"Lifestyle", "Travel, food and everyday life."},
}

// Seed populates the database with initial development data: one account
// per role (the password equals the username) and a few template
// categories. Each part is skipped when its table already has rows.
func Seed(db *sql.DB) error {
	if err := seedAccounts(db); err != nil {
		return err
	}
	return seedTemplates(db)
}

func seedAccounts(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}
	if count > 0 {
		slog.Info("users already seeded, skipping")
		return nil
	}

	for _, u := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.username), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("seed bcrypt: %w", err)
		}
		_, err = db.Exec(`
			INSERT INTO users (username, password_hash, full_name, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (username) DO NOTHING
		`, u.username, string(hash), u.fullName, u.role)
		if err != nil {
			return fmt.Errorf("seed insert user %s: %w", u.username, err)
		}
		slog.Info("seeded user", "username", u.username, "password", u.username, "role", u.role)
	}
	return nil
}

func seedTemplates(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("seed check categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, c := range seedCategories {
		_, err := db.Exec(`
			INSERT INTO categories (name, description, author_id)
			VALUES ($1, $2, 'system-template')
		`, c.name, c.description)
		if err != nil {
			return fmt.Errorf("seed insert category %s: %w", c.name, err)
		}
	}
	slog.Info("seeded template categories", "count", len(seedCategories))
	return nil
}
