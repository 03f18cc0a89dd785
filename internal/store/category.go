// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"postdesk/internal/models"
)

// CategoryStore manages categories in the database.
type CategoryStore struct {
	db *sql.DB
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, description, author_id, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	err := scanner.Scan(&c.ID, &c.Name, &c.Description, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all categories ordered by name, with post counts.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.author_id, c.created_at, c.updated_at,
		       COUNT(p.id) AS post_count
		FROM categories c
		LEFT JOIN posts p ON p.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name, c.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := []models.Category{}
	for rows.Next() {
		var c models.Category
		err := rows.Scan(
			&c.ID, &c.Name, &c.Description, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt,
			&c.PostCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (s *CategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// Create inserts a new category and returns it.
func (s *CategoryStore) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, description, author_id)
		VALUES ($1, $2, $3)
		RETURNING `+categoryColumns,
		c.Name, c.Description, c.AuthorID,
	)
	result, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return result, nil
}

// Update modifies a category's name and description.
func (s *CategoryStore) Update(ctx context.Context, c *models.Category) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE categories SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING `+categoryColumns,
		c.Name, c.Description, c.ID,
	)
	result, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return result, nil
}

// Delete removes a category by ID.
func (s *CategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// CountPosts returns how many posts reference the category.
func (s *CategoryStore) CountPosts(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE category_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count category posts: %w", err)
	}
	return n, nil
}

// AssignTemplateAuthor marks every category without an author as a system
// template and returns how many rows changed.
func (s *CategoryStore) AssignTemplateAuthor(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET author_id = $1, updated_at = NOW() WHERE author_id IS NULL`,
		models.SystemTemplateAuthor,
	)
	if err != nil {
		return 0, fmt.Errorf("assign template author: %w", err)
	}
	return res.RowsAffected()
}
