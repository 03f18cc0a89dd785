package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"postdesk/internal/models"
)

// CommentStore manages comments on posts.
type CommentStore struct {
	db *sql.DB
}

// NewCommentStore returns a new CommentStore.
func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

const commentColumns = `id, post_id, user_id, author, body, created_at, updated_at`

func scanComment(scanner interface{ Scan(...any) error }) (*models.Comment, error) {
	var c models.Comment
	if err := scanner.Scan(&c.ID, &c.PostID, &c.UserID, &c.Author, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByPost returns a post's comments, oldest first.
func (s *CommentStore) ListByPost(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// FindByID retrieves a comment. Returns nil if not found.
func (s *CommentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

// Create inserts a comment and returns the stored row.
func (s *CommentStore) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	out, err := scanComment(s.db.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, user_id, author, body)
		VALUES ($1, $2, $3, $4)
		RETURNING `+commentColumns,
		c.PostID, c.UserID, c.Author, c.Body,
	))
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return out, nil
}

// UpdateBody replaces a comment's body.
func (s *CommentStore) UpdateBody(ctx context.Context, id uuid.UUID, body string) (*models.Comment, error) {
	out, err := scanComment(s.db.QueryRowContext(ctx, `
		UPDATE comments SET body = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+commentColumns,
		body, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return out, nil
}

// Delete removes a comment.
func (s *CommentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
