// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"postdesk/internal/models"
)

// PostStore handles post persistence, including the per-user view rows
// that make up a post's viewedBy list.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

// postSelect joins each post with its category so reads return the
// category embedded.
const postSelect = `
	SELECT p.id, p.title, p.slug, p.content, p.category_id, p.status,
	       p.author, p.author_id, p.tags, p.featured_image, p.view_count,
	       p.created_at, p.updated_at,
	       c.id, c.name, c.description, c.author_id, c.created_at, c.updated_at
	FROM posts p
	JOIN categories c ON c.id = p.category_id`

// scanPost scans a postSelect row. m decodes the tags array and must not
// be shared between goroutines.
func scanPost(m *pgtype.Map, scanner interface{ Scan(...any) error }) (*models.Post, error) {
	var (
		p   models.Post
		cat models.Category
	)
	err := scanner.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Content, &p.CategoryID, &p.Status,
		&p.Author, &p.AuthorID, m.SQLScanner(&p.Tags), &p.FeaturedImage, &p.ViewCount,
		&p.CreatedAt, &p.UpdatedAt,
		&cat.ID, &cat.Name, &cat.Description, &cat.AuthorID, &cat.CreatedAt, &cat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Category = &cat
	p.ViewedBy = []models.ViewEntry{}
	return &p, nil
}

// FindByID retrieves a post with its category and viewedBy list.
// Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.findOne(ctx, postSelect+` WHERE p.id = $1`, id)
}

// FindBySlug retrieves a post by its slug. Returns nil if not found.
func (s *PostStore) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findOne(ctx, postSelect+` WHERE p.slug = $1`, slug)
}

func (s *PostStore) findOne(ctx context.Context, query string, arg any) (*models.Post, error) {
	p, err := scanPost(pgtype.NewMap(), s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	if err := s.attachViews(ctx, []*models.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns one page of posts matching the filter, newest first, and
// the total number of matches.
func (s *PostStore) List(ctx context.Context, f models.PostFilter) ([]models.Post, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.AllStatuses {
		conds = append(conds, "p.status = "+arg(models.PostStatusPublished))
	}
	if f.CategoryID != nil {
		conds = append(conds, "p.category_id = "+arg(*f.CategoryID))
	}
	if f.Tag != "" {
		conds = append(conds, arg(strings.ToLower(f.Tag))+" = ANY(p.tags)")
	}
	if f.AuthorID != "" {
		conds = append(conds, "p.author_id = "+arg(f.AuthorID))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := postSelect + where + ` ORDER BY p.created_at DESC, p.id LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset())
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	m := pgtype.NewMap()
	var items []models.Post
	for rows.Next() {
		p, err := scanPost(m, rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	ptrs := make([]*models.Post, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	if err := s.attachViews(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// attachViews loads viewedBy entries for the given posts, in the order
// users first viewed each post.
func (s *PostStore) attachViews(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID.String())
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, user_id, last_viewed
		FROM post_views
		WHERE post_id = ANY($1::uuid[])
		ORDER BY first_viewed, user_id
	`, ids)
	if err != nil {
		return fmt.Errorf("load post views: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID uuid.UUID
			v      models.ViewEntry
		)
		if err := rows.Scan(&postID, &v.UserID, &v.LastViewed); err != nil {
			return fmt.Errorf("scan post view: %w", err)
		}
		if p := byID[postID]; p != nil {
			p.ViewedBy = append(p.ViewedBy, v)
		}
	}
	return rows.Err()
}

// Create inserts a new post. The caller assigns ID, slug and timestamps.
func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, slug, content, category_id, status,
		                   author, author_id, tags, featured_image, view_count,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, p.ID, p.Title, p.Slug, p.Content, p.CategoryID, p.Status,
		p.Author, p.AuthorID, nonNil(p.Tags), p.FeaturedImage, p.ViewCount,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// Update writes a post's editable fields. author_id, slug and the view
// statistics are never touched here.
func (s *PostStore) Update(ctx context.Context, p *models.Post) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET
			title = $1, content = $2, category_id = $3, status = $4,
			author = $5, tags = $6, featured_image = $7, updated_at = $8
		WHERE id = $9
	`, p.Title, p.Content, p.CategoryID, p.Status,
		p.Author, nonNil(p.Tags), p.FeaturedImage, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return expectRow(res, "update post")
}

// UpdateStatus changes only a post's status and modification time.
func (s *PostStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3`,
		status, at, id,
	)
	if err != nil {
		return fmt.Errorf("update post status: %w", err)
	}
	return expectRow(res, "update post status")
}

// Delete removes a post. Comments and view rows cascade.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// SlugExists reports whether any post uses slug.
func (s *PostStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE slug = $1)`, slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check post slug: %w", err)
	}
	return exists, nil
}

// ImageInUse reports whether any post references path as its featured image.
func (s *PostStore) ImageInUse(ctx context.Context, path string) (bool, error) {
	var inUse bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE featured_image = $1)`, path,
	).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("check image references: %w", err)
	}
	return inUse, nil
}

// RecordView counts a view: it increments view_count and upserts the
// user's view row in one transaction.
func (s *PostStore) RecordView(ctx context.Context, postID uuid.UUID, userID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE posts SET view_count = view_count + 1 WHERE id = $1`, postID)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	if err := expectRow(res, "increment view count"); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO post_views (post_id, user_id, last_viewed, first_viewed)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (post_id, user_id) DO UPDATE SET last_viewed = EXCLUDED.last_viewed
	`, postID, userID, at)
	if err != nil {
		return fmt.Errorf("upsert post view: %w", err)
	}

	return tx.Commit()
}

// Search runs a full-text query over published posts, best match first.
func (s *PostStore) Search(ctx context.Context, q string, limit int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+`
		WHERE p.status = 'published'
		  AND p.search_vector @@ websearch_to_tsquery('english', $1)
		ORDER BY ts_rank(p.search_vector, websearch_to_tsquery('english', $1)) DESC, p.created_at DESC
		LIMIT $2
	`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	defer rows.Close()

	m := pgtype.NewMap()
	var items []models.Post
	for rows.Next() {
		p, err := scanPost(m, rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

// ListPublished returns every published post, used to rebuild the search
// index.
func (s *PostStore) ListPublished(ctx context.Context) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+` WHERE p.status = 'published' ORDER BY p.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	defer rows.Close()

	m := pgtype.NewMap()
	var items []models.Post
	for rows.Next() {
		p, err := scanPost(m, rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

// UntaggedPost is a post whose tags are empty.
type UntaggedPost struct {
	ID    uuid.UUID
	Title string
}

// ListUntagged returns posts created without tags.
func (s *PostStore) ListUntagged(ctx context.Context) ([]UntaggedPost, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title FROM posts WHERE cardinality(tags) = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list untagged posts: %w", err)
	}
	defer rows.Close()

	var items []UntaggedPost
	for rows.Next() {
		var u UntaggedPost
		if err := rows.Scan(&u.ID, &u.Title); err != nil {
			return nil, fmt.Errorf("scan untagged post: %w", err)
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// SetTags replaces a post's tags without touching updated_at.
func (s *PostStore) SetTags(ctx context.Context, id uuid.UUID, tags []string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE posts SET tags = $1 WHERE id = $2`, nonNil(tags), id); err != nil {
		return fmt.Errorf("set post tags: %w", err)
	}
	return nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// ErrNoRows is returned by writes that matched nothing.
var ErrNoRows = errors.New("no rows affected")

func expectRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	return nil
}
