// SPDX-License-Identifier: MIT

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/storage"
)

const schemaVersion = 2

const defaultListLimit = 20

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at dbPath and runs migrations.
func Open(dbPath string, cfg Config) (*Store, error) {
	db, err := open(dbPath, cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("post store: migration failed: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	var currentVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}

	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		slug TEXT NOT NULL,
		published INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_slug ON posts(slug);
	CREATE INDEX IF NOT EXISTS idx_posts_published_created ON posts(published, created_at DESC);

	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author TEXT NOT NULL,
		website TEXT,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at);
	`
	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return tx.Commit()
}

// slugFor derives a slug for a title and disambiguates collisions with the
// row id suffix the way the posts table guarantees uniqueness.
func (s *Store) slugFor(ctx context.Context, title string, excludeID int64) (string, error) {
	base := post.Slugify(title)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE slug = ? AND id != ?`, base, excludeID).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("check slug: %w", err)
	}
	if count == 0 {
		return base, nil
	}
	return fmt.Sprintf("%s-%d", base, time.Now().UnixMilli()%100000), nil
}

// CreatePost persists a draft and returns the stored post.
func (s *Store) CreatePost(ctx context.Context, draft post.Draft) (*post.Post, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	slug, err := s.slugFor(ctx, draft.Title, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (title, description, slug, published, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(draft.Title), strings.TrimSpace(draft.Description),
		slug, boolToInt(draft.Published), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &post.Post{
		ID:          id,
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		Slug:        slug,
		Published:   draft.Published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

const postColumns = `id, title, description, slug, published, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*post.Post, error) {
	var p post.Post
	var published int
	var created, updated int64
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Slug, &published, &created, &updated); err != nil {
		return nil, err
	}
	p.Published = published != 0
	p.CreatedAt = time.UnixMilli(created).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return &p, nil
}

// GetPost returns the post with the given ID or post.ErrNotFound.
func (s *Store) GetPost(ctx context.Context, id int64) (*post.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, post.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

// GetPostBySlug returns the post with the given slug or post.ErrNotFound.
func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*post.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, post.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post by slug %q: %w", slug, err)
	}
	return p, nil
}

// ListPosts returns posts newest first.
func (s *Store) ListPosts(ctx context.Context, opts storage.ListOptions) ([]post.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := `SELECT ` + postColumns + ` FROM posts`
	if !opts.IncludeDrafts {
		q += ` WHERE published = 1`
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPosts(rows)
}

// SearchPosts returns published posts matching the query, newest first.
func (s *Store) SearchPosts(ctx context.Context, query string, opts storage.ListOptions) ([]post.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE published = 1 AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		pattern, pattern, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPosts(rows)
}

func collectPosts(rows *sql.Rows) ([]post.Post, error) {
	posts := make([]post.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// UpdatePost replaces mutable fields and bumps UpdatedAt.
func (s *Store) UpdatePost(ctx context.Context, id int64, draft post.Draft) (*post.Post, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	slug := existing.Slug
	if strings.TrimSpace(draft.Title) != existing.Title {
		slug, err = s.slugFor(ctx, draft.Title, id)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE posts SET title = ?, description = ?, slug = ?, published = ?, updated_at = ?
		 WHERE id = ?`,
		strings.TrimSpace(draft.Title), strings.TrimSpace(draft.Description),
		slug, boolToInt(draft.Published), now.UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}

	return &post.Post{
		ID:          id,
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		Slug:        slug,
		Published:   draft.Published,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   now,
	}, nil
}

// DeletePost removes a post; comments cascade via the foreign key.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return post.ErrNotFound
	}
	return nil
}

// AddComment attaches a comment to a post.
func (s *Store) AddComment(ctx context.Context, postID int64, draft post.CommentDraft) (*post.Comment, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	// Fail with ErrNotFound before the FK does, so callers get a clean 404.
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	website := ""
	if strings.TrimSpace(draft.Website) != "" {
		w, err := post.NormalizeWebsite(draft.Website)
		if err != nil {
			return nil, &post.ValidationError{Fields: []post.FieldError{{Field: "website", Message: "website is not a valid URL"}}}
		}
		website = w
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (post_id, author, website, body, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		postID, strings.TrimSpace(draft.Author), website, strings.TrimSpace(draft.Body), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &post.Comment{
		ID:        id,
		PostID:    postID,
		Author:    strings.TrimSpace(draft.Author),
		Website:   website,
		Body:      strings.TrimSpace(draft.Body),
		CreatedAt: now,
	}, nil
}

// ListComments returns a post's comments oldest first.
func (s *Store) ListComments(ctx context.Context, postID int64) ([]post.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, author, COALESCE(website, ''), body, created_at
		 FROM comments WHERE post_id = ? ORDER BY created_at ASC, id ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := make([]post.Comment, 0)
	for rows.Next() {
		var c post.Comment
		var created int64
		if err := rows.Scan(&c.ID, &c.PostID, &c.Author, &c.Website, &c.Body, &created); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created).UTC()
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes a single comment.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return post.ErrNotFound
	}
	return nil
}

// CountPosts returns the number of published posts.
func (s *Store) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE published = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
