// SPDX-License-Identifier: MIT

// Package storage defines the persistence interface for posts and comments.
package storage

import (
	"context"

	"github.com/minipress/minipress/internal/post"
)

// ListOptions controls pagination of post listings.
type ListOptions struct {
	// Limit bounds the number of returned posts. Zero means the store default.
	Limit int
	// Offset skips the given number of posts (newest first ordering).
	Offset int
	// IncludeDrafts includes unpublished posts (author views only).
	IncludeDrafts bool
}

// Store is the persistence contract for the posts resource.
// Implementations must translate "row not found" into post.ErrNotFound.
type Store interface {
	// CreatePost persists a validated draft and returns the stored post
	// with its assigned ID, slug, and timestamps.
	CreatePost(ctx context.Context, draft post.Draft) (*post.Post, error)

	// GetPost returns the post with the given ID.
	GetPost(ctx context.Context, id int64) (*post.Post, error)

	// GetPostBySlug returns the post with the given slug.
	GetPostBySlug(ctx context.Context, slug string) (*post.Post, error)

	// ListPosts returns posts ordered newest first.
	ListPosts(ctx context.Context, opts ListOptions) ([]post.Post, error)

	// SearchPosts returns published posts whose title or description
	// contains the query, newest first.
	SearchPosts(ctx context.Context, query string, opts ListOptions) ([]post.Post, error)

	// UpdatePost replaces the mutable fields of an existing post and
	// bumps its UpdatedAt timestamp.
	UpdatePost(ctx context.Context, id int64, draft post.Draft) (*post.Post, error)

	// DeletePost removes a post and all of its comments.
	DeletePost(ctx context.Context, id int64) error

	// AddComment attaches a validated comment draft to a post.
	AddComment(ctx context.Context, postID int64, draft post.CommentDraft) (*post.Comment, error)

	// ListComments returns a post's comments, oldest first.
	ListComments(ctx context.Context, postID int64) ([]post.Comment, error)

	// DeleteComment removes a single comment.
	DeleteComment(ctx context.Context, id int64) error

	// CountPosts returns the number of published posts.
	CountPosts(ctx context.Context) (int, error)

	// Ping verifies the underlying database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
