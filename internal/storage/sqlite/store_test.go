// SPDX-License-Identifier: MIT

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "minipress.sqlite")
	s, err := Open(dbPath, DefaultConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestCreateGetRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreatePost(ctx, post.Draft{
		Title:       "First Post",
		Description: "Hello from minipress.",
		Published:   true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created post has zero ID")
	}
	if created.Slug != "first-post" {
		t.Errorf("slug = %q, want %q", created.Slug, "first-post")
	}

	got, err := s.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(created, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("roundtrip mismatch (-created +got):\n%s", diff)
	}
}

func TestGetPostNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPost(context.Background(), 12345)
	if !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("GetPost(missing) = %v, want ErrNotFound", err)
	}

	_, err = s.GetPostBySlug(context.Background(), "no-such-slug")
	if !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("GetPostBySlug(missing) = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreatePost(context.Background(), post.Draft{Title: "no body"})
	if !errors.Is(err, post.ErrInvalid) {
		t.Fatalf("CreatePost(invalid) = %v, want ErrInvalid", err)
	}
}

func TestUpdateBumpsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreatePost(ctx, post.Draft{Title: "Before", Description: "v1", Published: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	updated, err := s.UpdatePost(ctx, created.ID, post.Draft{Title: "After", Description: "v2", Published: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("UpdatedAt not bumped: created=%v updated=%v", created.UpdatedAt, updated.UpdatedAt)
	}
	if updated.Title != "After" || updated.Description != "v2" {
		t.Errorf("fields not updated: %+v", updated)
	}
	if updated.Slug != "after" {
		t.Errorf("slug not re-derived: %q", updated.Slug)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v != %v", updated.CreatedAt, created.CreatedAt)
	}
}

func TestDeleteCascadesComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePost(ctx, post.Draft{Title: "Commented", Description: "body", Published: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.AddComment(ctx, p.ID, post.CommentDraft{Author: "ada", Body: "first"}); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if _, err := s.AddComment(ctx, p.ID, post.CommentDraft{Author: "grace", Body: "second"}); err != nil {
		t.Fatalf("add comment: %v", err)
	}

	if err := s.DeletePost(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	comments, err := s.ListComments(ctx, p.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("comments survived post deletion: %v", comments)
	}

	if err := s.DeletePost(ctx, p.ID); !errors.Is(err, post.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestListPostsPublishedOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreatePost(ctx, post.Draft{Title: "Published", Description: "x", Published: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreatePost(ctx, post.Draft{Title: "Draft", Description: "x", Published: false}); err != nil {
		t.Fatalf("create: %v", err)
	}

	published, err := s.ListPosts(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(published) != 1 || published[0].Title != "Published" {
		t.Errorf("published listing = %v, want only the published post", published)
	}

	all, err := s.ListPosts(ctx, storage.ListOptions{IncludeDrafts: true})
	if err != nil {
		t.Fatalf("list with drafts: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("draft listing has %d posts, want 2", len(all))
	}

	count, err := s.CountPosts(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("CountPosts = %d, want 1", count)
	}
}

func TestListPostsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"Oldest", "Middle", "Newest"} {
		if _, err := s.CreatePost(ctx, post.Draft{Title: title, Description: "x", Published: true}); err != nil {
			t.Fatalf("create %q: %v", title, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	posts, err := s.ListPosts(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Newest", "Middle", "Oldest"}
	for i, w := range want {
		if posts[i].Title != w {
			t.Errorf("posts[%d] = %q, want %q", i, posts[i].Title, w)
		}
	}
}

func TestSearchPosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreatePost(ctx, post.Draft{Title: "Gopher News", Description: "all about go", Published: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreatePost(ctx, post.Draft{Title: "Unrelated", Description: "nothing here", Published: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreatePost(ctx, post.Draft{Title: "Hidden Gopher", Description: "draft", Published: false}); err != nil {
		t.Fatalf("create: %v", err)
	}

	hits, err := s.SearchPosts(ctx, "gopher", storage.ListOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "Gopher News" {
		t.Errorf("search hits = %v, want only the published gopher post", hits)
	}

	// LIKE metacharacters must not act as wildcards.
	none, err := s.SearchPosts(ctx, "%", storage.ListOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("wildcard query matched %d posts, want 0", len(none))
	}
}

func TestSlugCollision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreatePost(ctx, post.Draft{Title: "Same Title", Description: "x", Published: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := s.CreatePost(ctx, post.Draft{Title: "Same Title", Description: "y", Published: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Slug == b.Slug {
		t.Errorf("slug collision: both posts have slug %q", a.Slug)
	}
}

func TestAddCommentToMissingPost(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddComment(context.Background(), 999, post.CommentDraft{Author: "ada", Body: "hi"})
	if !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("AddComment(missing post) = %v, want ErrNotFound", err)
	}
}

func TestCommentWebsiteNormalized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePost(ctx, post.Draft{Title: "P", Description: "x", Published: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c, err := s.AddComment(ctx, p.ID, post.CommentDraft{Author: "ada", Body: "hi", Website: "Example.com/Blog"})
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if c.Website != "https://example.com/Blog" {
		t.Errorf("website = %q, want normalized https URL", c.Website)
	}
}
