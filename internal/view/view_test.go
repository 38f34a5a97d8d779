// SPDX-License-Identifier: MIT

package view

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/minipress/minipress/internal/post"
)

func testPage(title string) Page {
	return Page{
		SiteTitle:       "minipress",
		SiteDescription: "a test site",
		Title:           title,
	}
}

func testPost() post.Post {
	return post.Post{
		ID:          7,
		Title:       "Hello World",
		Description: "The first post on this site.",
		Slug:        "hello-world",
		Published:   true,
		CreatedAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderShow(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	err = r.Render(&buf, "posts/show", ShowData{
		Page: testPage("Hello World"),
		Post: testPost(),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	body := buf.String()
	if !strings.Contains(body, "<h1>Hello World</h1>") {
		t.Error("title not rendered inside <h1>")
	}
	if !strings.Contains(body, "<p>The first post on this site.</p>") {
		t.Error("description not rendered inside <p>")
	}
	if !strings.Contains(body, "<title>Hello World — minipress</title>") {
		t.Error("page title missing from <title>")
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p := testPost()
	p.Title = `<script>alert("x")</script>`
	p.Description = `<img src=x onerror=alert(1)>`

	var buf bytes.Buffer
	if err := r.Render(&buf, "posts/show", ShowData{Page: testPage(""), Post: p}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	body := buf.String()
	if strings.Contains(body, "<script>alert") {
		t.Error("script tag in title was not escaped")
	}
	if strings.Contains(body, "<img src=x") {
		t.Error("img tag in description was not escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("expected escaped script tag in output")
	}
}

func TestRenderAllPages(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	posts := []post.Post{testPost()}
	data := map[string]any{
		"home":        HomeData{Page: testPage(""), Recent: posts, Trending: posts},
		"posts/index": IndexData{Page: testPage("Posts"), Posts: posts, Limit: 20},
		"posts/show": ShowData{Page: testPage("Hello"), Post: testPost(), Comments: []post.Comment{
			{ID: 1, PostID: 7, Author: "reader", Body: "nice", CreatedAt: time.Now()},
		}},
		"posts/form": FormData{Page: testPage("New post"), IsNew: true, Action: "/posts"},
		"login":      LoginData{Page: testPage("Log in")},
		"error":      ErrorData{Page: testPage("Not found"), Status: 404, Message: "not found", RequestID: "abc"},
	}

	for name, d := range data {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := r.Render(&buf, name, d); err != nil {
				t.Fatalf("Render(%s): %v", name, err)
			}
			if buf.Len() == 0 {
				t.Errorf("Render(%s) produced empty output", name)
			}
		})
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Render(&bytes.Buffer{}, "nope", nil); err == nil {
		t.Fatal("Render of unknown template succeeded, want error")
	}
}

func TestRenderFailureWritesNothing(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Wrong data type: field lookups fail during execution.
	var buf bytes.Buffer
	if err := r.Render(&buf, "posts/show", struct{}{}); err == nil {
		t.Fatal("Render with mismatched data succeeded, want error")
	}
	if buf.Len() != 0 {
		t.Errorf("partial output written on render failure: %d bytes", buf.Len())
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short unchanged", in: "hello world", n: 50, want: "hello world"},
		{name: "cut on word boundary", in: "one two three four", n: 12, want: "one two…"},
		{name: "trims trailing punctuation", in: "hello there. more text follows", n: 13, want: "hello there…"},
		{name: "empty", in: "", n: 10, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.in, tt.n); got != tt.want {
				t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
