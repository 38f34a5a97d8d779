// SPDX-License-Identifier: MIT

package view

import "github.com/minipress/minipress/internal/post"

// Page carries the fields every template needs.
type Page struct {
	SiteTitle       string
	SiteDescription string
	Title           string // page title, shown in <title>
	Author          string // logged-in author name, empty for readers
}

// HomeData backs the home page.
type HomeData struct {
	Page
	Recent   []post.Post
	Trending []post.Post
}

// IndexData backs the post listing.
type IndexData struct {
	Page
	Posts  []post.Post
	Query  string
	Total  int64
	Limit  int
	Offset int
}

// ShowData backs the post detail page.
type ShowData struct {
	Page
	Post          post.Post
	Comments      []post.Comment
	CommentErrors []post.FieldError
	CommentDraft  post.CommentDraft
}

// FormData backs the create/edit form.
type FormData struct {
	Page
	Post   post.Post
	Errors []post.FieldError
	IsNew  bool
	Action string
}

// LoginData backs the login page.
type LoginData struct {
	Page
	Error string
}

// ErrorData backs the error page.
type ErrorData struct {
	Page
	Status    int
	Message   string
	RequestID string
}
