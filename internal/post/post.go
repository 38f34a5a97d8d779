// SPDX-License-Identifier: MIT

// Package post defines the core domain types of minipress: posts and the
// comments attached to them.
package post

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors returned by stores and validation.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("post: not found")
	// ErrInvalid indicates a draft failed validation.
	ErrInvalid = errors.New("post: invalid")
)

const (
	// MaxTitleLen bounds post titles to keep listings and feeds readable.
	MaxTitleLen = 200
	// MaxDescriptionLen bounds the post body.
	MaxDescriptionLen = 64 * 1024
	// MaxCommentLen bounds comment bodies.
	MaxCommentLen = 8 * 1024
)

// Post is a single published or draft entry.
type Post struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Comment is a reader comment attached to a post.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Author    string    `json:"author"`
	Website   string    `json:"website,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Draft carries the user-supplied fields of a post before it is persisted.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
}

// FieldError describes a single invalid field, suitable for re-rendering forms.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates per-field failures. It wraps ErrInvalid so
// callers can match with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "post: invalid draft (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validate checks a draft for required fields and length limits.
// It returns a *ValidationError listing every failed field, or nil.
func (d Draft) Validate() error {
	var fields []FieldError

	title := strings.TrimSpace(d.Title)
	switch {
	case title == "":
		fields = append(fields, FieldError{Field: "title", Message: "title is required"})
	case len(title) > MaxTitleLen:
		fields = append(fields, FieldError{Field: "title", Message: fmt.Sprintf("title exceeds %d characters", MaxTitleLen)})
	}

	desc := strings.TrimSpace(d.Description)
	switch {
	case desc == "":
		fields = append(fields, FieldError{Field: "description", Message: "description is required"})
	case len(desc) > MaxDescriptionLen:
		fields = append(fields, FieldError{Field: "description", Message: fmt.Sprintf("description exceeds %d characters", MaxDescriptionLen)})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// CommentDraft carries the user-supplied fields of a comment.
type CommentDraft struct {
	Author  string `json:"author"`
	Website string `json:"website,omitempty"`
	Body    string `json:"body"`
}

// Validate checks a comment draft. The website field is optional; when
// present it must normalize to a valid host (see NormalizeWebsite).
func (d CommentDraft) Validate() error {
	var fields []FieldError

	if strings.TrimSpace(d.Author) == "" {
		fields = append(fields, FieldError{Field: "author", Message: "author is required"})
	}

	body := strings.TrimSpace(d.Body)
	switch {
	case body == "":
		fields = append(fields, FieldError{Field: "body", Message: "body is required"})
	case len(body) > MaxCommentLen:
		fields = append(fields, FieldError{Field: "body", Message: fmt.Sprintf("body exceeds %d characters", MaxCommentLen)})
	}

	if strings.TrimSpace(d.Website) != "" {
		if _, err := NormalizeWebsite(d.Website); err != nil {
			fields = append(fields, FieldError{Field: "website", Message: "website is not a valid URL"})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
