// SPDX-License-Identifier: MIT

// Package view renders the server-side HTML pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

//go:embed templates
var templateFS embed.FS

// page template names and their files. Every page is parsed together with
// the shared layout so a broken template fails at startup, not per request.
var pageFiles = map[string]string{
	"home":        "templates/pages/home.tmpl",
	"posts/index": "templates/pages/posts_index.tmpl",
	"posts/show":  "templates/pages/posts_show.tmpl",
	"posts/form":  "templates/pages/posts_form.tmpl",
	"login":       "templates/pages/login.tmpl",
	"error":       "templates/pages/error.tmpl",
}

// Renderer holds the parsed page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses all embedded templates.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"date":    formatDate,
		"rfc3339": formatRFC3339,
		"excerpt": Excerpt,
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageFiles))}
	for name, file := range pageFiles {
		t, err := template.New("layout.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/layout.tmpl", file)
		if err != nil {
			return nil, fmt.Errorf("view: parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes the named page into w. The page is rendered into a
// buffer first so an execution failure never leaks a partial response.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("view: unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("view: render %s: %w", name, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

func formatRFC3339(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Excerpt truncates s to at most n runes on a word boundary, appending an
// ellipsis when content was cut.
func Excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "…"
}
