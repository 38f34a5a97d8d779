// SPDX-License-Identifier: MIT

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/minipress/minipress/internal/log"
	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/view"
)

// page builds the base page data shared by every template.
func (s *Server) page(r *http.Request, title string) view.Page {
	cfg := s.cfg()
	p := view.Page{
		SiteTitle:       cfg.SiteTitle,
		SiteDescription: cfg.SiteDescription,
		Title:           title,
	}
	if author, ok := s.currentAuthor(r); ok {
		p.Author = author
	}
	return p
}

// renderPage executes a template into the response. The page is rendered
// into a buffer before the status is committed, so a render failure can
// still become a 500.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, name, data); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "web")
		logger.Error().
			Err(err).
			Str("event", "web.render_failed").
			Str("template", name).
			Msg("template execution failed")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// htmlError renders the error page with the given status.
func (s *Server) htmlError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := view.ErrorData{
		Page:      s.page(r, http.StatusText(status)),
		Status:    status,
		Message:   message,
		RequestID: log.RequestIDFromContext(r.Context()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.renderer.Render(w, "error", data); err != nil {
		_, _ = w.Write([]byte(message))
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		s.jsonError(w, http.StatusNotFound, "not found")
		return
	}
	s.htmlError(w, r, http.StatusNotFound, "page not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.htmlError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func isAPIRequest(r *http.Request) bool {
	return len(r.URL.Path) >= 5 && r.URL.Path[:5] == "/api/"
}

// writeJSON encodes v as the response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Str("event", "web.encode_failed").Msg("failed to encode JSON response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// jsonValidationError reports per-field failures as a 422.
func (s *Server) jsonValidationError(w http.ResponseWriter, verr *post.ValidationError) {
	s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "validation failed",
		"fields": verr.Fields,
	})
}

// postID extracts and parses the {id} route parameter.
func postID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}
