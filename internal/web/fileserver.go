// SPDX-License-Identifier: MIT

package web

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/text/unicode/norm"

	"github.com/minipress/minipress/internal/log"
)

var mediaRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "minipress_media_requests_total",
	Help: "Media file requests by outcome.",
}, []string{"outcome"})

// handleArtifact serves a published artifact (feed, sitemap) from the data
// directory.
func (s *Server) handleArtifact(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.cfg().DataDir, name)

		f, err := os.Open(path)
		if err != nil {
			if isAPIRequest(r) {
				s.jsonError(w, http.StatusNotFound, "not published yet")
			} else {
				s.htmlError(w, r, http.StatusNotFound, "not published yet")
			}
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			s.htmlError(w, r, http.StatusInternalServerError, "something went wrong")
			return
		}

		w.Header().Set("Content-Type", contentType)
		http.ServeContent(w, r, name, info.ModTime(), f)
	}
}

// secureFileServer serves uploaded media from <data dir>/media with checks
// against path traversal, symlink escapes, and directory listing.
func (s *Server) secureFileServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "media")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			mediaRequests.WithLabelValues("method_not_allowed").Inc()
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path := r.URL.Path
		if isPathTraversal(path) {
			logger.Warn().Str("event", "media.denied").Str("path", path).Str("reason", "path_escape").Msg("detected traversal sequence")
			mediaRequests.WithLabelValues("path_escape").Inc()
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if strings.HasSuffix(path, "/") || path == "" {
			mediaRequests.WithLabelValues("directory_listing").Inc()
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		mediaDir := filepath.Join(s.cfg().DataDir, "media")
		fullPath := filepath.Join(mediaDir, path)

		realPath, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				mediaRequests.WithLabelValues("not_found").Inc()
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Str("event", "media.internal_error").Str("path", fullPath).Msg("could not resolve path")
			mediaRequests.WithLabelValues("internal_error").Inc()
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		realMediaDir, err := filepath.EvalSymlinks(mediaDir)
		if err != nil {
			mediaRequests.WithLabelValues("internal_error").Inc()
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Containment: the resolved file must stay inside the media dir
		// even after following symlinks.
		relPath, err := filepath.Rel(realMediaDir, realPath)
		if err != nil || strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
			logger.Warn().
				Str("event", "media.denied").
				Str("path", path).
				Str("resolved_path", realPath).
				Str("reason", "path_escape").
				Msg("path escapes media directory")
			mediaRequests.WithLabelValues("path_escape").Inc()
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		// #nosec G304 -- realPath is validated to reside inside the media directory
		f, err := os.Open(realPath)
		if err != nil {
			mediaRequests.WithLabelValues("internal_error").Inc()
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			mediaRequests.WithLabelValues("internal_error").Inc()
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if info.IsDir() {
			mediaRequests.WithLabelValues("directory_listing").Inc()
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		// Weak ETag from modtime and size; media files change rarely.
		etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			mediaRequests.WithLabelValues("cache_hit").Inc()
			w.WriteHeader(http.StatusNotModified)
			return
		}

		mediaRequests.WithLabelValues("served").Inc()
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// isPathTraversal checks a request path for traversal attempts, decoding
// the input multiple times to catch double-encoding and applying Unicode
// normalization before looking for dangerous sequences.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		} else if d2, err2 := url.QueryUnescape(decoded); err2 == nil {
			decoded = d2
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	for _, pat := range []string{"..", "%00", "%c0%ae", "%e0%80%ae"} {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}

	normalized := strings.ToLower(norm.NFC.String(decoded))
	return strings.Contains(normalized, "..")
}
