// SPDX-License-Identifier: MIT

package web

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// sessionCookie carries the author's login token.
const sessionCookie = "minipress_session"

// currentAuthor resolves the session cookie to the logged-in author name.
func (s *Server) currentAuthor(r *http.Request) (string, bool) {
	if s.sessions == nil {
		return "", false
	}
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	sess, err := s.sessions.Lookup(r.Context(), c.Value)
	if err != nil {
		return "", false
	}
	return sess.Author, true
}

// requireSession guards HTML authoring routes. Anonymous requests are
// redirected to the login page.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.currentAuthor(r); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// requireToken guards API write routes with the configured bearer token.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.apiAuthorized(r) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.jsonError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) apiAuthorized(r *http.Request) bool {
	token := s.cfg().APIToken
	if token == "" {
		// No token configured: API writes are disabled.
		return false
	}

	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	presented := strings.TrimSpace(auth[len(prefix):])

	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
