// SPDX-License-Identifier: MIT

package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/minipress/minipress/internal/log"
	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/ratelimit"
	"github.com/minipress/minipress/internal/session"
	"github.com/minipress/minipress/internal/storage"
	"github.com/minipress/minipress/internal/view"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recent, err := s.store.ListPosts(ctx, storage.ListOptions{Limit: 5})
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	var trending []post.Post
	if s.cfg().TrendingEnabled {
		trending = s.trendingPosts(ctx, 5)
	}

	s.renderPage(w, r, http.StatusOK, "home", view.HomeData{
		Page:     s.page(r, ""),
		Recent:   recent,
		Trending: trending,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, isAuthor := s.currentAuthor(r)

	opts := storage.ListOptions{
		Limit:         queryInt(r, "limit", defaultPageSize, maxPageSize),
		Offset:        queryInt(r, "offset", 0, 1<<30),
		IncludeDrafts: isAuthor,
	}

	query := r.URL.Query().Get("q")

	var (
		posts []post.Post
		err   error
	)
	if query != "" {
		posts, err = s.store.SearchPosts(ctx, query, opts)
	} else {
		posts, err = s.store.ListPosts(ctx, opts)
	}
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	total, err := s.store.CountPosts(ctx)
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	s.renderPage(w, r, http.StatusOK, "posts/index", view.IndexData{
		Page:   s.page(r, "Posts"),
		Posts:  posts,
		Query:  query,
		Total:  int64(total),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// handleShow is the dynamic route at the heart of the site: it binds the
// {id} path parameter, loads the record, and renders the detail view.
func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := postID(r)
	if err != nil {
		s.htmlError(w, r, http.StatusBadRequest, "invalid post id")
		return
	}

	model, err := s.loadShowModel(ctx, id)
	if errors.Is(err, post.ErrNotFound) {
		s.htmlError(w, r, http.StatusNotFound, "no such post")
		return
	}
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	_, isAuthor := s.currentAuthor(r)
	if !model.Post.Published && !isAuthor {
		s.htmlError(w, r, http.StatusNotFound, "no such post")
		return
	}

	if s.cfg().TrendingEnabled && model.Post.Published {
		if err := s.trending.Touch(ctx, id); err != nil {
			logger := log.WithComponentFromContext(ctx, "web")
			logger.Warn().
				Err(err).
				Str("event", "web.trending_touch_failed").
				Int64("post_id", id).
				Msg("failed to record view")
		}
	}

	s.renderPage(w, r, http.StatusOK, "posts/show", view.ShowData{
		Page:     s.page(r, model.Post.Title),
		Post:     model.Post,
		Comments: model.Comments,
	})
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "posts/form", view.FormData{
		Page:   s.page(r, "New post"),
		IsNew:  true,
		Action: "/posts",
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	draft := formDraft(r)

	created, err := s.store.CreatePost(r.Context(), draft)
	var verr *post.ValidationError
	if errors.As(err, &verr) {
		s.renderPage(w, r, http.StatusUnprocessableEntity, "posts/form", view.FormData{
			Page:   s.page(r, "New post"),
			Post:   post.Post{Title: draft.Title, Description: draft.Description, Published: draft.Published},
			Errors: verr.Fields,
			IsNew:  true,
			Action: "/posts",
		})
		return
	}
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	s.invalidatePost(r.Context(), created.ID)
	http.Redirect(w, r, fmt.Sprintf("/posts/%d", created.ID), http.StatusSeeOther)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.htmlError(w, r, http.StatusBadRequest, "invalid post id")
		return
	}

	p, err := s.store.GetPost(r.Context(), id)
	if errors.Is(err, post.ErrNotFound) {
		s.htmlError(w, r, http.StatusNotFound, "no such post")
		return
	}
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	s.renderPage(w, r, http.StatusOK, "posts/form", view.FormData{
		Page:   s.page(r, "Edit post"),
		Post:   *p,
		Action: fmt.Sprintf("/posts/%d", p.ID),
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.htmlError(w, r, http.StatusBadRequest, "invalid post id")
		return
	}

	draft := formDraft(r)

	updated, err := s.store.UpdatePost(r.Context(), id, draft)
	var verr *post.ValidationError
	if errors.As(err, &verr) {
		s.renderPage(w, r, http.StatusUnprocessableEntity, "posts/form", view.FormData{
			Page:   s.page(r, "Edit post"),
			Post:   post.Post{ID: id, Title: draft.Title, Description: draft.Description, Published: draft.Published},
			Errors: verr.Fields,
			Action: fmt.Sprintf("/posts/%d", id),
		})
		return
	}
	if errors.Is(err, post.ErrNotFound) {
		s.htmlError(w, r, http.StatusNotFound, "no such post")
		return
	}
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	s.invalidatePost(r.Context(), updated.ID)
	http.Redirect(w, r, fmt.Sprintf("/posts/%d", updated.ID), http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.htmlError(w, r, http.StatusBadRequest, "invalid post id")
		return
	}

	err = s.store.DeletePost(r.Context(), id)
	if errors.Is(err, post.ErrNotFound) {
		s.htmlError(w, r, http.StatusNotFound, "no such post")
		return
	}
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	s.invalidatePost(r.Context(), id)
	http.Redirect(w, r, "/posts", http.StatusSeeOther)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.commentLimiter.Allow(ratelimit.ClientIP(r)) {
		w.Header().Set("Retry-After", "60")
		s.htmlError(w, r, http.StatusTooManyRequests, "too many comments, slow down")
		return
	}

	id, err := postID(r)
	if err != nil {
		s.htmlError(w, r, http.StatusBadRequest, "invalid post id")
		return
	}

	draft := post.CommentDraft{
		Author:  r.FormValue("author"),
		Website: r.FormValue("website"),
		Body:    r.FormValue("body"),
	}

	_, err = s.store.AddComment(ctx, id, draft)
	var verr *post.ValidationError
	if errors.As(err, &verr) {
		model, loadErr := s.loadShowModel(ctx, id)
		if loadErr != nil {
			s.storeError(w, r, loadErr)
			return
		}
		s.renderPage(w, r, http.StatusUnprocessableEntity, "posts/show", view.ShowData{
			Page:          s.page(r, model.Post.Title),
			Post:          model.Post,
			Comments:      model.Comments,
			CommentErrors: verr.Fields,
			CommentDraft:  draft,
		})
		return
	}
	if errors.Is(err, post.ErrNotFound) {
		s.htmlError(w, r, http.StatusNotFound, "no such post")
		return
	}
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	s.cache.Delete(ctx, postCacheKey(id))
	http.Redirect(w, r, fmt.Sprintf("/posts/%d", id), http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "login", view.LoginData{Page: s.page(r, "Log in")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.cfg()

	if !s.loginLimiter.Allow(ratelimit.ClientIP(r)) {
		w.Header().Set("Retry-After", "60")
		s.htmlError(w, r, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	if err := session.CheckPassword(cfg.AdminPasswordHash, r.FormValue("password")); err != nil {
		logger := log.WithComponentFromContext(ctx, "web")
		logger.Warn().
			Str("event", "web.login_failed").
			Str("remote", ratelimit.ClientIP(r)).
			Msg("rejected login attempt")
		s.renderPage(w, r, http.StatusUnauthorized, "login", view.LoginData{
			Page:  s.page(r, "Log in"),
			Error: "wrong password",
		})
		return
	}

	sess, err := s.sessions.Create(ctx, cfg.AuthorName, cfg.SessionTTL)
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	logger := log.WithComponentFromContext(ctx, "web")
	logger.Info().
		Str("event", "web.login").
		Str("author", sess.Author).
		Msg("author logged in")

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if err := s.sessions.Revoke(r.Context(), c.Value); err != nil {
			s.logger.Warn().Err(err).Str("event", "web.logout_revoke_failed").Msg("failed to revoke session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// storeError logs an unexpected storage failure and renders a 500.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.WithComponentFromContext(r.Context(), "web")
	logger.Error().
		Err(err).
		Str("event", "web.store_error").
		Str("path", r.URL.Path).
		Msg("storage operation failed")
	s.htmlError(w, r, http.StatusInternalServerError, "something went wrong")
}

func formDraft(r *http.Request) post.Draft {
	return post.Draft{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Published:   r.FormValue("published") == "true",
	}
}

func queryInt(r *http.Request, key string, def, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
