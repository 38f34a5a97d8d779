// SPDX-License-Identifier: MIT

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/ratelimit"
	"github.com/minipress/minipress/internal/storage"
)

func (s *Server) apiListPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := storage.ListOptions{
		Limit:         queryInt(r, "limit", defaultPageSize, maxPageSize),
		Offset:        queryInt(r, "offset", 0, 1<<30),
		IncludeDrafts: s.apiAuthorized(r),
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
		s.apiStoreError(w, r, err)
		return
	}

	total, err := s.store.CountPosts(ctx)
	if err != nil {
		s.apiStoreError(w, r, err)
		return
	}

	if posts == nil {
		posts = []post.Post{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"total": total,
	})
}

func (s *Server) apiGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	model, err := s.loadShowModel(r.Context(), id)
	if errors.Is(err, post.ErrNotFound) {
		s.jsonError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.apiStoreError(w, r, err)
		return
	}

	if !model.Post.Published && !s.apiAuthorized(r) {
		s.jsonError(w, http.StatusNotFound, "not found")
		return
	}

	s.writeJSON(w, http.StatusOK, model)
}

func (s *Server) apiCreatePost(w http.ResponseWriter, r *http.Request) {
	var draft post.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		s.jsonError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	created, err := s.store.CreatePost(r.Context(), draft)
	var verr *post.ValidationError
	if errors.As(err, &verr) {
		s.jsonValidationError(w, verr)
		return
	}
	if err != nil {
		s.apiStoreError(w, r, err)
		return
	}

	s.invalidatePost(r.Context(), created.ID)
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) apiUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var draft post.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		s.jsonError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	updated, err := s.store.UpdatePost(r.Context(), id, draft)
	var verr *post.ValidationError
	switch {
	case errors.As(err, &verr):
		s.jsonValidationError(w, verr)
		return
	case errors.Is(err, post.ErrNotFound):
		s.jsonError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		s.apiStoreError(w, r, err)
		return
	}

	s.invalidatePost(r.Context(), id)
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) apiDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	err = s.store.DeletePost(r.Context(), id)
	if errors.Is(err, post.ErrNotFound) {
		s.jsonError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		s.apiStoreError(w, r, err)
		return
	}

	s.invalidatePost(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := postID(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	if _, err := s.store.GetPost(ctx, id); err != nil {
		if errors.Is(err, post.ErrNotFound) {
			s.jsonError(w, http.StatusNotFound, "not found")
			return
		}
		s.apiStoreError(w, r, err)
		return
	}

	comments, err := s.store.ListComments(ctx, id)
	if err != nil {
		s.apiStoreError(w, r, err)
		return
	}

	if comments == nil {
		comments = []post.Comment{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *Server) apiAddComment(w http.ResponseWriter, r *http.Request) {
	if !s.commentLimiter.Allow(ratelimit.ClientIP(r)) {
		w.Header().Set("Retry-After", "60")
		s.jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	id, err := postID(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var draft post.CommentDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		s.jsonError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	created, err := s.store.AddComment(r.Context(), id, draft)
	var verr *post.ValidationError
	switch {
	case errors.As(err, &verr):
		s.jsonValidationError(w, verr)
		return
	case errors.Is(err, post.ErrNotFound):
		s.jsonError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		s.apiStoreError(w, r, err)
		return
	}

	s.cache.Delete(r.Context(), postCacheKey(id))
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) apiTrending(w http.ResponseWriter, r *http.Request) {
	posts := s.trendingPosts(r.Context(), queryInt(r, "limit", 10, 50))
	if posts == nil {
		posts = []post.Post{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) apiStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg()

	total, err := s.store.CountPosts(r.Context())
	if err != nil {
		s.apiStoreError(w, r, err)
		return
	}

	body := map[string]any{
		"version": cfg.Version,
		"posts":   total,
		"cache":   s.cache.Stats(),
	}
	if s.publisher != nil {
		body["publish"] = s.publisher.Status()
	}

	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) apiRebuild(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "publisher not running")
		return
	}
	scheduled := s.publisher.Trigger()
	s.writeJSON(w, http.StatusAccepted, map[string]any{"scheduled": scheduled})
}

func (s *Server) apiOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.specJSON)
}

func (s *Server) apiStoreError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().
		Err(err).
		Str("event", "web.store_error").
		Str("path", r.URL.Path).
		Msg("storage operation failed")
	s.jsonError(w, http.StatusInternalServerError, "internal server error")
}
