// SPDX-License-Identifier: MIT

package web

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minipress/minipress/internal/post"
)

// showModel is the cached view model behind the post detail page and the
// API's single-post response.
type showModel struct {
	Post     post.Post      `json:"post"`
	Comments []post.Comment `json:"comments"`
}

func postCacheKey(id int64) string {
	return fmt.Sprintf("post:%d", id)
}

// loadShowModel resolves a post and its comments, serving from the cache
// when possible. Callers gate draft visibility after the load.
func (s *Server) loadShowModel(ctx context.Context, id int64) (*showModel, error) {
	key := postCacheKey(id)

	if raw, ok := s.cache.Get(ctx, key); ok {
		var m showModel
		if err := json.Unmarshal(raw, &m); err == nil {
			return &m, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		s.cache.Delete(ctx, key)
	}

	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}

	m := &showModel{Post: *p, Comments: comments}
	if raw, err := json.Marshal(m); err == nil {
		s.cache.Set(ctx, key, raw, s.cfg().CacheTTL)
	}
	return m, nil
}

// invalidatePost drops the cached view model and schedules a feed rebuild.
func (s *Server) invalidatePost(ctx context.Context, id int64) {
	s.cache.Delete(ctx, postCacheKey(id))
	if s.publisher != nil {
		s.publisher.Trigger()
	}
}

// trendingPosts resolves the top-ranked post IDs into published posts,
// skipping entries that have since been deleted or unpublished.
func (s *Server) trendingPosts(ctx context.Context, n int) []post.Post {
	ids, err := s.trending.Top(ctx, n)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", "web.trending_failed").Msg("trending lookup failed")
		return nil
	}

	out := make([]post.Post, 0, len(ids))
	for _, id := range ids {
		p, err := s.store.GetPost(ctx, id)
		if err != nil || !p.Published {
			continue
		}
		out = append(out, *p)
	}
	return out
}
