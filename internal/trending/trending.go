// SPDX-License-Identifier: MIT

// Package trending ranks posts by recent views. The canonical backend is a
// Redis sorted set; an in-memory fallback keeps single-node deployments
// working without Redis.
package trending

import (
	"context"
	"sort"
	"sync"
)

// Tracker records post views and reports the current ranking.
type Tracker interface {
	// Touch increments the view score of a post.
	Touch(ctx context.Context, postID int64) error
	// Top returns up to n post IDs ordered by descending score.
	Top(ctx context.Context, n int) ([]int64, error)
	// Reset clears all scores.
	Reset(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// memoryTracker is the in-process fallback Tracker.
type memoryTracker struct {
	mu     sync.RWMutex
	scores map[int64]int64
}

// NewMemory creates an in-memory tracker.
func NewMemory() Tracker {
	return &memoryTracker{scores: make(map[int64]int64)}
}

func (m *memoryTracker) Touch(_ context.Context, postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[postID]++
	return nil
}

func (m *memoryTracker) Top(_ context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	type scored struct {
		id    int64
		score int64
	}
	all := make([]scored, 0, len(m.scores))
	for id, score := range m.scores {
		all = append(all, scored{id: id, score: score})
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		// Deterministic order for equal scores.
		return all[i].id < all[j].id
	})

	if n > len(all) {
		n = len(all)
	}
	out := make([]int64, 0, n)
	for _, s := range all[:n] {
		out = append(out, s.id)
	}
	return out, nil
}

func (m *memoryTracker) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = make(map[int64]int64)
	return nil
}

func (m *memoryTracker) Close() error { return nil }
