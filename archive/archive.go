// Package archive records finished games. The server treats it as a
// best-effort collaborator: a failed write is logged upstream, never fatal
// to a session.
package archive

import (
	"context"
	"sync"
	"time"

	"github.com/audreyd114/B438-Checkers/game"
)

// Result is what survives a session after it reaches a terminal status.
type Result struct {
	GameID     string        `json:"game_id"`
	Status     game.Status   `json:"status"`
	Winner     game.Player   `json:"winner,omitempty"`
	Moves      int           `json:"moves"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Store persists game results.
type Store interface {
	SaveResult(ctx context.Context, r *Result) error
	Recent(ctx context.Context, n int) ([]Result, error)
	Close() error
}

// MemoryStore keeps results in memory, newest first. Used in tests and as
// the default when no Redis URL is configured.
type MemoryStore struct {
	mu      sync.Mutex
	results []Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveResult(_ context.Context, r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append([]Result{*r}, s.results...)
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, n int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.results) {
		n = len(s.results)
	}
	out := make([]Result, n)
	copy(out, s.results[:n])
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
