package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/audreyd114/B438-Checkers/game"
)

func sampleResult(id string, status game.Status) *Result {
	return &Result{
		GameID:     id,
		Status:     status,
		Winner:     game.Red,
		Moves:      34,
		Duration:   5 * time.Minute,
		FinishedAt: time.Now(),
	}
}

func TestMemoryStoreNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.SaveResult(ctx, sampleResult(fmt.Sprintf("g%d", i), game.StatusRedWon)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].GameID != "g2" || got[1].GameID != "g1" {
		t.Fatalf("recent = %+v, want newest first", got)
	}
}

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := NewRedisStore(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	want := sampleResult("abc", game.StatusBlackWon)
	want.Winner = game.Black
	if err := s.SaveResult(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveResult(ctx, sampleResult("def", game.StatusAborted)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recent returned %d results, want 2", len(got))
	}
	if got[0].GameID != "def" || got[1].GameID != "abc" {
		t.Fatalf("order = %s, %s; want def, abc", got[0].GameID, got[1].GameID)
	}
	if got[1].Status != game.StatusBlackWon || got[1].Winner != game.Black {
		t.Fatalf("round trip mangled result: %+v", got[1])
	}
}

func TestRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("http://wrong"); err == nil {
		t.Fatal("bad URL accepted")
	}
}
