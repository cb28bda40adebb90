package cat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/adaptest/internal/model"
)

func TestMemoryRegistry(t *testing.T) {
	r := NewMemoryRegistry()
	now := time.Now()

	if _, ok := r.Get("a"); ok {
		t.Fatal("empty registry returned a session")
	}

	builds := 0
	build := func() (*Session, error) {
		builds++
		return newSession("a", []model.Item{testItem("q", 1, 0, 0.25)}, 0, 1, now), nil
	}
	s1, created, err := r.GetOrCreate("a", build)
	if err != nil || !created {
		t.Fatalf("GetOrCreate = (%v, %v)", created, err)
	}
	s2, created, err := r.GetOrCreate("a", build)
	if err != nil || created {
		t.Fatalf("second GetOrCreate = (%v, %v)", created, err)
	}
	if s1 != s2 || builds != 1 {
		t.Errorf("expected the stored session to be reused, builds=%d", builds)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	_, _, err = r.GetOrCreate("b", func() (*Session, error) { return nil, ErrEmptyItemBank })
	if !errors.Is(err, ErrEmptyItemBank) {
		t.Errorf("build error not propagated: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("failed build stored a session")
	}

	if !r.Delete("a") || r.Delete("a") {
		t.Error("Delete should report existence exactly once")
	}
	if r.Len() != 0 {
		t.Errorf("Len after delete = %d", r.Len())
	}
}

func TestEvictIdle(t *testing.T) {
	e := newTestEngine(t, 3, nil)
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := start
	e.now = func() time.Time { return clock }

	if _, err := e.CreateSession("idle", testBank(3)); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := e.CreateSession("busy", testBank(3)); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	clock = start.Add(20 * time.Minute)
	item, _, _ := e.NextItem("busy")
	if _, err := e.SubmitAnswer(context.Background(), "busy", item.ID, "A"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	clock = start.Add(40 * time.Minute)
	if n := e.EvictIdle(30 * time.Minute); n != 1 {
		t.Errorf("EvictIdle = %d, want 1", n)
	}
	if _, err := e.Snapshot("idle"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("idle session still present: %v", err)
	}
	if _, err := e.Snapshot("busy"); err != nil {
		t.Errorf("busy session evicted: %v", err)
	}

	// An evicted user starts a fresh attempt.
	snap, err := e.CreateSession("idle", testBank(3))
	if err != nil {
		t.Fatalf("CreateSession after eviction: %v", err)
	}
	if len(snap.Administered) != 0 || !snap.StartedAt.Equal(clock) {
		t.Errorf("new attempt = %+v", snap)
	}
}
