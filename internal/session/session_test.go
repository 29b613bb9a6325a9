package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	store := NewMemoryStore(Options{})
	ctx := context.Background()

	if err := store.Append(ctx, "s1", Turn{Role: "user", Content: "hi"}, Turn{Role: "assistant", Content: "hello"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	turns, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 2 || turns[1].Content != "hello" {
		t.Fatalf("turns: %+v", turns)
	}
}

func TestMemoryStoreCapsTurns(t *testing.T) {
	store := NewMemoryStore(Options{MaxTurns: 4})
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		store.Append(ctx, "s1", Turn{Role: "user", Content: string(rune('a' + i))})
	}
	turns, _ := store.History(ctx, "s1")
	if len(turns) != 4 || turns[0].Content != "g" {
		t.Fatalf("turns: %+v", turns)
	}
}

func TestMemoryStoreEvictsIdleSessions(t *testing.T) {
	store := NewMemoryStore(Options{Timeout: 30 * time.Minute})
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Append(ctx, "s1", Turn{Role: "user", Content: "hi"})
	now = now.Add(31 * time.Minute)
	turns, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if turns != nil {
		t.Fatalf("expected eviction, got %+v", turns)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(Options{})
	ctx := context.Background()
	store.Append(ctx, "s1", Turn{Role: "user", Content: "hi"})
	store.Clear(ctx, "s1")
	turns, _ := store.History(ctx, "s1")
	if len(turns) != 0 {
		t.Fatalf("turns after clear: %+v", turns)
	}
}

func TestTail(t *testing.T) {
	turns := []Turn{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	got := Tail(turns, 2)
	if len(got) != 2 || got[0].Content != "b" {
		t.Fatalf("tail: %+v", got)
	}
	if len(Tail(turns, 5)) != 3 {
		t.Fatal("tail should not pad")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.sqlite")
	store, err := NewSQLiteStore(path, Options{MaxTurns: 3})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four"} {
		if err := store.Append(ctx, "s1", Turn{Role: "user", Content: content}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	turns, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 3 || turns[0].Content != "two" {
		t.Fatalf("turns: %+v", turns)
	}

	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	turns, _ = store.History(ctx, "s1")
	if len(turns) != 0 {
		t.Fatalf("turns after clear: %+v", turns)
	}
}
