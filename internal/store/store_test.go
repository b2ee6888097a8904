package store

import (
	"context"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:       "q-1",
		Question: "What is co-packaged optics?",
		Answer:   "Co-packaged optics places the optical engine beside the switch ASIC [1].",
		Model:    "ollama/gemma3",
		Citations: []CitationRecord{
			{Number: 1, Source: "cpo-overview.pdf", Title: "CPO Overview"},
		},
		Timings:   map[string]int64{"embedding": 12, "retrieving": 3, "generating": 950},
		CreatedAt: time.Unix(1700000000, 0),
	}
	if err := s.Record(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 entry, got %d", len(got))
	}
	e := got[0]
	if e.ID != "q-1" || e.Question != entry.Question || e.Answer != entry.Answer || e.Model != entry.Model {
		t.Errorf("entry fields did not round-trip: %+v", e)
	}
	if len(e.Citations) != 1 || e.Citations[0] != entry.Citations[0] {
		t.Errorf("citations did not round-trip: %+v", e.Citations)
	}
	if e.Timings["generating"] != 950 {
		t.Errorf("timings did not round-trip: %+v", e.Timings)
	}
	if !e.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("created_at: want %v, got %v", entry.CreatedAt, e.CreatedAt)
	}
}

func Test_Store_RecentNewestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	for i, q := range []string{"first", "second", "third"} {
		e := Entry{ID: q, Question: q, Answer: "a", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", q, err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	want := []string{"third", "second", "first"}
	for i := range want {
		if got[i].Question != want[i] {
			t.Errorf("entry[%d]: want %q, got %q", i, want[i], got[i].Question)
		}
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	for i := range 6 {
		e := Entry{
			ID:        string(rune('a' + i)),
			Question:  "q",
			Answer:    "a",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("want 4 entries, got %d", len(got))
	}
}

func Test_Store_RecordReplacesSameID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Entry{ID: "dup", Question: "q", Answer: "old"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, Entry{ID: "dup", Question: "q", Answer: "new"}); err != nil {
		t.Fatalf("record replacement: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 entry after replacement, got %d", len(got))
	}
	if got[0].Answer != "new" {
		t.Errorf("want replaced answer, got %q", got[0].Answer)
	}
}

func Test_Store_RecordRejectsEmptyID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.Record(context.Background(), Entry{Question: "q", Answer: "a"}); err == nil {
		t.Fatal("want error for empty entry ID, got nil")
	}
}

func Test_Store_EmptyStoreReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want 0 entries, got %d", len(got))
	}
}
