package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"interviewsim/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "transcripts.db"), testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAndGetInterview(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	iv := domain.Interview{
		ID:         "iv-1",
		Title:      "Backend practice",
		Domains:    []string{"backend", "database"},
		Difficulty: "advanced",
		Provider:   "groq",
	}
	if err := s.CreateInterview(ctx, iv); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}

	got, err := s.GetInterview(ctx, "iv-1")
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if got == nil {
		t.Fatal("interview not found")
	}
	if got.Title != "Backend practice" || got.Difficulty != "advanced" || got.Provider != "groq" {
		t.Fatalf("unexpected interview: %+v", got)
	}
	if len(got.Domains) != 2 || got.Domains[1] != "database" {
		t.Fatalf("domains not round-tripped: %v", got.Domains)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
}

func TestStore_GetMissingInterview(t *testing.T) {
	s := testStore(t)
	got, err := s.GetInterview(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestStore_AddAndGetTurns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s.CreateInterview(ctx, domain.Interview{ID: "iv-1"})

	err := s.AddTurns(ctx, "iv-1",
		domain.TurnRecord{Role: domain.RoleAssistant, Content: "What is normalization?", Provider: "openai", LatencyMs: 310},
	)
	if err != nil {
		t.Fatalf("AddTurns: %v", err)
	}
	err = s.AddTurns(ctx, "iv-1",
		domain.TurnRecord{Role: domain.RoleUser, Content: "Removing redundancy."},
		domain.TurnRecord{Role: domain.RoleAssistant, Content: "Name the normal forms.", Provider: "openai"},
	)
	if err != nil {
		t.Fatalf("AddTurns: %v", err)
	}

	all, err := s.GetTurns(ctx, "iv-1", 0)
	if err != nil {
		t.Fatalf("GetTurns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(all))
	}
	if all[0].Content != "What is normalization?" || all[2].Content != "Name the normal forms." {
		t.Fatalf("turns not in chronological order: %+v", all)
	}
	if all[0].LatencyMs != 310 || all[0].Provider != "openai" {
		t.Fatalf("metadata lost: %+v", all[0])
	}

	last, _ := s.GetTurns(ctx, "iv-1", 2)
	if len(last) != 2 || last[0].Role != domain.RoleUser {
		t.Fatalf("expected last 2 turns starting with the user, got %+v", last)
	}
}

func TestStore_AddTurnsIsAtomic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s.CreateInterview(ctx, domain.Interview{ID: "iv-1"})

	err := s.AddTurns(ctx, "iv-1",
		domain.TurnRecord{Role: domain.RoleUser, Content: "answer"},
		domain.TurnRecord{Role: "moderator", Content: "bad role"},
	)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	turns, _ := s.GetTurns(ctx, "iv-1", 0)
	if len(turns) != 0 {
		t.Fatalf("partial write: %d turns stored", len(turns))
	}
}

func TestStore_ListInterviewsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		s.CreateInterview(ctx, domain.Interview{ID: id, CreatedAt: ts, UpdatedAt: ts})
	}
	// Activity on "a" moves it to the front.
	s.AddTurns(ctx, "a", domain.TurnRecord{Role: domain.RoleAssistant, Content: "q"})

	list, err := s.ListInterviews(ctx, 10)
	if err != nil {
		t.Fatalf("ListInterviews: %v", err)
	}
	if len(list) != 3 || list[0].ID != "a" || list[1].ID != "c" {
		t.Fatalf("unexpected order: %+v", list)
	}

	limited, _ := s.ListInterviews(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %d", len(limited))
	}
}

func TestStore_DeleteInterview(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s.CreateInterview(ctx, domain.Interview{ID: "iv-1"})
	s.AddTurns(ctx, "iv-1", domain.TurnRecord{Role: domain.RoleAssistant, Content: "q"})

	if err := s.DeleteInterview(ctx, "iv-1"); err != nil {
		t.Fatalf("DeleteInterview: %v", err)
	}
	if got, _ := s.GetInterview(ctx, "iv-1"); got != nil {
		t.Fatal("interview still present")
	}
	if turns, _ := s.GetTurns(ctx, "iv-1", 0); len(turns) != 0 {
		t.Fatalf("turns not deleted: %d", len(turns))
	}
}

func TestStore_Stats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s.CreateInterview(ctx, domain.Interview{ID: "iv-1"})
	s.CreateInterview(ctx, domain.Interview{ID: "iv-2"})
	s.AddTurns(ctx, "iv-1",
		domain.TurnRecord{Role: domain.RoleAssistant, Content: "q"},
		domain.TurnRecord{Role: domain.RoleUser, Content: "a"},
	)
	ivs, turns, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if ivs != 2 || turns != 2 {
		t.Fatalf("expected 2/2, got %d/%d", ivs, turns)
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	s.CreateInterview(ctx, domain.Interview{ID: "iv-1", Title: "kept"})
	s.Close()

	s2, err := NewSQLiteStore(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, _ := s2.GetInterview(ctx, "iv-1")
	if got == nil || got.Title != "kept" {
		t.Fatalf("data lost across reopen: %+v", got)
	}
}
