package convo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nugget/pulse/internal/users"
)

type stubPrefs struct {
	prefs users.Preferences
	err   error
}

func (s stubPrefs) Preferences(context.Context, string) (users.Preferences, error) {
	return s.prefs, s.err
}

func testStore(t *testing.T, prefs PreferenceSource) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, prefs, 20, 50, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

// clock advances one second per call so created_at values are distinct.
func clock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func TestSave_PrunesToRetention(t *testing.T) {
	s := testStore(t, nil)
	s.now = clock(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if err := s.Save(ctx, "u1", fmt.Sprintf("msg %d", i), fmt.Sprintf("reply %d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Save(ctx, "u2", "other user", "hi"); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 50 {
		t.Errorf("turns kept = %d, want 50", n)
	}

	turns, err := s.Recent(ctx, "u1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if turns[0].Message != "msg 10" || turns[len(turns)-1].Message != "msg 59" {
		t.Errorf("kept range = %q..%q, want msg 10..msg 59", turns[0].Message, turns[len(turns)-1].Message)
	}
	if n, _ := s.Count(ctx, "u2"); n != 1 {
		t.Errorf("other user's turns = %d, want 1", n)
	}
}

func TestGetContext_OldestFirst(t *testing.T) {
	s := testStore(t, stubPrefs{prefs: users.Preferences{"notifications": "disabled"}})
	s.now = clock(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		s.Save(ctx, "u1", fmt.Sprintf("msg %d", i), "ok")
	}

	c, err := s.GetContext(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Turns) != 20 {
		t.Fatalf("turns = %d, want 20", len(c.Turns))
	}
	if c.Turns[0].Message != "msg 5" || c.Turns[19].Message != "msg 24" {
		t.Errorf("order = %q..%q", c.Turns[0].Message, c.Turns[19].Message)
	}
	if c.Preferences["notifications"] != "disabled" {
		t.Errorf("preferences = %v", c.Preferences)
	}

	h := c.History()
	if len(h) != 40 || h[0].Role != "user" || h[1].Role != "assistant" {
		t.Errorf("history = %d messages, first roles %s/%s", len(h), h[0].Role, h[1].Role)
	}
}

func TestGetContext_PreferenceErrorIsSoft(t *testing.T) {
	s := testStore(t, stubPrefs{err: errors.New("cache down")})
	c, err := s.GetContext(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Turns) != 0 || c.Preferences == nil {
		t.Errorf("context = %+v", c)
	}
}

func TestCountBetweenAndDelete(t *testing.T) {
	s := testStore(t, nil)
	base := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	s.now = clock(base)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Save(ctx, "u1", "x", "y")
	}

	n, err := s.CountBetween(ctx, "u1", base, base.Add(time.Hour))
	if err != nil || n != 3 {
		t.Errorf("CountBetween = %d, %v", n, err)
	}
	if deleted, err := s.DeleteForUser(ctx, "u1"); err != nil || deleted != 3 {
		t.Errorf("DeleteForUser = %d, %v", deleted, err)
	}
}

func TestSave_PruneFailureRollsBack(t *testing.T) {
	s := testStore(t, nil)
	s.retention = 2
	ctx := context.Background()

	for i := range 2 {
		if err := s.Save(ctx, "u1", fmt.Sprintf("m%d", i), "r"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `
		CREATE TRIGGER no_prune BEFORE DELETE ON conversations
		BEGIN SELECT RAISE(ABORT, 'prune refused'); END`); err != nil {
		t.Fatal(err)
	}

	if err := s.Save(ctx, "u1", "m2", "r"); err == nil {
		t.Fatal("Save succeeded with pruning blocked")
	}
	if n, _ := s.Count(ctx, "u1"); n != 2 {
		t.Errorf("count = %d, want 2 (insert rolled back)", n)
	}
}
