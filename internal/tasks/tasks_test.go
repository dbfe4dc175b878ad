package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestParse(t *testing.T) {
	tests := []struct {
		text  string
		ok    bool
		title string
	}{
		{"add a task to buy milk", true, "buy milk"},
		{"I need to call the bank. It's urgent", true, "call the bank"},
		{"I should really clean the garage!", true, "really clean the garage"},
		{"todo: renew passport", true, "renew passport"},
		{"add eggs to my list", true, "eggs"},
		{"Task: file expenses\nand other stuff", true, "file expenses"},
		{"went to the gym today", false, ""},
		{"what a lovely day", false, ""},
		{"must x", false, ""},
	}
	for _, tt := range tests {
		title, _, ok := Parse(tt.text)
		if ok != tt.ok || title != tt.title {
			t.Errorf("Parse(%q) = %q, %v; want %q, %v", tt.text, title, ok, tt.title, tt.ok)
		}
	}
}

func TestParse_LongTitle(t *testing.T) {
	long := "I need to " + strings.Repeat("organize ", 10) + "the shed"
	title, desc, ok := Parse(long)
	if !ok {
		t.Fatal("expected a task")
	}
	if len([]rune(title)) != maxTitle+3 || !strings.HasSuffix(title, "...") {
		t.Errorf("title = %q", title)
	}
	if !strings.HasSuffix(desc, "the shed") {
		t.Errorf("description = %q", desc)
	}
}

func TestCreateFromMessage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task, err := s.CreateFromMessage(ctx, "u1", "I have to submit the report")
	if err != nil {
		t.Fatal(err)
	}
	if task == nil || task.Title != "submit the report" || task.Priority != PriorityMedium || task.Status != StatusPending {
		t.Errorf("task = %+v", task)
	}

	none, err := s.CreateFromMessage(ctx, "u1", "hello there")
	if err != nil || none != nil {
		t.Errorf("CreateFromMessage(non-task) = %+v, %v", none, err)
	}
}

func TestPending_LimitAndOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if _, err := s.Create(ctx, "u1", fmt.Sprintf("task %d", i), "", PriorityMedium); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Pending(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != PendingLimit {
		t.Fatalf("Pending returned %d, want %d", len(got), PendingLimit)
	}
	if got[0].Title != "task 11" || got[9].Title != "task 2" {
		t.Errorf("order = %s .. %s", got[0].Title, got[9].Title)
	}
}

func TestComplete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task, _ := s.Create(ctx, "u1", "water plants", "", PriorityLow)

	if _, err := s.Complete(ctx, "u2", task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Complete by other user = %v, want ErrNotFound", err)
	}
	done, err := s.Complete(ctx, "u1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Errorf("completed task = %+v", done)
	}

	pending, _ := s.Pending(ctx, "u1")
	if len(pending) != 0 {
		t.Errorf("pending after completion = %+v", pending)
	}

	total, completed, err := s.Counts(ctx, "u1", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil || total != 1 || completed != 1 {
		t.Errorf("Counts = %d, %d, %v", total, completed, err)
	}
}
