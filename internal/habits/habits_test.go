package habits

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func testTracker(t *testing.T) *Tracker {
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
	s.now = func() time.Time { return testNow }
	tr := NewTracker(s, nil)
	tr.now = func() time.Time { return testNow }
	return tr
}

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"went to the gym today", []string{"exercise"}},
		{"Worked out and then meditated for 10 minutes", []string{"exercise", "meditation"}},
		{"read two chapters, drank a lot of water", []string{"reading", "water"}},
		{"slept 8 hours and wrote in my journal", []string{"sleep", "writing"}},
		{"pushed to GitHub after coding all night", []string{"coding"}},
		{"I already ate breakfast", nil},
		{"grand plans for the weekend", nil},
	}
	for _, tt := range tests {
		if got := Detect(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Detect(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestTrackFromMessage_OncePerDay(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := tr.TrackFromMessage(ctx, "u1", time.UTC, "went to the gym today")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, []string{"exercise"}) {
			t.Fatalf("detected = %v", got)
		}
	}

	h, err := tr.store.GetOrCreate(ctx, "u1", "exercise")
	if err != nil {
		t.Fatal(err)
	}
	entries, err := tr.store.Entries(ctx, h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].EntryDate != "2026-10-19" {
		t.Errorf("entries = %+v, want one dated 2026-10-19", entries)
	}
}

func TestRecord_UserTimezone(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()
	tr.now = func() time.Time { return time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC) }

	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	if _, err := tr.Record(ctx, "u1", "reading", loc); err != nil {
		t.Fatal(err)
	}
	h, _ := tr.store.GetOrCreate(ctx, "u1", "reading")
	entries, _ := tr.store.Entries(ctx, h.ID)
	if len(entries) != 1 || entries[0].EntryDate != "2026-10-19" {
		t.Errorf("entries = %+v, want local date 2026-10-19", entries)
	}
}

func TestGetOrCreate_Unique(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	a, err := tr.store.GetOrCreate(ctx, "u1", "water")
	if err != nil {
		t.Fatal(err)
	}
	b, err := tr.store.GetOrCreate(ctx, "u1", "water")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Errorf("GetOrCreate created a duplicate habit")
	}
	other, _ := tr.store.GetOrCreate(ctx, "u2", "water")
	if other.ID == a.ID {
		t.Error("habits are shared between users")
	}
}

func TestSetCount(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	h, _ := tr.store.GetOrCreate(ctx, "u1", "water")
	if err := tr.store.SetCount(ctx, h.ID, "2026-10-19", 3); err != nil {
		t.Fatal(err)
	}
	if err := tr.store.SetCount(ctx, h.ID, "2026-10-19", 5); err != nil {
		t.Fatal(err)
	}
	entries, _ := tr.store.Entries(ctx, h.ID)
	if len(entries) != 1 || entries[0].Count != 5 {
		t.Errorf("entries = %+v, want one with count 5", entries)
	}
}

func TestStats_Streak(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	ex, _ := tr.store.GetOrCreate(ctx, "u1", "exercise")
	for _, d := range []string{"2026-10-19", "2026-10-18", "2026-10-17", "2026-10-15"} {
		tr.store.Log(ctx, ex.ID, d, "")
	}
	rd, _ := tr.store.GetOrCreate(ctx, "u1", "reading")
	for _, d := range []string{"2026-10-18", "2026-10-17"} {
		tr.store.Log(ctx, rd.ID, d, "")
	}
	tr.store.GetOrCreate(ctx, "u1", "sleep")

	stats, err := tr.store.Stats(ctx, "u1", "2026-10-19")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 {
		t.Fatalf("stats = %+v", stats)
	}
	want := []struct {
		name   string
		total  int
		last   string
		streak int
	}{
		{"exercise", 4, "2026-10-19", 3},
		{"reading", 2, "2026-10-18", 2},
		{"sleep", 0, "", 0},
	}
	for i, w := range want {
		st := stats[i]
		if st.Name != w.name || st.TotalEntries != w.total || st.LastDate != w.last || st.Streak != w.streak {
			t.Errorf("stats[%d] = %+v, want %+v", i, st, w)
		}
	}
}

func TestStreak(t *testing.T) {
	tests := []struct {
		dates []string
		want  int
	}{
		{nil, 0},
		{[]string{"2026-10-19"}, 1},
		{[]string{"2026-10-18", "2026-10-17"}, 2},
		{[]string{"2026-10-17"}, 0},
		{[]string{"2026-10-19", "2026-10-17"}, 1},
	}
	for _, tt := range tests {
		if got := streak(tt.dates, "2026-10-19"); got != tt.want {
			t.Errorf("streak(%v) = %d, want %d", tt.dates, got, tt.want)
		}
	}
}

func TestTop(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	ex, _ := tr.store.GetOrCreate(ctx, "u1", "exercise")
	wa, _ := tr.store.GetOrCreate(ctx, "u1", "water")
	for _, d := range []string{"2026-10-13", "2026-10-15", "2026-10-19"} {
		tr.store.Log(ctx, ex.ID, d, "")
	}
	tr.store.Log(ctx, wa.ID, "2026-10-19", "")
	tr.store.Log(ctx, wa.ID, "2026-10-01", "")

	top, err := tr.store.Top(ctx, "u1", "2026-10-13", "2026-10-19", 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []NameCount{{"exercise", 3}, {"water", 1}}
	if !reflect.DeepEqual(top, want) {
		t.Errorf("Top = %+v, want %+v", top, want)
	}
}

func TestDeleteForUser(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	tr.TrackFromMessage(ctx, "u1", time.UTC, "gym and reading")
	tr.TrackFromMessage(ctx, "u2", time.UTC, "gym")

	n, err := tr.store.DeleteForUser(ctx, "u1")
	if err != nil || n != 2 {
		t.Errorf("DeleteForUser = %d, %v; want 2", n, err)
	}
	other, _ := tr.store.GetOrCreate(ctx, "u2", "exercise")
	if entries, _ := tr.store.Entries(ctx, other.ID); len(entries) != 1 {
		t.Errorf("other user's entries = %d, want 1", len(entries))
	}
}
