package database

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pulse.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestFormatTime_SortsChronologically(t *testing.T) {
	a := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("X", 5*3600))
	b := a.Add(time.Minute)
	if !(FormatTime(a) < FormatTime(b)) {
		t.Errorf("%s should sort before %s", FormatTime(a), FormatTime(b))
	}
	got, err := ParseTime(FormatTime(a))
	if err != nil || !got.Equal(a) {
		t.Errorf("ParseTime round trip = %v, %v", got, err)
	}
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2026, 3, 1, 22, 30, 0, 0, loc) // 03:30 UTC next day

	start, end := DayBounds(now, loc)
	if start != "2026-03-01T05:00:00Z" || end != "2026-03-02T05:00:00Z" {
		t.Errorf("DayBounds = [%s, %s)", start, end)
	}
	if got := Day(now, loc); got != "2026-03-01" {
		t.Errorf("Day = %s, want 2026-03-01", got)
	}
}
