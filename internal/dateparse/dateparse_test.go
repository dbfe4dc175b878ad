package dateparse

import (
	"testing"
	"time"
)

// Wednesday 2026-03-04 14:20 UTC.
var now = time.Date(2026, 3, 4, 14, 20, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{"in 20 minutes", now.Add(20 * time.Minute)},
		{"in 2 hours please", now.Add(2 * time.Hour)},
		{"in 3 days", now.AddDate(0, 0, 3)},
		{"tomorrow", time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"tomorrow at 6pm", time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)},
		{"today", time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)},
		{"today at 7:30 pm", time.Date(2026, 3, 4, 19, 30, 0, 0, time.UTC)},
		{"at 16:45", time.Date(2026, 3, 4, 16, 45, 0, 0, time.UTC)},
		{"at 9am", time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)},
		{"at 12am", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"friday", time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)},
		{"wednesday at 8pm", time.Date(2026, 3, 11, 20, 0, 0, 0, time.UTC)},
		{"next week", time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)},
		{"next month", time.Date(2026, 4, 4, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Parse(tt.text, now)
			if !ok {
				t.Fatalf("Parse(%q) found nothing", tt.text)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParse_NoMatch(t *testing.T) {
	for _, text := range []string{"", "call mom", "at 25:00", "room 7"} {
		if got, ok := Parse(text, now); ok {
			t.Errorf("Parse(%q) = %v, want no match", text, got)
		}
	}
}

func TestParse_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got, ok := Parse("tomorrow at 8am", now.In(loc))
	if !ok {
		t.Fatal("no match")
	}
	if got.Location() != loc || got.Hour() != 8 || got.Day() != 5 {
		t.Errorf("got %v", got)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)); got != "Wed, Mar 4, 2026, 06:00 PM" {
		t.Errorf("Format = %q", got)
	}
}
