package health

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	tr, err := NewTracker(db, nil)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tr.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return tr
}

func TestDetect_Mood(t *testing.T) {
	tests := []struct {
		text  string
		kind  string
		level int
	}{
		{"Feeling anxious about the exam", MoodAnxious, 3},
		{"okay day but the concert was amazing", MoodPositive, 8},
		{"so relaxed after the weekend", MoodContent, 7},
		{"that meeting was terrible", MoodNegative, 2},
		{"it was a normal day", MoodNeutral, 5},
	}
	for _, tt := range tests {
		m := Detect(tt.text).Mood
		if m == nil {
			t.Errorf("Detect(%q).Mood = nil, want %s", tt.text, tt.kind)
			continue
		}
		if m.Kind != tt.kind || m.Level != tt.level {
			t.Errorf("Detect(%q).Mood = %s/%d, want %s/%d", tt.text, m.Kind, m.Level, tt.kind, tt.level)
		}
	}
	if m := Detect("booked the flights").Mood; m != nil {
		t.Errorf("unexpected mood %+v", m)
	}
}

func TestDetect_Activities(t *testing.T) {
	d := Detect("Slept 6 hours, woke up tired")
	if len(d.Activities) != 1 {
		t.Fatalf("activities = %+v", d.Activities)
	}
	if a := d.Activities[0]; a.Kind != KindSleep || a.Value != 6 || a.Detail != "fair" || a.Unit != "hours" {
		t.Errorf("sleep = %+v", a)
	}

	d = Detect("drank water all day")
	if len(d.Activities) != 1 || d.Activities[0].Value != 1 || d.Activities[0].Unit != "glass" {
		t.Errorf("default water = %+v", d.Activities)
	}

	d = Detect("Yoga class then 2 bottles of water")
	kinds := map[string]Activity{}
	for _, a := range d.Activities {
		kinds[a.Kind] = a
	}
	if kinds[KindFitness].Detail != "yoga" {
		t.Errorf("fitness = %+v", kinds[KindFitness])
	}
	if w := kinds[KindWater]; w.Value != 2 || w.Unit != "bottles" {
		t.Errorf("water = %+v", w)
	}
}

func TestDetect_Meals(t *testing.T) {
	d := Detect("Lunch: chicken salad. Grabbed a snack later")
	if len(d.Meals) != 2 {
		t.Fatalf("meals = %+v", d.Meals)
	}
	if d.Meals[0].Type != MealLunch || d.Meals[0].Description != "chicken salad" {
		t.Errorf("lunch = %+v", d.Meals[0])
	}
	if d.Meals[1].Type != MealSnack {
		t.Errorf("second meal = %+v", d.Meals[1])
	}
}

func TestAnalyze_DailySummary(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	if _, err := tr.Analyze(ctx, "u1", time.UTC, "Had oatmeal for breakfast and drank 3 glasses of water, feeling great"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Analyze(ctx, "u1", time.UTC, "Feeling anxious, drank water"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Analyze(ctx, "u2", time.UTC, "dinner was pasta"); err != nil {
		t.Fatal(err)
	}

	s, err := tr.DailySummary(ctx, "u1", "2026-10-19")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Meals) != 1 || s.Meals[0].Type != MealBreakfast {
		t.Errorf("meals = %+v", s.Meals)
	}
	if len(s.Moods) != 2 {
		t.Fatalf("moods = %+v", s.Moods)
	}
	if got := s.AverageMood(); got != 5.5 {
		t.Errorf("AverageMood = %v, want 5.5", got)
	}
	if got := s.Water(); got != 4 {
		t.Errorf("Water = %v, want 4", got)
	}

	other, _ := tr.DailySummary(ctx, "u1", "2026-10-18")
	if len(other.Meals)+len(other.Moods)+len(other.Activities) != 0 {
		t.Errorf("other day summary = %+v", other)
	}
}

func TestAnalyze_NothingDetected(t *testing.T) {
	tr := testTracker(t)
	d, err := tr.Analyze(context.Background(), "u1", time.UTC, "booked the flights")
	if err != nil || !d.Empty() {
		t.Errorf("Analyze = %+v, %v", d, err)
	}
}

func TestDeleteForUser(t *testing.T) {
	tr := testTracker(t)
	ctx := context.Background()

	tr.Analyze(ctx, "u1", time.UTC, "lunch was soup, feeling calm")
	n, err := tr.DeleteForUser(ctx, "u1")
	if err != nil || n != 2 {
		t.Errorf("DeleteForUser = %d, %v; want 2", n, err)
	}
}
