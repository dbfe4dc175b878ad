package prompts

import (
	"strings"
	"testing"
	"time"
)

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{3, "Late night hustle 🌃"},
		{5, "Morning energy ☀️"},
		{12, "Midday flow 🌤️"},
		{17, "Evening chill 🌆"},
		{21, "Night vibes 🌙"},
	}
	for _, tt := range tests {
		if got := TimeOfDay(tt.hour); got != tt.want {
			t.Errorf("TimeOfDay(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestPersona_UnknownMoodIsNeutral(t *testing.T) {
	p := Persona("", "grumpy", 9)
	if !strings.Contains(p, "Context about the user: {}") {
		t.Errorf("empty profile not rendered as {}: %s", p)
	}
	if !strings.Contains(p, "Be balanced") {
		t.Errorf("unknown mood should fall back to neutral personality: %s", p)
	}
}

func TestMessageAnalysis_EmbedsTimeAndSummary(t *testing.T) {
	now := time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC)
	p := MessageAnalysis("hi there", "", now)
	for _, want := range []string{"2026-03-04 18:30", "Wednesday", "(none)", `"hi there"`} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestReminderExtraction_UsesLocalZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 3, 4, 9, 15, 0, 0, loc)
	p := ReminderExtraction(now)
	for _, want := range []string{"March 4, 2026", "Wednesday", "09:15:00", "America/Chicago", "2026-03-05 15:00:00", `"action": "add_notes"`} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGreeting(t *testing.T) {
	if got := Greeting("Sam", WindowMorning, 0); !strings.Contains(got, "Good morning, Sam") {
		t.Errorf("Greeting = %q", got)
	}
	if got := Greeting("Sam", WindowEvening, 4); got != Greeting("Sam", WindowEvening, 1) {
		t.Errorf("pick should wrap: %q", got)
	}
	if got := Greeting("Sam", "midnight", 0); got != "Hi Sam!" {
		t.Errorf("unknown window = %q", got)
	}
}

func TestMotivation_Wraps(t *testing.T) {
	if Motivation(0) != Motivation(len(motivations)) {
		t.Error("Motivation should wrap around")
	}
	if Motivation(-1) == "" {
		t.Error("negative pick should still return a line")
	}
}
