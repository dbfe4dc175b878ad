package llm

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)

func TestAnalyzeMessage_LLM(t *testing.T) {
	g := &staticGenerator{content: "```json\n{\"intent\":\"Reminder\",\"entities\":{\"times\":[\"6pm\"],\"dates\":[\"tomorrow\"],\"habits\":[],\"tasks\":[]},\"sentiment\":\"neutral\",\"action\":\"create_reminder\"}\n```"}
	a := AnalyzeMessage(context.Background(), g, "remind me to call mom tomorrow at 6pm", nil, testNow)

	if a.Source != SourceLLM || a.Intent != IntentReminder || a.Action != ActionCreateReminder {
		t.Errorf("analysis = %+v", a)
	}
	if a.Confidence != defaultLLMConfidence {
		t.Errorf("confidence = %d, want default %d", a.Confidence, defaultLLMConfidence)
	}
	if g.opts.Temperature != 0.1 || g.opts.MaxTokens != 300 || g.opts.Role != "analysis" {
		t.Errorf("opts = %+v", g.opts)
	}
}

func TestAnalyzeMessage_LooseConfidence(t *testing.T) {
	tests := []struct {
		confidence string
		want       Confidence
	}{
		{`0.95`, 95},
		{`"85"`, 85},
		{`72.0`, 72},
	}
	for _, tt := range tests {
		g := &staticGenerator{content: `{"intent":"task","action":"create_task","sentiment":"neutral","confidence":` + tt.confidence + `}`}
		a := AnalyzeMessage(context.Background(), g, "I need to renew my passport", nil, testNow)
		if a.Source != SourceLLM || a.Intent != IntentTask {
			t.Errorf("confidence %s: analysis = %+v, want the model's classification", tt.confidence, a)
			continue
		}
		if a.Confidence != tt.want {
			t.Errorf("confidence %s decoded as %d, want %d", tt.confidence, a.Confidence, tt.want)
		}
	}
}

func TestAnalyzeMessage_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		g    *staticGenerator
	}{
		{"provider error", &staticGenerator{err: errors.New("down")}},
		{"malformed", &staticGenerator{content: "Sure, here you go!"}},
		{"unknown intent", &staticGenerator{content: `{"intent":"dance","action":"none"}`}},
		{"unknown action", &staticGenerator{content: `{"intent":"task","action":"explode"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzeMessage(context.Background(), tt.g, "went to the gym today", nil, testNow)
			if a.Source != SourceHeuristic {
				t.Fatalf("source = %s, want heuristic", a.Source)
			}
			if a.Intent != IntentHabitReport || a.Action != ActionTrackHabit {
				t.Errorf("analysis = %+v", a)
			}
		})
	}
}

func TestClassifyHeuristic(t *testing.T) {
	tests := []struct {
		text   string
		intent Intent
		action Action
	}{
		{"Remind me to stretch", IntentReminder, ActionCreateReminder},
		{"set a reminder for the gym", IntentReminder, ActionCreateReminder},
		{"did my workout", IntentHabitReport, ActionTrackHabit},
		{"I need to file taxes", IntentTask, ActionCreateTask},
		{"how are you?", IntentQuestion, ActionNone},
		{"Hey there", IntentGreeting, ActionNone},
		{"show my progress", IntentReportRequest, ActionNone},
		{"the weather is nice", IntentGeneralChat, ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			a := ClassifyHeuristic(tt.text)
			if a.Intent != tt.intent || a.Action != tt.action {
				t.Errorf("ClassifyHeuristic(%q) = %s/%s, want %s/%s", tt.text, a.Intent, a.Action, tt.intent, tt.action)
			}
		})
	}
}

func TestClassifyHeuristic_Entities(t *testing.T) {
	a := ClassifyHeuristic("Meet at 7:30 pm tomorrow or 9am next week, then meditate in the evening")
	if !slices.Contains(a.Entities.Times, "7:30 pm") || !slices.Contains(a.Entities.Times, "9am") || !slices.Contains(a.Entities.Times, "evening") {
		t.Errorf("times = %q", a.Entities.Times)
	}
	if !slices.Contains(a.Entities.Dates, "tomorrow") || !slices.Contains(a.Entities.Dates, "next week") {
		t.Errorf("dates = %q", a.Entities.Dates)
	}
	if !slices.Equal(a.Entities.Habits, []string{"meditation"}) {
		t.Errorf("habits = %q", a.Entities.Habits)
	}
}

func TestClassifyHeuristic_Sentiment(t *testing.T) {
	tests := map[string]Sentiment{
		"great day, love it":  SentimentPositive,
		"awful and stressed":  SentimentNegative,
		"good but bad":        SentimentNeutral,
		"nothing to see here": SentimentNeutral,
	}
	for text, want := range tests {
		if got := ClassifyHeuristic(text).Sentiment; got != want {
			t.Errorf("sentiment(%q) = %s, want %s", text, got, want)
		}
	}
}

func TestSummarize_LastThree(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
		{Role: "assistant", Content: "four"},
	}
	got := summarize(history, 3)
	if strings.Contains(got, "one") || !strings.HasPrefix(got, "assistant: two") {
		t.Errorf("summarize = %q", got)
	}
}
