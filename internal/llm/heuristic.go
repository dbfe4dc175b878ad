package llm

import (
	"regexp"
	"strings"
)

var (
	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm)?\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`),
		regexp.MustCompile(`(?i)\b(morning|afternoon|evening|night)\b`),
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(tomorrow|today|yesterday)\b`),
		regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
		regexp.MustCompile(`(?i)\bnext\s+(week|month|year)\b`),
	}
	greetingPattern = regexp.MustCompile(`^(hi|hello|hey|good morning|good afternoon)`)
)

// habitKeywords is ordered so entity output is stable.
var habitKeywords = []struct {
	habit    string
	keywords []string
}{
	{"exercise", []string{"gym", "workout", "exercise", "fitness", "run", "jog"}},
	{"meditation", []string{"meditate", "meditation", "mindfulness"}},
	{"reading", []string{"read", "reading", "book"}},
	{"water", []string{"water", "hydrate"}},
	{"sleep", []string{"sleep", "slept"}},
	{"coding", []string{"code", "coding", "programming"}},
	{"writing", []string{"write", "writing", "journal"}},
}

var (
	positiveWords = []string{"good", "great", "awesome", "happy", "excited", "love", "perfect"}
	negativeWords = []string{"bad", "terrible", "sad", "angry", "hate", "awful", "stressed"}
)

// ClassifyHeuristic classifies text with keyword rules. The first
// matching rule sets intent and action.
func ClassifyHeuristic(text string) Analysis {
	lower := strings.ToLower(text)

	intent, action := IntentGeneralChat, ActionNone
	switch {
	case strings.Contains(lower, "remind me") || strings.Contains(lower, "reminder"):
		intent, action = IntentReminder, ActionCreateReminder
	case containsAny(lower, "gym", "workout", "exercise", "meditate", "read"):
		intent, action = IntentHabitReport, ActionTrackHabit
	case containsAny(lower, "need to", "have to", "must"):
		intent, action = IntentTask, ActionCreateTask
	case strings.Contains(lower, "?"):
		intent = IntentQuestion
	case greetingPattern.MatchString(lower):
		intent = IntentGreeting
	case containsAny(lower, "report", "summary", "progress"):
		intent = IntentReportRequest
	}

	return Analysis{
		Intent: intent,
		Entities: Entities{
			Times:  matchAll(timePatterns, text),
			Dates:  matchAll(datePatterns, text),
			Habits: habitsIn(lower),
			Tasks:  []string{},
		},
		Sentiment:  sentimentOf(lower),
		Action:     action,
		Confidence: defaultHeuristicConfidence,
		Source:     SourceHeuristic,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func matchAll(patterns []*regexp.Regexp, text string) []string {
	out := []string{}
	for _, re := range patterns {
		out = append(out, re.FindAllString(text, -1)...)
	}
	return out
}

func habitsIn(lower string) []string {
	out := []string{}
	for _, h := range habitKeywords {
		if containsAny(lower, h.keywords...) {
			out = append(out, h.habit)
		}
	}
	return out
}

func sentimentOf(lower string) Sentiment {
	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
