package prompts

import (
	"fmt"
	"time"
)

// messageAnalysisTemplate asks for a strict JSON classification.
// Verbs: current time, weekday, conversation summary, message.
const messageAnalysisTemplate = `Analyze this user message and respond with ONLY a JSON object (no markdown, no extra text).

Current time: %s (%s)
Recent conversation: %s

Message: %q

Return JSON with this exact structure:
{
  "intent": "reminder|habit_report|question|task|greeting|report_request|general_chat",
  "entities": {
    "times": [],
    "dates": [],
    "habits": [],
    "tasks": []
  },
  "sentiment": "positive|neutral|negative",
  "action": "create_reminder|track_habit|create_task|none"
}

Rules:
- If message contains "remind me", set action to "create_reminder"
- If message mentions exercise/gym/meditation/reading, set action to "track_habit"
- If message contains "need to"/"have to", set action to "create_task"
- Extract any time/date mentions in entities.times and entities.dates
- Return ONLY the JSON object, nothing else`

// MessageAnalysis returns the intent-classification prompt. summary is
// a one-line digest of the last few turns ("" when there are none).
func MessageAnalysis(message, summary string, now time.Time) string {
	if summary == "" {
		summary = "(none)"
	}
	return fmt.Sprintf(messageAnalysisTemplate,
		now.Format("2006-01-02 15:04"),
		now.Weekday(),
		summary,
		message,
	)
}
