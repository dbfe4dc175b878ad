package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nugget/pulse/internal/prompts"
)

// Intent is the closed set of message intents.
type Intent string

const (
	IntentReminder      Intent = "reminder"
	IntentHabitReport   Intent = "habit_report"
	IntentQuestion      Intent = "question"
	IntentTask          Intent = "task"
	IntentGreeting      Intent = "greeting"
	IntentReportRequest Intent = "report_request"
	IntentGeneralChat   Intent = "general_chat"
)

// Valid reports whether i is a member of the closed set.
func (i Intent) Valid() bool {
	switch i {
	case IntentReminder, IntentHabitReport, IntentQuestion, IntentTask,
		IntentGreeting, IntentReportRequest, IntentGeneralChat:
		return true
	}
	return false
}

// Action is the follow-up the bot should take for a message.
type Action string

const (
	ActionCreateReminder Action = "create_reminder"
	ActionTrackHabit     Action = "track_habit"
	ActionCreateTask     Action = "create_task"
	ActionNone           Action = "none"
)

// Valid reports whether a is a member of the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionCreateReminder, ActionTrackHabit, ActionCreateTask, ActionNone:
		return true
	}
	return false
}

// Sentiment is the coarse polarity of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Entities are the spans pulled out of a message.
type Entities struct {
	Times  []string `json:"times"`
	Dates  []string `json:"dates"`
	Habits []string `json:"habits"`
	Tasks  []string `json:"tasks"`
}

// AnalysisSource records which classifier produced an Analysis.
type AnalysisSource string

const (
	SourceLLM       AnalysisSource = "llm"
	SourceHeuristic AnalysisSource = "heuristic"
)

// Analysis is the classification of one inbound message.
type Analysis struct {
	Intent     Intent         `json:"intent"`
	Entities   Entities       `json:"entities"`
	Sentiment  Sentiment      `json:"sentiment"`
	Action     Action         `json:"action"`
	Confidence Confidence     `json:"confidence"`
	Source     AnalysisSource `json:"-"`
}

// Confidence assigned when the model omits one, and to heuristic results.
const (
	defaultLLMConfidence       = 80
	defaultHeuristicConfidence = 50
)

func validateAnalysis(a *Analysis) error {
	a.Intent = Intent(strings.ToLower(strings.TrimSpace(string(a.Intent))))
	a.Action = Action(strings.ToLower(strings.TrimSpace(string(a.Action))))
	if !a.Intent.Valid() {
		return fmt.Errorf("unknown intent %q", a.Intent)
	}
	if a.Action == "" {
		a.Action = ActionNone
	}
	if !a.Action.Valid() {
		return fmt.Errorf("unknown action %q", a.Action)
	}
	switch a.Sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		a.Sentiment = SentimentNeutral
	}
	if a.Confidence <= 0 || a.Confidence > 100 {
		a.Confidence = defaultLLMConfidence
	}
	return nil
}

// AnalyzeMessage classifies text with the model and falls back to
// ClassifyHeuristic when the call fails or the reply does not parse.
// It never returns an error.
func AnalyzeMessage(ctx context.Context, g Generator, text string, history []Message, now time.Time) Analysis {
	res := GenerateJSON(ctx, g, prompts.MessageAnalysis(text, summarize(history, 3), now), Options{
		Temperature: 0.1,
		MaxTokens:   300,
		Role:        "analysis",
	}, validateAnalysis)

	if res.OK() {
		a := res.Value
		a.Source = SourceLLM
		return a
	}
	return ClassifyHeuristic(text)
}

// AnalyzeMessage classifies text using the adapter's default provider.
func (a *Adapter) AnalyzeMessage(ctx context.Context, text string, history []Message) Analysis {
	out := AnalyzeMessage(ctx, a, text, history, a.now())
	if out.Source == SourceHeuristic {
		a.logger.Debug("analysis fell back to heuristics", "intent", out.Intent, "action", out.Action)
	}
	return out
}

// summarize renders the last n turns as a single line for the
// analysis prompt.
func summarize(history []Message, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	parts := make([]string, 0, len(history))
	for _, m := range history {
		content := strings.Join(strings.Fields(m.Content), " ")
		if len(content) > 120 {
			content = content[:117] + "..."
		}
		parts = append(parts, m.Role+": "+content)
	}
	return strings.Join(parts, " | ")
}
