package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/pulse/internal/dateparse"
	"github.com/nugget/pulse/internal/llm"
	"github.com/nugget/pulse/internal/prompts"
	"github.com/nugget/pulse/internal/users"
)

// DefaultConfidenceThreshold is used when the service is built with a
// zero threshold.
const DefaultConfidenceThreshold = 60

// Extraction intents returned by the reminder prompt.
const (
	IntentCreate = "create_reminder"
	IntentModify = "modify_reminder"
	IntentNone   = "not_reminder"
)

// ModifyAction is a change requested for an existing reminder.
type ModifyAction string

const (
	ActionReschedule ModifyAction = "reschedule"
	ActionRename     ModifyAction = "rename"
	ActionAddNotes   ModifyAction = "add_notes"
	ActionComplete   ModifyAction = "complete"
	ActionCancel     ModifyAction = "cancel"
)

// pastTense is the word used in the confirmation message.
func (a ModifyAction) pastTense() (string, bool) {
	switch a {
	case ActionReschedule:
		return "rescheduled", true
	case ActionRename:
		return "renamed", true
	case ActionAddNotes:
		return "updated", true
	case ActionComplete:
		return "completed", true
	case ActionCancel:
		return "cancelled", true
	default:
		return "", false
	}
}

// Extraction is the structured reading of a reminder message.
type Extraction struct {
	Intent        string         `json:"intent"`
	Confidence    llm.Confidence `json:"confidence"`
	Description   string         `json:"description"`
	RemindAt      string         `json:"remindAt"`
	Notes         string         `json:"notes"`
	ReminderTitle string         `json:"reminderTitle"`
	Action        string         `json:"action"`
	NewValue      string         `json:"newValue"`
}

func validateExtraction(e *Extraction) error {
	e.Intent = strings.ToLower(strings.TrimSpace(e.Intent))
	e.Action = strings.ToLower(strings.TrimSpace(e.Action))
	e.Description = strings.TrimSpace(e.Description)
	e.ReminderTitle = strings.TrimSpace(e.ReminderTitle)
	e.NewValue = strings.TrimSpace(e.NewValue)
	e.Notes = strings.TrimSpace(e.Notes)
	if e.Intent == "" {
		return errors.New("missing intent")
	}
	return nil
}

// ModifyResult reports the outcome of a modification request.
type ModifyResult struct {
	OK       bool
	Message  string
	Reminder *Reminder
}

// Outcome is what Process did with a message. At most one of Created
// and Modified is set; both nil means the message was not a usable
// reminder request.
type Outcome struct {
	Created  *Reminder
	Modified *ModifyResult
}

// Service turns chat messages into reminder operations.
type Service struct {
	store     *Store
	gen       llm.Generator
	threshold int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a reminder service. threshold is the minimum
// extraction confidence (0-100); zero selects the default.
func NewService(store *Store, gen llm.Generator, threshold int, logger *slog.Logger) *Service {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		gen:       gen,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// Extract asks the model to read text as a reminder request. ok is false
// when the model could not be reached or its reply was unusable.
func (s *Service) Extract(ctx context.Context, user *users.User, text string) (*Extraction, bool) {
	now := s.now().In(user.Location())
	res := llm.GenerateJSON(ctx, s.gen, text, llm.Options{
		System:      prompts.ReminderExtraction(now),
		Temperature: 0.1,
		MaxTokens:   300,
		Role:        "extraction",
	}, validateExtraction)

	switch res.Kind {
	case llm.ParseOK:
		s.logger.Debug("reminder extraction",
			"user_id", user.ID,
			"intent", res.Value.Intent,
			"confidence", res.Value.Confidence,
		)
		return &res.Value, true
	case llm.ParseMalformed:
		s.logger.Warn("reminder extraction unusable", "user_id", user.ID, "error", res.Err)
	case llm.ParseProviderError:
		s.logger.Warn("reminder extraction failed", "user_id", user.ID, "error", res.Err)
	}
	return nil, false
}

// Process extracts once and creates or modifies a reminder according to
// the extracted intent.
func (s *Service) Process(ctx context.Context, user *users.User, text string) (Outcome, error) {
	ext, ok := s.Extract(ctx, user, text)
	if !ok {
		return Outcome{}, nil
	}
	switch ext.Intent {
	case IntentCreate:
		r, err := s.create(ctx, user, ext)
		return Outcome{Created: r}, err
	case IntentModify:
		m, err := s.modify(ctx, user, ext)
		return Outcome{Modified: m}, err
	default:
		return Outcome{}, nil
	}
}

// Create makes a reminder from text. It returns nil, nil when the text
// is not a confident, complete reminder request.
func (s *Service) Create(ctx context.Context, user *users.User, text string) (*Reminder, error) {
	ext, ok := s.Extract(ctx, user, text)
	if !ok || ext.Intent != IntentCreate {
		return nil, nil
	}
	return s.create(ctx, user, ext)
}

func (s *Service) create(ctx context.Context, user *users.User, ext *Extraction) (*Reminder, error) {
	if int(ext.Confidence) < s.threshold {
		s.logger.Debug("reminder below confidence threshold",
			"user_id", user.ID, "confidence", ext.Confidence, "threshold", s.threshold)
		return nil, nil
	}
	if ext.Description == "" || ext.RemindAt == "" {
		return nil, nil
	}
	at, ok := s.parseTime(ext.RemindAt, user.Location())
	if !ok {
		s.logger.Warn("unparseable reminder time", "user_id", user.ID, "remind_at", ext.RemindAt)
		return nil, nil
	}

	r, err := s.store.Insert(ctx, user.ID, ext.Description, at, ext.Notes)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reminder created",
		"user_id", user.ID,
		"reminder_id", r.ID,
		"remind_at", r.RemindAt,
	)
	return r, nil
}

// Modify applies a change described in text to one of the user's
// reminders. It returns nil, nil when the text is not a confident,
// complete modification request.
func (s *Service) Modify(ctx context.Context, user *users.User, text string) (*ModifyResult, error) {
	ext, ok := s.Extract(ctx, user, text)
	if !ok || ext.Intent != IntentModify {
		return nil, nil
	}
	return s.modify(ctx, user, ext)
}

func (s *Service) modify(ctx context.Context, user *users.User, ext *Extraction) (*ModifyResult, error) {
	if int(ext.Confidence) < s.threshold || ext.ReminderTitle == "" || ext.Action == "" {
		return nil, nil
	}
	value := ext.NewValue
	if ModifyAction(ext.Action) == ActionAddNotes && value == "" {
		value = ext.Notes
	}
	return s.Apply(ctx, user, ext.ReminderTitle, ModifyAction(ext.Action), value)
}

// Apply performs action on the user's newest reminder whose description
// contains title. For ActionAddNotes, value is appended to any existing
// notes.
func (s *Service) Apply(ctx context.Context, user *users.User, title string, action ModifyAction, value string) (*ModifyResult, error) {
	verb, ok := action.pastTense()
	if !ok {
		return &ModifyResult{Message: "Unknown action"}, nil
	}

	r, err := s.store.FindNewest(ctx, user.ID, title)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return &ModifyResult{
			Message: fmt.Sprintf("No reminder found with description containing %q", title),
		}, nil
	}

	switch action {
	case ActionReschedule:
		at, ok := s.parseTime(value, user.Location())
		if !ok {
			return &ModifyResult{Message: fmt.Sprintf("Could not understand the new time %q", value)}, nil
		}
		err = s.store.Reschedule(ctx, r.ID, at)
	case ActionRename:
		if value == "" {
			return &ModifyResult{Message: "A new name is required to rename a reminder"}, nil
		}
		err = s.store.Rename(ctx, r.ID, value)
	case ActionAddNotes:
		if value == "" {
			return &ModifyResult{Message: "A note is required to add notes to a reminder"}, nil
		}
		notes := value
		if r.Notes != "" {
			notes = r.Notes + "\n" + value
		}
		err = s.store.SetNotes(ctx, r.ID, notes)
	case ActionComplete:
		err = s.store.MarkCompleted(ctx, r.ID)
	case ActionCancel:
		err = s.store.MarkCancelled(ctx, r.ID)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reminder modified", "user_id", user.ID, "reminder_id", r.ID, "action", action)
	return &ModifyResult{
		OK:       true,
		Message:  fmt.Sprintf("Reminder %q has been %s successfully", r.Description, verb),
		Reminder: updated,
	}, nil
}

// List returns the user's reminders for filter. FilterToday is resolved
// against the user's local calendar day.
func (s *Service) List(ctx context.Context, user *users.User, filter Filter) ([]Reminder, error) {
	loc := user.Location()
	local := s.now().In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return s.store.List(ctx, user.ID, filter, start, start.AddDate(0, 0, 1))
}

// Snooze pushes the user's reminder minutes into the future and makes it
// pending again.
func (s *Service) Snooze(ctx context.Context, userID, id string, minutes int) (*Reminder, error) {
	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Reschedule(ctx, r.ID, s.now().Add(time.Duration(minutes)*time.Minute)); err != nil {
		return nil, err
	}
	snoozed, err := s.store.Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if snoozed == nil {
		return nil, ErrNotFound
	}
	return snoozed, nil
}

// Complete marks the user's reminder completed.
func (s *Service) Complete(ctx context.Context, userID, id string) error {
	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.store.MarkCompleted(ctx, r.ID)
}

func (s *Service) owned(ctx context.Context, userID, id string) (*Reminder, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil || r.UserID != userID {
		return nil, ErrNotFound
	}
	return r, nil
}

// parseTime reads a model-supplied time in loc, trying the prompt's
// layout first and natural language last.
func (s *Service) parseTime(v string, loc *time.Location) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{prompts.ReminderTimeLayout, "2006-01-02 15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	return dateparse.Parse(v, s.now().In(loc))
}
