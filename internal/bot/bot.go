// Package bot turns Telegram updates into Pulse behavior: chat commands,
// free-text messages (classified, mined for reminders, habits, tasks and
// health notes, then answered in persona), shared media and inline
// keyboard callbacks. It also delivers due reminders.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nugget/pulse/internal/convo"
	"github.com/nugget/pulse/internal/files"
	"github.com/nugget/pulse/internal/habits"
	"github.com/nugget/pulse/internal/health"
	"github.com/nugget/pulse/internal/llm"
	"github.com/nugget/pulse/internal/prompts"
	"github.com/nugget/pulse/internal/reminders"
	"github.com/nugget/pulse/internal/reports"
	"github.com/nugget/pulse/internal/tasks"
	"github.com/nugget/pulse/internal/telegram"
	"github.com/nugget/pulse/internal/usage"
	"github.com/nugget/pulse/internal/users"
)

// rateWindow is the sliding window for per-chat rate limiting.
const rateWindow = time.Minute

// cleanupInterval controls how often stale rate-limit entries are
// evicted.
const cleanupInterval = 10 * time.Minute

// Config holds the dependencies for a Bot. Health and Files may be nil.
type Config struct {
	Sender    telegram.Sender
	LLM       llm.Generator
	Users     *users.Store
	Convo     *convo.Store
	Reminders *reminders.Service
	Habits    *habits.Tracker
	Health    *health.Tracker
	Tasks     *tasks.Store
	Files     *files.Store
	Reports   *reports.Generator
	Logger    *slog.Logger
	RateLimit int // per chat per minute; 0 = unlimited
}

// Bot handles inbound updates.
type Bot struct {
	sender    telegram.Sender
	llm       llm.Generator
	users     *users.Store
	convo     *convo.Store
	reminders *reminders.Service
	habits    *habits.Tracker
	health    *health.Tracker
	tasks     *tasks.Store
	files     *files.Store
	reports   *reports.Generator
	logger    *slog.Logger
	rateLimit int
	now       func() time.Time

	mu          sync.Mutex
	chatTimes   map[int64][]time.Time
	lastCleanup time.Time
}

// New creates a Bot.
func New(cfg Config) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		sender:    cfg.Sender,
		llm:       cfg.LLM,
		users:     cfg.Users,
		convo:     cfg.Convo,
		reminders: cfg.Reminders,
		habits:    cfg.Habits,
		health:    cfg.Health,
		tasks:     cfg.Tasks,
		files:     cfg.Files,
		reports:   cfg.Reports,
		logger:    logger.With("component", "bot"),
		rateLimit: cfg.RateLimit,
		now:       time.Now,
		chatTimes: make(map[int64][]time.Time),
	}
}

// HandleUpdate processes one update. The returned error is for logging
// only; the user has already been told whatever they need to know.
func (b *Bot) HandleUpdate(ctx context.Context, u *tgbotapi.Update) error {
	switch {
	case u.Message != nil:
		return b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		return b.handleCallback(ctx, u.CallbackQuery)
	default:
		b.logger.Debug("ignoring update", "update_id", u.UpdateID)
		return nil
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.Chat == nil {
		return nil
	}
	chatID := m.Chat.ID

	if !b.allowChat(chatID) {
		b.logger.Warn("message rate-limited", "chat_id", chatID)
		return nil
	}

	p := users.Profile{ChatID: chatID}
	if m.From != nil {
		p.Username = m.From.UserName
		p.FirstName = m.From.FirstName
		p.LastName = m.From.LastName
	}
	user, err := b.users.GetOrCreate(ctx, p)
	if err != nil {
		b.reply(ctx, chatID, prompts.GenericError)
		return err
	}
	ctx = usage.WithUser(ctx, user.ID)

	b.logger.Info("message received",
		"user_id", user.ID,
		"chat_id", chatID,
		"message_len", len(m.Text),
	)

	switch {
	case m.Text != "":
		if strings.HasPrefix(m.Text, "/") {
			return b.handleCommand(ctx, user, m.Text)
		}
		return b.handleText(ctx, user, m.Text)
	case len(m.Photo) > 0:
		largest := m.Photo[len(m.Photo)-1]
		return b.handleMedia(ctx, user, &files.File{
			TelegramID: largest.FileID,
			Kind:       files.KindPhoto,
			Size:       largest.FileSize,
			Caption:    m.Caption,
		}, prompts.PhotoShared(m.Caption))
	case m.Document != nil:
		return b.handleMedia(ctx, user, &files.File{
			TelegramID: m.Document.FileID,
			Kind:       files.KindDocument,
			Name:       m.Document.FileName,
			MimeType:   m.Document.MimeType,
			Size:       m.Document.FileSize,
			Caption:    m.Caption,
		}, prompts.DocumentShared(m.Document.FileName))
	case m.Voice != nil:
		return b.handleMedia(ctx, user, &files.File{
			TelegramID:   m.Voice.FileID,
			Kind:         files.KindVoice,
			MimeType:     m.Voice.MimeType,
			Size:         m.Voice.FileSize,
			DurationSecs: m.Voice.Duration,
		}, prompts.VoiceShared(m.Voice.Duration))
	default:
		b.logger.Debug("ignoring unsupported message", "chat_id", chatID)
		return nil
	}
}

// handleText runs a free-text message through classification, the
// domain services and a persona reply.
func (b *Bot) handleText(ctx context.Context, user *users.User, text string) error {
	cc, err := b.convo.GetContext(ctx, user.ID)
	if err != nil {
		b.logger.Warn("conversation context unavailable", "user_id", user.ID, "error", err)
		cc = &convo.Context{Preferences: user.Preferences}
	}
	history := cc.History()

	analysis := llm.AnalyzeMessage(ctx, b.llm, text, history, b.now())
	b.logger.Debug("message analyzed",
		"user_id", user.ID,
		"intent", analysis.Intent,
		"action", analysis.Action,
		"confidence", analysis.Confidence,
		"source", analysis.Source,
	)

	switch analysis.Action {
	case llm.ActionCreateReminder:
		b.processReminder(ctx, user, text)
	case llm.ActionTrackHabit:
		if tracked, err := b.habits.TrackFromMessage(ctx, user.ID, user.Location(), text); err != nil {
			b.logger.Error("habit tracking failed", "user_id", user.ID, "error", err)
		} else if len(tracked) > 0 {
			b.logger.Info("habits tracked", "user_id", user.ID, "habits", tracked)
		}
	case llm.ActionCreateTask:
		task, err := b.tasks.CreateFromMessage(ctx, user.ID, text)
		switch {
		case err != nil:
			b.logger.Error("task creation failed", "user_id", user.ID, "error", err)
		case task == nil:
			b.logger.Warn("no task found in message", "user_id", user.ID, "intent", analysis.Intent)
		default:
			b.reply(ctx, user.ChatID, fmt.Sprintf("✅ Task added: %q", task.Title))
		}
	case llm.ActionNone:
		if detected := habits.Detect(text); len(detected) > 0 {
			b.confirmHabit(ctx, user, detected[0])
		}
	}

	if b.health != nil {
		if d, err := b.health.Analyze(ctx, user.ID, user.Location(), text); err != nil {
			b.logger.Error("health analysis failed", "user_id", user.ID, "error", err)
		} else if !d.Empty() {
			b.logger.Debug("health notes logged", "user_id", user.ID,
				"meals", len(d.Meals), "mood", d.Mood != nil, "activities", len(d.Activities))
		}
	}

	resp, err := b.llm.Generate(ctx, text, history, llm.Options{
		System: b.persona(user, history, text, &analysis),
		Role:   "chat",
	})
	if err != nil {
		return b.replyGenerateError(ctx, user, err)
	}

	if err := b.convo.Save(ctx, user.ID, text, resp.Content); err != nil {
		b.logger.Error("failed to save conversation", "user_id", user.ID, "error", err)
	}

	b.reply(ctx, user.ChatID, resp.Content)
	return nil
}

// processReminder creates or modifies a reminder from text and tells
// the user how it went.
func (b *Bot) processReminder(ctx context.Context, user *users.User, text string) {
	out, err := b.reminders.Process(ctx, user, text)
	switch {
	case err != nil:
		b.logger.Error("reminder processing failed", "user_id", user.ID, "error", err)
		b.reply(ctx, user.ChatID, prompts.ReminderFailed)
	case out.Created != nil:
		b.reply(ctx, user.ChatID, reminderCreated(out.Created, user.Location()))
	case out.Modified != nil && out.Modified.OK:
		b.reply(ctx, user.ChatID, out.Modified.Message)
	case out.Modified != nil:
		b.reply(ctx, user.ChatID, "❌ "+out.Modified.Message)
	default:
		b.reply(ctx, user.ChatID, prompts.ModifyFailed)
	}
}

func reminderCreated(r *reminders.Reminder, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Reminder set!\n\n📝 **%s**  \n⏰ %s", r.Description, formatWhen(r.RemindAt, loc))
	if r.Notes != "" {
		fmt.Fprintf(&sb, "  \n📋 %s", r.Notes)
	}
	return sb.String()
}

// formatWhen renders a reminder time in the user's zone.
func formatWhen(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon Jan 2, 2006 3:04 PM MST")
}

// confirmHabit asks whether a habit mentioned in passing should be
// logged.
func (b *Bot) confirmHabit(ctx context.Context, user *users.User, name string) {
	kb := telegram.NewKeyboard(telegram.Row(
		telegram.Button{Text: "Yes ✅", Data: callbackData(CallbackHabitConfirm, name, "yes")},
		telegram.Button{Text: "No", Data: callbackData(CallbackHabitConfirm, name, "no")},
	))
	if _, err := b.sender.Send(ctx, user.ChatID, fmt.Sprintf("Sounds like %s! Want me to log it as a habit for today?", name), kb); err != nil {
		b.logger.Error("habit confirmation send failed", "user_id", user.ID, "error", err)
	}
}

// persona builds the system prompt for a conversational reply.
func (b *Bot) persona(user *users.User, history []llm.Message, text string, a *llm.Analysis) string {
	var recent []string
	for _, m := range history {
		if m.Role == "user" {
			recent = append(recent, m.Content)
		}
	}
	mood := llm.DetectMood(append(recent, text))

	profile := fmt.Sprintf("name: %s, timezone: %s", user.Name(), user.Timezone)
	if a != nil {
		profile += fmt.Sprintf(", intent: %s, sentiment: %s", a.Intent, a.Sentiment)
	}
	return prompts.Persona(profile, string(mood), b.now().In(user.Location()).Hour())
}

// handleMedia records a shared file and acknowledges it in persona.
func (b *Bot) handleMedia(ctx context.Context, user *users.User, f *files.File, prompt string) error {
	f.UserID = user.ID
	if b.files != nil {
		if err := b.files.Save(ctx, f); err != nil {
			kind := string(f.Kind)
			if f.Kind == files.KindVoice {
				kind = "voice message"
			}
			b.reply(ctx, user.ChatID, prompts.SaveFailed(kind))
			return err
		}
		b.logger.Info("file saved", "user_id", user.ID, "kind", f.Kind, "file_id", f.ID)
	}

	resp, err := b.llm.Generate(ctx, prompt, nil, llm.Options{
		System: b.persona(user, nil, "", nil),
		Role:   "media",
	})
	if err != nil {
		return b.replyGenerateError(ctx, user, err)
	}
	b.reply(ctx, user.ChatID, resp.Content)
	return nil
}

func (b *Bot) replyGenerateError(ctx context.Context, user *users.User, err error) error {
	if llm.IsAllProvidersFailed(err) {
		b.reply(ctx, user.ChatID, prompts.AIUnavailable)
	} else {
		b.reply(ctx, user.ChatID, prompts.GenericError)
	}
	return fmt.Errorf("generate reply for %s: %w", user.ID, err)
}

// reply sends md and logs a failure.
func (b *Bot) reply(ctx context.Context, chatID int64, md string) {
	b.send(ctx, chatID, md, nil)
}

func (b *Bot) send(ctx context.Context, chatID int64, md string, kb *telegram.Keyboard) {
	if _, err := b.sender.Send(ctx, chatID, md, kb); err != nil {
		b.logger.Error("reply send failed", "chat_id", chatID, "error", err)
	}
}

// NotifyReminder implements reminders.Notifier. Users who switched
// reminder notifications off are skipped without error, so the
// reminder still counts as delivered.
func (b *Bot) NotifyReminder(ctx context.Context, r reminders.Reminder) error {
	user, err := b.users.Get(ctx, r.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		b.logger.Warn("reminder owner missing", "reminder_id", r.ID, "user_id", r.UserID)
		return nil
	}
	if !user.Preferences.Enabled(users.PrefNotifications) || !user.Preferences.Enabled(users.PrefReminderNotifications) {
		b.logger.Debug("reminder notifications disabled", "user_id", user.ID, "reminder_id", r.ID)
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⏰ **Reminder**\n\n📝 %s", r.Description)
	if r.Notes != "" {
		fmt.Fprintf(&sb, "  \n📋 %s", r.Notes)
	}
	kb := telegram.NewKeyboard(
		telegram.Row(
			telegram.Button{Text: "💤 15 min", Data: callbackData(CallbackReminderSnooze, r.ID, "15")},
			telegram.Button{Text: "💤 1 hour", Data: callbackData(CallbackReminderSnooze, r.ID, "60")},
		),
		telegram.Row(telegram.Button{Text: "✅ Done", Data: callbackData(CallbackReminderComplete, r.ID)}),
	)

	if _, err := b.sender.Send(ctx, user.ChatID, sb.String(), kb); err != nil {
		return fmt.Errorf("deliver reminder %s: %w", r.ID, err)
	}
	return nil
}

// allowChat checks whether the chat is within the per-minute rate
// limit. Returns true if the message should be processed.
func (b *Bot) allowChat(chatID int64) bool {
	if b.rateLimit <= 0 {
		return true
	}

	now := b.now()
	cutoff := now.Add(-rateWindow)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeCleanupLocked(now)

	timestamps := b.chatTimes[chatID]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= b.rateLimit {
		b.chatTimes[chatID] = valid
		return false
	}

	b.chatTimes[chatID] = append(valid, now)
	return true
}

// maybeCleanupLocked evicts stale chat entries. Must be called with
// b.mu held.
func (b *Bot) maybeCleanupLocked(now time.Time) {
	if now.Sub(b.lastCleanup) < cleanupInterval {
		return
	}
	b.lastCleanup = now

	cutoff := now.Add(-2 * rateWindow)
	for chat, timestamps := range b.chatTimes {
		if len(timestamps) == 0 || timestamps[len(timestamps)-1].Before(cutoff) {
			delete(b.chatTimes, chat)
		}
	}
}

// clearData wipes everything the user owns except the user row.
func (b *Bot) clearData(ctx context.Context, user *users.User) error {
	type deleter struct {
		name string
		fn   func(context.Context, string) (int64, error)
	}
	deleters := []deleter{
		{"conversations", b.convo.DeleteForUser},
		{"reminders", b.reminders.Store().DeleteForUser},
		{"habits", b.habits.Store().DeleteForUser},
		{"tasks", b.tasks.DeleteForUser},
	}
	if b.health != nil {
		deleters = append(deleters, deleter{"health", b.health.DeleteForUser})
	}
	if b.files != nil {
		deleters = append(deleters, deleter{"files", b.files.DeleteForUser})
	}

	var errs []error
	for _, d := range deleters {
		n, err := d.fn(ctx, user.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", d.name, err))
			continue
		}
		b.logger.Debug("user data cleared", "user_id", user.ID, "table", d.name, "rows", n)
	}
	if err := b.users.ResetPreferences(ctx, user.ID); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		b.logger.Info("all user data cleared", "user_id", user.ID)
	}
	return errors.Join(errs...)
}
