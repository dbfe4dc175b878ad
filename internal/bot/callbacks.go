package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nugget/pulse/internal/database"
	"github.com/nugget/pulse/internal/prompts"
	"github.com/nugget/pulse/internal/reminders"
	"github.com/nugget/pulse/internal/reports"
	"github.com/nugget/pulse/internal/tasks"
	"github.com/nugget/pulse/internal/telegram"
	"github.com/nugget/pulse/internal/users"
)

// CallbackAction is the first colon-delimited field of callback data.
type CallbackAction string

const (
	CallbackHabitConfirm     CallbackAction = "habit_confirm"     // <name>:yes|no
	CallbackHabitTrack       CallbackAction = "habit_track"       // <habitID>:<count>
	CallbackReminderSnooze   CallbackAction = "reminder_snooze"   // <id>:<minutes>
	CallbackReminderComplete CallbackAction = "reminder_complete" // <id>
	CallbackTaskComplete     CallbackAction = "task_complete"     // <id>
	CallbackReportType       CallbackAction = "report_type"       // daily|weekly|habits
	CallbackSettings         CallbackAction = "settings"          // <SettingsPage>
	CallbackSetTimezone      CallbackAction = "set_timezone"      // <IANA>
	CallbackSetNotifications CallbackAction = "set_notifications" // enable|disable|reminders|reports
	CallbackConfirmClear     CallbackAction = "confirm_clear"
)

// arity is the number of arguments each action takes.
var arity = map[CallbackAction]int{
	CallbackHabitConfirm:     2,
	CallbackHabitTrack:       2,
	CallbackReminderSnooze:   2,
	CallbackReminderComplete: 1,
	CallbackTaskComplete:     1,
	CallbackReportType:       1,
	CallbackSettings:         1,
	CallbackSetTimezone:      1,
	CallbackSetNotifications: 1,
	CallbackConfirmClear:     0,
}

// Callback is parsed callback data.
type Callback struct {
	Action CallbackAction
	Args   []string
}

// ParseCallback splits callback data. The nested form
// "settings:set_timezone:UTC" is accepted as "set_timezone:UTC". ok is
// false for unknown actions or the wrong number of arguments.
func ParseCallback(data string) (Callback, bool) {
	parts := strings.Split(data, ":")
	action := CallbackAction(parts[0])
	args := parts[1:]

	if action == CallbackSettings && len(args) > 0 {
		switch nested := CallbackAction(args[0]); nested {
		case CallbackSetTimezone, CallbackSetNotifications, CallbackConfirmClear:
			action, args = nested, args[1:]
		}
	}

	n, known := arity[action]
	if !known {
		return Callback{}, false
	}
	if action == CallbackSetTimezone && len(args) > 1 {
		// Zone names never contain ':' but be lenient with the join.
		args = []string{strings.Join(args, ":")}
	}
	if len(args) != n {
		return Callback{}, false
	}
	return Callback{Action: action, Args: args}, true
}

func callbackData(action CallbackAction, args ...string) string {
	return strings.Join(append([]string{string(action)}, args...), ":")
}

// callbackReply is what a callback handler wants done with the message
// that carried the button and with the callback itself.
type callbackReply struct {
	edit     string             // replaces the message text when non-empty
	keyboard *telegram.Keyboard // attached to the edit
	send     string             // sent as a new message when non-empty
	answer   string             // toast text
	alert    bool
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	var chatID int64
	var messageID int
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
		messageID = q.Message.MessageID
	} else if q.From != nil {
		chatID = q.From.ID
	}

	user, err := b.users.GetByChatID(ctx, chatID)
	if err != nil || user == nil {
		b.answer(ctx, q.ID, prompts.UserNotFound, true)
		return err
	}
	if err := b.users.Touch(ctx, user.ID); err != nil {
		b.logger.Warn("touch failed", "user_id", user.ID, "error", err)
	}

	cb, ok := ParseCallback(q.Data)
	if !ok {
		b.logger.Warn("unknown callback", "user_id", user.ID, "data", q.Data)
		b.answer(ctx, q.ID, prompts.UnknownAction, false)
		return nil
	}

	b.logger.Debug("callback", "user_id", user.ID, "action", cb.Action, "args", cb.Args)

	reply, err := b.dispatchCallback(ctx, user, cb)
	if err != nil {
		b.answer(ctx, q.ID, prompts.CallbackFailed, true)
		return fmt.Errorf("callback %s: %w", cb.Action, err)
	}

	if reply.edit != "" && messageID != 0 {
		if err := b.sender.Edit(ctx, chatID, messageID, reply.edit, reply.keyboard); err != nil {
			b.logger.Error("callback edit failed", "user_id", user.ID, "error", err)
		}
	}
	if reply.send != "" {
		b.send(ctx, chatID, reply.send, reply.keyboard)
	}
	b.answer(ctx, q.ID, reply.answer, reply.alert)
	return nil
}

func (b *Bot) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := b.sender.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		b.logger.Warn("answer callback failed", "error", err)
	}
}

func (b *Bot) dispatchCallback(ctx context.Context, user *users.User, cb Callback) (callbackReply, error) {
	switch cb.Action {
	case CallbackHabitConfirm:
		return b.callbackHabitConfirm(ctx, user, cb.Args[0], cb.Args[1])
	case CallbackHabitTrack:
		return b.callbackHabitTrack(ctx, user, cb.Args[0], cb.Args[1])
	case CallbackReminderSnooze:
		return b.callbackReminderSnooze(ctx, user, cb.Args[0], cb.Args[1])
	case CallbackReminderComplete:
		err := b.reminders.Complete(ctx, user.ID, cb.Args[0])
		if errors.Is(err, reminders.ErrNotFound) {
			return callbackReply{answer: "Reminder not found", alert: true}, nil
		}
		if err != nil {
			return callbackReply{}, err
		}
		return callbackReply{edit: "✅ Reminder marked as complete!", answer: "Completed!"}, nil
	case CallbackTaskComplete:
		t, err := b.tasks.Complete(ctx, user.ID, cb.Args[0])
		if errors.Is(err, tasks.ErrNotFound) {
			return callbackReply{answer: "Task not found", alert: true}, nil
		}
		if err != nil {
			return callbackReply{}, err
		}
		return callbackReply{edit: fmt.Sprintf("✅ Task completed: %s", t.Title), answer: "Completed!"}, nil
	case CallbackReportType:
		kind, ok := reports.ParseKind(cb.Args[0])
		if !ok {
			return callbackReply{send: "Report type not recognized."}, nil
		}
		report, err := b.reports.Build(ctx, user, kind)
		if err != nil {
			return callbackReply{}, err
		}
		return callbackReply{send: report}, nil
	case CallbackSettings:
		page := SettingsPage(cb.Args[0])
		if page == SettingsClose {
			return callbackReply{edit: "Settings menu closed."}, nil
		}
		text, kb := b.settingsMenu(user, page)
		return callbackReply{edit: text, keyboard: kb}, nil
	case CallbackSetTimezone:
		tz := cb.Args[0]
		if err := b.users.SetTimezone(ctx, user.ID, tz); err != nil {
			b.logger.Warn("timezone rejected", "user_id", user.ID, "timezone", tz, "error", err)
			return callbackReply{answer: "Unknown timezone", alert: true}, nil
		}
		return callbackReply{edit: fmt.Sprintf("✅ Timezone set to %s", tz), keyboard: backKeyboard()}, nil
	case CallbackSetNotifications:
		if err := b.setNotifications(ctx, user, cb.Args[0]); err != nil {
			return callbackReply{}, err
		}
		return callbackReply{edit: "✅ Notification preferences updated", keyboard: backKeyboard()}, nil
	case CallbackConfirmClear:
		if err := b.clearData(ctx, user); err != nil {
			return callbackReply{}, err
		}
		return callbackReply{edit: "✅ All your data has been cleared. You can start fresh!"}, nil
	}
	return callbackReply{answer: prompts.UnknownAction}, nil
}

func (b *Bot) callbackHabitConfirm(ctx context.Context, user *users.User, name, answer string) (callbackReply, error) {
	if answer != "yes" {
		return callbackReply{edit: "No worries! I won't track that as a habit."}, nil
	}
	if _, err := b.habits.Record(ctx, user.ID, name, user.Location()); err != nil {
		return callbackReply{}, err
	}
	kb := telegram.NewKeyboard(telegram.Row(
		telegram.Button{Text: "View My Habits 📊", Data: callbackData(CallbackReportType, string(reports.KindHabits))},
	))
	return callbackReply{
		edit:     fmt.Sprintf("✅ Great! I've recorded your %s habit for today!", name),
		keyboard: kb,
	}, nil
}

func (b *Bot) callbackHabitTrack(ctx context.Context, user *users.User, habitID, countArg string) (callbackReply, error) {
	count, err := strconv.Atoi(countArg)
	if err != nil || count < 1 {
		return callbackReply{answer: prompts.UnknownAction}, nil
	}
	h, err := b.habits.Store().Get(ctx, habitID)
	if err != nil {
		return callbackReply{}, err
	}
	if h == nil || h.UserID != user.ID {
		return callbackReply{answer: "Habit not found", alert: true}, nil
	}
	if err := b.habits.Store().SetCount(ctx, h.ID, database.Day(b.now(), user.Location()), count); err != nil {
		return callbackReply{}, err
	}
	return callbackReply{
		edit:   fmt.Sprintf("✅ Recorded %d for your %s habit today!", count, h.Name),
		answer: "Habit tracked!",
	}, nil
}

func (b *Bot) callbackReminderSnooze(ctx context.Context, user *users.User, id, minutesArg string) (callbackReply, error) {
	minutes, err := strconv.Atoi(minutesArg)
	if err != nil || minutes < 1 {
		return callbackReply{answer: prompts.UnknownAction}, nil
	}
	r, err := b.reminders.Snooze(ctx, user.ID, id, minutes)
	if errors.Is(err, reminders.ErrNotFound) {
		return callbackReply{answer: "Reminder not found", alert: true}, nil
	}
	if err != nil {
		return callbackReply{}, err
	}
	b.logger.Info("reminder snoozed", "user_id", user.ID, "reminder_id", r.ID, "remind_at", r.RemindAt)
	return callbackReply{
		edit:   fmt.Sprintf("⏰ Reminder snoozed for %d minutes", minutes),
		answer: "Snoozed!",
	}, nil
}

// setNotifications applies one of the notification presets.
func (b *Bot) setNotifications(ctx context.Context, user *users.User, mode string) error {
	all, reminder, report := users.Enabled, users.Enabled, users.Enabled
	switch mode {
	case "enable":
	case "disable":
		all, reminder, report = users.Disabled, users.Disabled, users.Disabled
	case "reminders":
		report = users.Disabled
	case "reports":
		reminder = users.Disabled
	default:
		return fmt.Errorf("unknown notification mode %q", mode)
	}
	for key, value := range map[string]string{
		users.PrefNotifications:         all,
		users.PrefReminderNotifications: reminder,
		users.PrefReportNotifications:   report,
	} {
		if err := b.users.SetPreference(ctx, user.ID, key, value); err != nil {
			return err
		}
	}
	b.logger.Info("notification preferences updated", "user_id", user.ID, "mode", mode)
	return nil
}
