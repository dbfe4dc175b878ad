package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nugget/pulse/internal/database"
	"github.com/nugget/pulse/internal/format"
	"github.com/nugget/pulse/internal/prompts"
	"github.com/nugget/pulse/internal/reminders"
	"github.com/nugget/pulse/internal/reports"
	"github.com/nugget/pulse/internal/telegram"
	"github.com/nugget/pulse/internal/users"
)

// Command is a chat command.
type Command string

const (
	CommandStart     Command = "/start"
	CommandHelp      Command = "/help"
	CommandHabits    Command = "/habits"
	CommandReminders Command = "/reminders"
	CommandReport    Command = "/report"
	CommandTasks     Command = "/tasks"
	CommandSettings  Command = "/settings"
)

// ParseCommand splits a slash command into its Command and arguments.
// A "@botname" suffix on the command is ignored. ok is false for
// anything outside the known set.
func ParseCommand(text string) (cmd Command, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	switch c := Command(strings.ToLower(name)); c {
	case CommandStart, CommandHelp, CommandHabits, CommandReminders,
		CommandReport, CommandTasks, CommandSettings:
		return c, fields[1:], true
	default:
		return "", nil, false
	}
}

func (b *Bot) handleCommand(ctx context.Context, user *users.User, text string) error {
	cmd, args, ok := ParseCommand(text)
	if !ok {
		b.reply(ctx, user.ChatID, prompts.UnknownCommand)
		return nil
	}

	b.logger.Debug("command", "user_id", user.ID, "command", cmd, "args", args)

	switch cmd {
	case CommandStart:
		b.reply(ctx, user.ChatID, prompts.Start(user.FirstName))
	case CommandHelp:
		b.reply(ctx, user.ChatID, prompts.Help)
	case CommandHabits:
		return b.commandHabits(ctx, user)
	case CommandReminders:
		filter := ""
		if len(args) > 0 {
			filter = args[0]
		}
		return b.commandReminders(ctx, user, filter)
	case CommandReport:
		report, err := b.reports.Daily(ctx, user)
		if err != nil {
			b.reply(ctx, user.ChatID, prompts.GenericError)
			return err
		}
		b.send(ctx, user.ChatID, report, reportKeyboard())
	case CommandTasks:
		return b.commandTasks(ctx, user)
	case CommandSettings:
		text, kb := b.settingsMenu(user, SettingsMain)
		b.send(ctx, user.ChatID, text, kb)
	}
	return nil
}

// reportKeyboard offers the other report kinds under a report.
func reportKeyboard() *telegram.Keyboard {
	return telegram.NewKeyboard(
		telegram.Row(
			telegram.Button{Text: "📊 Daily Report", Data: callbackData(CallbackReportType, string(reports.KindDaily))},
			telegram.Button{Text: "📈 Weekly Report", Data: callbackData(CallbackReportType, string(reports.KindWeekly))},
		),
		telegram.Row(
			telegram.Button{Text: "💪 Habits Overview", Data: callbackData(CallbackReportType, string(reports.KindHabits))},
		),
	)
}

// commandHabits shows the habits report with a one-tap log button for
// each of the top habits not yet logged today.
func (b *Bot) commandHabits(ctx context.Context, user *users.User) error {
	report, err := b.reports.Habits(ctx, user)
	if err != nil {
		b.reply(ctx, user.ChatID, prompts.GenericError)
		return err
	}

	today := database.Day(b.now(), user.Location())
	stats, err := b.habits.Store().Stats(ctx, user.ID, today)
	if err != nil {
		b.logger.Warn("habit stats unavailable", "user_id", user.ID, "error", err)
	}
	var rows [][]telegram.Button
	for _, st := range stats {
		if len(rows) == 5 {
			break
		}
		if st.LastDate == today {
			continue
		}
		rows = append(rows, telegram.Row(telegram.Button{
			Text: format.Decorate("success", "Log "+st.Name+" today"),
			Data: callbackData(CallbackHabitTrack, st.ID, "1"),
		}))
	}

	var kb *telegram.Keyboard
	if len(rows) > 0 {
		kb = telegram.NewKeyboard(rows...)
	}
	b.send(ctx, user.ChatID, report, kb)
	return nil
}

var statusEmoji = map[reminders.Status]string{
	reminders.StatusPending:   "⏰",
	reminders.StatusCompleted: "✅",
	reminders.StatusCancelled: "❌",
}

func (b *Bot) commandReminders(ctx context.Context, user *users.User, arg string) error {
	filter, ok := reminders.ParseFilter(arg)
	if !ok {
		b.reply(ctx, user.ChatID, "Unknown filter. *Usage:* `/reminders pending|completed|cancelled|today|all`")
		return nil
	}

	list, err := b.reminders.List(ctx, user, filter)
	if err != nil {
		b.reply(ctx, user.ChatID, prompts.GenericError)
		return err
	}
	b.reply(ctx, user.ChatID, formatReminders(list, filter, user.Location()))
	return nil
}

// formatReminders renders a /reminders listing.
func formatReminders(list []reminders.Reminder, filter reminders.Filter, loc *time.Location) string {
	if len(list) == 0 {
		label := string(filter) + " "
		switch filter {
		case reminders.FilterToday:
			label = "reminders for today"
		case reminders.FilterAll:
			label = "reminders"
		default:
			label += "reminders"
		}
		return fmt.Sprintf("⏰ No %s found. Try saying 'remind me to X at Y time'!", label)
	}

	var sb strings.Builder
	switch filter {
	case reminders.FilterToday:
		sb.WriteString("⏰ **Today's Pending Reminders:**\n\n")
	case reminders.FilterAll:
		sb.WriteString("⏰ **All Your Reminders:**\n\n")
	default:
		name := string(filter)
		fmt.Fprintf(&sb, "%s **Your %s Reminders:**\n\n",
			statusEmoji[reminders.Status(filter)], strings.ToUpper(name[:1])+name[1:])
	}

	for _, r := range list {
		fmt.Fprintf(&sb, "📝 **%s**  \n", r.Description)
		fmt.Fprintf(&sb, "📅 %s", formatWhen(r.RemindAt, loc))
		if filter == reminders.FilterAll {
			fmt.Fprintf(&sb, " %s", statusEmoji[r.Status])
		}
		sb.WriteString("  \n")
		if r.Notes != "" {
			fmt.Fprintf(&sb, "📋 %s  \n", r.Notes)
		}
		fmt.Fprintf(&sb, "🆔 ID: `%s`\n\n", r.ID)
	}
	sb.WriteString("*Usage:* `/reminders pending|completed|cancelled|today|all`")
	return sb.String()
}

// commandTasks lists pending tasks with a completion button for each.
func (b *Bot) commandTasks(ctx context.Context, user *users.User) error {
	pending, err := b.tasks.Pending(ctx, user.ID)
	if err != nil {
		b.reply(ctx, user.ChatID, prompts.GenericError)
		return err
	}
	if len(pending) == 0 {
		b.reply(ctx, user.ChatID, prompts.NoTasks)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("📝 **Your Tasks:**\n\n")
	rows := make([][]telegram.Button, 0, len(pending))
	for i, t := range pending {
		fmt.Fprintf(&sb, "%d. %s", i+1, t.Title)
		if t.Description != "" && t.Description != t.Title {
			fmt.Fprintf(&sb, "  \n   %s", format.Truncate(t.Description, 120))
		}
		sb.WriteString("\n\n")
		rows = append(rows, telegram.Row(telegram.Button{
			Text: fmt.Sprintf("✅ %d. %s", i+1, format.Truncate(t.Title, 30)),
			Data: callbackData(CallbackTaskComplete, t.ID),
		}))
	}
	b.send(ctx, user.ChatID, strings.TrimRight(sb.String(), "\n"), telegram.NewKeyboard(rows...))
	return nil
}
