// Package reports builds the daily, weekly and habit summaries users ask
// for with /report or the report buttons. Reports are CommonMark; the
// Telegram client renders them.
package reports

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/nugget/pulse/internal/database"
	"github.com/nugget/pulse/internal/format"
	"github.com/nugget/pulse/internal/habits"
	"github.com/nugget/pulse/internal/health"
	"github.com/nugget/pulse/internal/prompts"
	"github.com/nugget/pulse/internal/reminders"
	"github.com/nugget/pulse/internal/users"
)

// Kind names a report.
type Kind string

const (
	KindDaily  Kind = "daily"
	KindWeekly Kind = "weekly"
	KindHabits Kind = "habits"
)

// ParseKind maps callback data to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindDaily, KindWeekly, KindHabits:
		return k, true
	default:
		return "", false
	}
}

// medals rank the top habits.
var medals = []string{"🥇", "🥈", "🥉", "🏅", "⭐"}

func medal(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return "•"
}

// MessageCounter counts conversation turns.
type MessageCounter interface {
	CountBetween(ctx context.Context, userID string, start, end time.Time) (int, error)
}

// HabitSource supplies habit statistics.
type HabitSource interface {
	Stats(ctx context.Context, userID, today string) ([]habits.Stats, error)
	Top(ctx context.Context, userID, fromDay, toDay string, limit int) ([]habits.NameCount, error)
}

// ReminderCounter counts reminders due in a window.
type ReminderCounter interface {
	CountBetween(ctx context.Context, userID string, status reminders.Status, start, end time.Time) (int, error)
}

// TaskCounter counts tasks created in a window.
type TaskCounter interface {
	Counts(ctx context.Context, userID string, start, end time.Time) (total, completed int, err error)
}

// HealthSource supplies the daily health log.
type HealthSource interface {
	DailySummary(ctx context.Context, userID, day string) (*health.Summary, error)
}

// Sources are the stores a Generator reads. Health may be nil.
type Sources struct {
	Messages  MessageCounter
	Habits    HabitSource
	Reminders ReminderCounter
	Tasks     TaskCounter
	Health    HealthSource
}

// Generator builds reports.
type Generator struct {
	src  Sources
	now  func() time.Time
	pick func() int
}

// NewGenerator creates a report generator over src.
func NewGenerator(src Sources) *Generator {
	return &Generator{
		src:  src,
		now:  time.Now,
		pick: func() int { return rand.IntN(1 << 16) },
	}
}

// Build returns the report of kind for user.
func (g *Generator) Build(ctx context.Context, user *users.User, kind Kind) (string, error) {
	switch kind {
	case KindDaily:
		return g.Daily(ctx, user)
	case KindWeekly:
		return g.Weekly(ctx, user)
	case KindHabits:
		return g.Habits(ctx, user)
	default:
		return "", fmt.Errorf("unknown report kind %q", kind)
	}
}

// dayStart returns midnight of t's day in loc.
func dayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Daily summarizes the user's current local day.
func (g *Generator) Daily(ctx context.Context, user *users.User) (string, error) {
	loc := user.Location()
	now := g.now()
	start := dayStart(now, loc)
	end := start.AddDate(0, 0, 1)
	today := database.Day(now, loc)

	messages, err := g.src.Messages.CountBetween(ctx, user.ID, start, end)
	if err != nil {
		return "", err
	}
	stats, err := g.src.Habits.Stats(ctx, user.ID, today)
	if err != nil {
		return "", err
	}
	pending, err := g.src.Reminders.CountBetween(ctx, user.ID, reminders.StatusPending, start, end)
	if err != nil {
		return "", err
	}
	total, done, err := g.src.Tasks.Counts(ctx, user.ID, start, end)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Daily Report - %s**\n\n", start.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "💬 **Activity**: %d messages exchanged\n", messages)

	var doneToday []habits.Stats
	for _, st := range stats {
		if st.LastDate == today {
			doneToday = append(doneToday, st)
		}
	}
	if len(doneToday) > 0 {
		b.WriteString("\n💪 **Habits Completed Today**:\n\n")
		for _, st := range doneToday {
			fmt.Fprintf(&b, "- %s", st.Name)
			if st.Streak > 1 {
				fmt.Fprintf(&b, " %s %d-day streak", format.Emoji("streak"), st.Streak)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\n💪 **Habits**: No habits tracked today\n")
	}

	if total > 0 {
		fmt.Fprintf(&b, "\n✅ **Tasks**: %d/%d completed %s\n", done, total, format.ProgressBar(done, total, 10))
	}
	if pending > 0 {
		fmt.Fprintf(&b, "\n⏰ **Reminders**: %d pending\n", pending)
	}

	if g.src.Health != nil {
		if s, err := g.src.Health.DailySummary(ctx, user.ID, today); err == nil {
			writeHealth(&b, s)
		}
	}

	fmt.Fprintf(&b, "\n%s", prompts.Motivation(g.pick()))
	return b.String(), nil
}

func writeHealth(b *strings.Builder, s *health.Summary) {
	if len(s.Meals) == 0 && len(s.Moods) == 0 && len(s.Activities) == 0 {
		return
	}
	b.WriteString("\n💚 **Health**:\n\n")
	if len(s.Meals) > 0 {
		types := make([]string, 0, len(s.Meals))
		for _, m := range s.Meals {
			types = append(types, m.Type)
		}
		fmt.Fprintf(b, "- Meals: %s\n", strings.Join(types, ", "))
	}
	if len(s.Moods) > 0 {
		fmt.Fprintf(b, "- Mood: %s (%.1f/10)\n", s.Moods[0].Mood, s.AverageMood())
	}
	if w := s.Water(); w > 0 {
		fmt.Fprintf(b, "- Water: %g\n", w)
	}
	for _, a := range s.Activities {
		switch a.Kind {
		case health.KindFitness:
			fmt.Fprintf(b, "- Exercise: %s\n", a.Detail)
		case health.KindSleep:
			if a.Value > 0 {
				fmt.Fprintf(b, "- Sleep: %g hours (%s)\n", a.Value, a.Detail)
			} else {
				fmt.Fprintf(b, "- Sleep: %s\n", a.Detail)
			}
		}
	}
}

// Weekly summarizes the seven local days ending today.
func (g *Generator) Weekly(ctx context.Context, user *users.User) (string, error) {
	loc := user.Location()
	now := g.now()
	end := dayStart(now, loc).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -7)

	top, err := g.src.Habits.Top(ctx, user.ID, start.Format(database.DateLayout), database.Day(now, loc), len(medals))
	if err != nil {
		return "", err
	}
	total, done, err := g.src.Tasks.Counts(ctx, user.ID, start, end)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("📈 **Weekly Report**\n\n")

	if len(top) > 0 {
		b.WriteString("🏆 **Top Habits This Week**:\n\n")
		for i, h := range top {
			fmt.Fprintf(&b, "%s %s: %d times  \n", medal(i), h.Name, h.Count)
		}
	}
	if total > 0 {
		fmt.Fprintf(&b, "\n✅ **Task Completion**: %d%% (%d/%d)\n", format.Percent(done, total), done, total)
	}

	b.WriteString("\n🔍 **Insights**:\n\n")
	insights := 0
	if len(top) > 0 {
		fmt.Fprintf(&b, "- Your strongest habit: %s 💪\n", top[0].Name)
		insights++
	}
	if done > 0 {
		fmt.Fprintf(&b, "- You completed %d tasks this week! 🎯\n", done)
		insights++
	}
	if insights == 0 {
		b.WriteString("- A fresh week is a fresh start. Tell me what you get up to!\n")
	}

	b.WriteString("\n🌟 Keep building those positive habits!")
	return b.String(), nil
}

// Habits lists every habit with its total, last entry and streak.
func (g *Generator) Habits(ctx context.Context, user *users.User) (string, error) {
	loc := user.Location()
	stats, err := g.src.Habits.Stats(ctx, user.ID, database.Day(g.now(), loc))
	if err != nil {
		return "", err
	}
	if len(stats) == 0 {
		return "💪 **Your Habits**\n\n" + prompts.NoHabits, nil
	}

	var b strings.Builder
	b.WriteString("💪 **Your Habits**\n\n")
	for i, st := range stats {
		fmt.Fprintf(&b, "%s **%s**  \n", medal(i), st.Name)
		fmt.Fprintf(&b, "└ %d times tracked  \n", st.TotalEntries)
		if st.LastDate != "" {
			if last, err := time.ParseInLocation(database.DateLayout, st.LastDate, loc); err == nil {
				fmt.Fprintf(&b, "└ Last: %s  \n", last.Format("Jan 2"))
			}
		}
		if st.Streak > 0 {
			fmt.Fprintf(&b, "└ %s Streak: %d days\n", format.Emoji("streak"), st.Streak)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
