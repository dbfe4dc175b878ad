// Package checkin sends the proactive messages Pulse starts on its own:
// the evening reflection and the optional time-of-day greetings. A run
// is idempotent per user, kind and local day, so it can be triggered
// hourly by cron and again by hand without double-sending.
package checkin

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nugget/pulse/internal/database"
	"github.com/nugget/pulse/internal/prompts"
	"github.com/nugget/pulse/internal/telegram"
	"github.com/nugget/pulse/internal/users"
)

// Message kinds recorded in the check-in log.
const (
	KindReflection = "reflection"
	kindGreeting   = "greeting_"
)

const (
	reflectionActiveWindow = 30 * 24 * time.Hour
	greetingActiveWindow   = 7 * 24 * time.Hour
	maxConcurrentSends     = 8
)

// UserSource lists recently active users.
type UserSource interface {
	ActiveSince(ctx context.Context, since time.Time) ([]users.User, error)
}

// Config selects what a run sends.
type Config struct {
	ReflectionStartHour int // local hour, inclusive
	ReflectionEndHour   int // local hour, exclusive
	Greetings           bool
}

// Result counts what one run did.
type Result struct {
	Reflections int `json:"reflections"`
	Greetings   int `json:"greetings"`
	Failed      int `json:"failed"`
}

// Runner sends check-ins.
type Runner struct {
	db     *sql.DB
	users  UserSource
	sender telegram.Sender
	cfg    Config
	logger *slog.Logger
	pick   func() int
}

// NewRunner creates the check-in log on db if needed.
func NewRunner(db *sql.DB, src UserSource, sender telegram.Sender, cfg Config, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReflectionEndHour <= cfg.ReflectionStartHour {
		cfg.ReflectionStartHour, cfg.ReflectionEndHour = 20, 23
	}
	r := &Runner{
		db:     db,
		users:  src,
		sender: sender,
		cfg:    cfg,
		logger: logger,
		pick:   func() int { return rand.IntN(1 << 16) },
	}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("migrate checkin schema: %w", err)
	}
	return r, nil
}

func (r *Runner) migrate() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS checkin_log (
		user_id TEXT NOT NULL,
		kind    TEXT NOT NULL,
		day     TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		UNIQUE(user_id, kind, day)
	);
	`)
	return err
}

// GreetingWindow maps a local hour to a greeting window, or "" outside
// of them.
func GreetingWindow(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return prompts.WindowMorning
	case hour >= 12 && hour < 18:
		return prompts.WindowAfternoon
	case hour >= 18 && hour < 22:
		return prompts.WindowEvening
	default:
		return ""
	}
}

type delivery struct {
	user users.User
	kind string
	day  string
	text string
}

// Run sends every check-in due at now. Per-user failures are counted
// and logged; only failing to list users is returned as an error.
func (r *Runner) Run(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	var due []delivery
	reflect, err := r.users.ActiveSince(ctx, now.Add(-reflectionActiveWindow))
	if err != nil {
		return res, fmt.Errorf("list users for reflection: %w", err)
	}
	for _, u := range reflect {
		if !u.Preferences.Enabled(users.PrefNotifications) || !u.Preferences.Enabled(users.PrefReportNotifications) {
			continue
		}
		local := now.In(u.Location())
		if h := local.Hour(); h < r.cfg.ReflectionStartHour || h >= r.cfg.ReflectionEndHour {
			continue
		}
		due = append(due, delivery{
			user: u,
			kind: KindReflection,
			day:  local.Format(database.DateLayout),
			text: prompts.EveningReflection(u.Name()),
		})
	}

	if r.cfg.Greetings {
		greet, err := r.users.ActiveSince(ctx, now.Add(-greetingActiveWindow))
		if err != nil {
			return res, fmt.Errorf("list users for greetings: %w", err)
		}
		for _, u := range greet {
			if !u.Preferences.Enabled(users.PrefNotifications) {
				continue
			}
			local := now.In(u.Location())
			window := GreetingWindow(local.Hour())
			if window == "" {
				continue
			}
			due = append(due, delivery{
				user: u,
				kind: kindGreeting + window,
				day:  local.Format(database.DateLayout),
				text: prompts.Greeting(u.Name(), window, r.pick()),
			})
		}
	}

	var reflections, greetings, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSends)
	for _, d := range due {
		g.Go(func() error {
			sent, err := r.deliver(gctx, d, now)
			switch {
			case err != nil:
				failed.Add(1)
				r.logger.Warn("check-in failed",
					"user_id", d.user.ID, "kind", d.kind, "error", err)
			case !sent:
			case d.kind == KindReflection:
				reflections.Add(1)
			default:
				greetings.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Reflections = int(reflections.Load())
	res.Greetings = int(greetings.Load())
	res.Failed = int(failed.Load())
	if res != (Result{}) {
		r.logger.Info("check-ins sent",
			"reflections", res.Reflections, "greetings", res.Greetings, "failed", res.Failed)
	}
	return res, nil
}

// deliver claims the (user, kind, day) slot and sends. A failed send
// releases the claim so the next run retries.
func (r *Runner) deliver(ctx context.Context, d delivery, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO checkin_log (user_id, kind, day, sent_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, kind, day) DO NOTHING`,
		d.user.ID, d.kind, d.day, database.FormatTime(now))
	if err != nil {
		return false, fmt.Errorf("claim check-in: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if _, err := r.sender.Send(ctx, d.user.ChatID, d.text, nil); err != nil {
		if _, rerr := r.db.ExecContext(context.WithoutCancel(ctx),
			`DELETE FROM checkin_log WHERE user_id = ? AND kind = ? AND day = ?`,
			d.user.ID, d.kind, d.day); rerr != nil {
			r.logger.Error("release check-in claim failed", "user_id", d.user.ID, "error", rerr)
		}
		return false, err
	}
	return true, nil
}
