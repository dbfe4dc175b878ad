package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/pulse/internal/bot"
	"github.com/nugget/pulse/internal/cache"
	"github.com/nugget/pulse/internal/checkin"
	"github.com/nugget/pulse/internal/config"
	"github.com/nugget/pulse/internal/connwatch"
	"github.com/nugget/pulse/internal/convo"
	"github.com/nugget/pulse/internal/database"
	"github.com/nugget/pulse/internal/files"
	"github.com/nugget/pulse/internal/habits"
	"github.com/nugget/pulse/internal/health"
	"github.com/nugget/pulse/internal/httpkit"
	"github.com/nugget/pulse/internal/llm"
	"github.com/nugget/pulse/internal/reminders"
	"github.com/nugget/pulse/internal/reports"
	"github.com/nugget/pulse/internal/scheduler"
	"github.com/nugget/pulse/internal/tasks"
	"github.com/nugget/pulse/internal/telegram"
	"github.com/nugget/pulse/internal/usage"
	"github.com/nugget/pulse/internal/users"
)

// Job names, as they appear in the job-run log and the /cron response.
const (
	jobReminderSweep = "reminder_sweep"
	jobCheckin       = "checkin"
)

// app holds the wired components shared by serve and sweep.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db        *sql.DB
	cache     cache.Cache
	usage     *usage.Store
	reminders *reminders.Service
	checkin   *checkin.Runner
	bot       *bot.Bot
}

// newApp opens the database, builds every store and connects to the
// LLM providers and Telegram.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	if !cfg.Telegram.Configured() {
		return nil, errors.New("telegram.token is not configured")
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a = &app{cfg: cfg, logger: logger, db: db}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Redis.Configured() {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.cache = r
		logger.Info("preference cache: redis", "address", cfg.Redis.Address)
	} else {
		a.cache = cache.NewMemory()
		logger.Info("preference cache: in-process")
	}

	userStore, err := users.NewStore(db, cfg.Timezone, logger.With("component", "users"))
	if err != nil {
		return nil, err
	}
	userStore.WithCache(a.cache, cfg.Redis.TTL)

	convoStore, err := convo.NewStore(db, userStore, cfg.Context.MaxTurns, cfg.Context.Retention, logger.With("component", "convo"))
	if err != nil {
		return nil, err
	}
	reminderStore, err := reminders.NewStore(db, logger.With("component", "reminders"))
	if err != nil {
		return nil, err
	}
	habitStore, err := habits.NewStore(db, logger.With("component", "habits"))
	if err != nil {
		return nil, err
	}
	healthTracker, err := health.NewTracker(db, logger.With("component", "health"))
	if err != nil {
		return nil, err
	}
	taskStore, err := tasks.NewStore(db, logger.With("component", "tasks"))
	if err != nil {
		return nil, err
	}
	fileStore, err := files.NewStore(db, logger.With("component", "files"))
	if err != nil {
		return nil, err
	}
	a.usage, err = usage.NewStore(db)
	if err != nil {
		return nil, err
	}

	gen, err := newAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	gen.OnUsage(a.usage.Recorder(cfg.Pricing, logger.With("component", "usage")))

	tg, err := newTelegramClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.reminders = reminders.NewService(reminderStore, gen, cfg.Reminders.ConfidenceThreshold, logger.With("component", "reminders"))

	a.bot = bot.New(bot.Config{
		Sender:    tg,
		LLM:       gen,
		Users:     userStore,
		Convo:     convoStore,
		Reminders: a.reminders,
		Habits:    habits.NewTracker(habitStore, logger.With("component", "habits")),
		Health:    healthTracker,
		Tasks:     taskStore,
		Files:     fileStore,
		Reports: reports.NewGenerator(reports.Sources{
			Messages:  convoStore,
			Habits:    habitStore,
			Reminders: reminderStore,
			Tasks:     taskStore,
			Health:    healthTracker,
		}),
		Logger:    logger.With("component", "bot"),
		RateLimit: cfg.Telegram.RateLimit,
	})

	if cfg.Checkin.Enabled {
		a.checkin, err = checkin.NewRunner(db, userStore, tg, checkin.Config{
			ReflectionStartHour: cfg.Checkin.ReflectionStartHour,
			ReflectionEndHour:   cfg.Checkin.ReflectionEndHour,
			Greetings:           cfg.Checkin.Greetings,
		}, logger.With("component", "checkin"))
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Close releases the cache and the database.
func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// watchServices starts probing the database and, when configured,
// Redis. Redis is not critical: preference reads fall back to SQLite.
func (a *app) watchServices(ctx context.Context) *connwatch.Manager {
	m := connwatch.NewManager(a.logger.With("component", "connwatch"))
	m.Watch(ctx, connwatch.Config{
		Name:     "database",
		Probe:    a.db.PingContext,
		Critical: true,
	})
	if r, ok := a.cache.(*cache.Redis); ok {
		m.Watch(ctx, connwatch.Config{
			Name:  "redis",
			Probe: r.Ping,
		})
	}
	return m
}

// newScheduler registers the reminder sweep and, when enabled, the
// check-in job.
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	store, err := scheduler.NewStore(a.db)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(a.logger.With("component", "scheduler"), store, a.cfg.Location())

	jobs := []scheduler.Job{{
		Name:     jobReminderSweep,
		Schedule: a.cfg.Reminders.SweepSchedule,
		Run: func(ctx context.Context, now time.Time) (map[string]int, error) {
			res, err := a.reminders.Sweep(ctx, a.bot, now)
			return map[string]int{"due": res.Due, "sent": res.Sent, "failed": res.Failed}, err
		},
	}}
	if a.checkin != nil {
		jobs = append(jobs, scheduler.Job{
			Name:     jobCheckin,
			Schedule: a.cfg.Checkin.Schedule,
			Run: func(ctx context.Context, now time.Time) (map[string]int, error) {
				res, err := a.checkin.Run(ctx, now)
				return map[string]int{"reflections": res.Reflections, "greetings": res.Greetings, "failed": res.Failed}, err
			},
		})
	}

	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			return nil, fmt.Errorf("register %s: %w", job.Name, err)
		}
	}
	return sched, nil
}

// newAdapter builds the provider adapter from the configured providers.
// Each provider gets its own rate-limited HTTP client.
func newAdapter(cfg *config.Config, logger *slog.Logger) (*llm.Adapter, error) {
	adapter := llm.NewAdapter(cfg.Providers.Default, cfg.Providers.Fallback, logger.With("component", "llm"))

	if p := cfg.Providers.Groq; p.Configured() {
		hc := httpkit.NewClient(
			httpkit.WithTimeout(90*time.Second),
			httpkit.WithRateLimit(p.RequestsPerMinute, 2),
			httpkit.WithLogger(logger),
		)
		adapter.AddProvider(llm.NewGroqClient(p.APIKey, p.Model, logger,
			llm.WithGroqBaseURL(p.BaseURL),
			llm.WithGroqHTTPClient(hc),
		))
	}
	if p := cfg.Providers.Gemini; p.Configured() {
		hc := httpkit.NewClient(
			httpkit.WithTimeout(90*time.Second),
			httpkit.WithRateLimit(p.RequestsPerMinute, 2),
			httpkit.WithLogger(logger),
		)
		adapter.AddProvider(llm.NewGeminiClient(p.APIKey, p.Model, p.BaseURL, hc, logger))
	}

	if len(adapter.Providers()) == 0 {
		return nil, errors.New("no LLM provider configured (set providers.groq.api_key or providers.gemini.api_key)")
	}
	logger.Info("LLM adapter initialized", "adapter", adapter.String())
	return adapter, nil
}

// newTelegramClient connects to the Bot API. Only this client retries
// refused connections.
func newTelegramClient(cfg *config.Config, logger *slog.Logger) (*telegram.Client, error) {
	hc := httpkit.NewClient(
		httpkit.WithTimeout(cfg.Telegram.UpdateTimeout),
		httpkit.WithRetry(3, 2*time.Second),
		httpkit.WithLogger(logger),
	)
	return telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIEndpoint, hc, logger)
}
