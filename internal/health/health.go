// Package health picks meals, mood, exercise, water and sleep out of
// chat messages and keeps a per-day log of them.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/pulse/internal/database"
)

// MealEntry is a logged meal.
type MealEntry struct {
	Type        string
	Description string
	CreatedAt   time.Time
}

// MoodEntry is a logged mood.
type MoodEntry struct {
	Mood      string
	Level     int
	Note      string
	CreatedAt time.Time
}

// LogEntry is a logged fitness, water or sleep activity.
type LogEntry struct {
	Kind      string
	Value     float64
	Unit      string
	Detail    string
	CreatedAt time.Time
}

// Summary is one user's health log for one day.
type Summary struct {
	Date       string
	Meals      []MealEntry
	Moods      []MoodEntry // newest first
	Activities []LogEntry
}

// Water returns the total water logged, in the units used.
func (s *Summary) Water() float64 {
	var total float64
	for _, a := range s.Activities {
		if a.Kind == KindWater {
			total += a.Value
		}
	}
	return total
}

// AverageMood returns the mean mood level, or zero with no entries.
func (s *Summary) AverageMood() float64 {
	if len(s.Moods) == 0 {
		return 0
	}
	sum := 0
	for _, m := range s.Moods {
		sum += m.Level
	}
	return float64(sum) / float64(len(s.Moods))
}

// Tracker detects and stores health information.
type Tracker struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates the health schema on db if needed.
func NewTracker(db *sql.DB, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{db: db, logger: logger, now: time.Now}
	if err := t.migrate(); err != nil {
		return nil, fmt.Errorf("migrate health schema: %w", err)
	}
	return t, nil
}

func (t *Tracker) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meals (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		meal_type   TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		entry_date  TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_meals_user_date ON meals(user_id, entry_date);

	CREATE TABLE IF NOT EXISTS mood_entries (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		mood       TEXT NOT NULL,
		level      INTEGER NOT NULL CHECK(level BETWEEN 1 AND 10),
		note       TEXT NOT NULL DEFAULT '',
		entry_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mood_user_date ON mood_entries(user_id, entry_date);

	CREATE TABLE IF NOT EXISTS health_logs (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		kind       TEXT NOT NULL,
		value      REAL NOT NULL DEFAULT 0,
		unit       TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		note       TEXT NOT NULL DEFAULT '',
		entry_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_health_logs_user_date ON health_logs(user_id, entry_date);
	`
	_, err := t.db.Exec(schema)
	return err
}

// Analyze detects health information in text and logs it for the
// user's current day in loc.
func (t *Tracker) Analyze(ctx context.Context, userID string, loc *time.Location, text string) (Detection, error) {
	d := Detect(text)
	if d.Empty() {
		return d, nil
	}

	now := t.now()
	day := database.Day(now, loc)
	created := database.FormatTime(now)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return d, fmt.Errorf("begin health log: %w", err)
	}
	defer tx.Rollback()

	for _, m := range d.Meals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meals (id, user_id, meal_type, description, entry_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			database.NewID(), userID, m.Type, m.Description, day, created); err != nil {
			return d, fmt.Errorf("insert meal: %w", err)
		}
	}
	if m := d.Mood; m != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mood_entries (id, user_id, mood, level, note, entry_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			database.NewID(), userID, m.Kind, m.Level, m.Note, day, created); err != nil {
			return d, fmt.Errorf("insert mood entry: %w", err)
		}
	}
	for _, a := range d.Activities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO health_logs (id, user_id, kind, value, unit, detail, note, entry_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			database.NewID(), userID, a.Kind, a.Value, a.Unit, a.Detail, a.Note, day, created); err != nil {
			return d, fmt.Errorf("insert health log: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return d, fmt.Errorf("commit health log: %w", err)
	}

	t.logger.Debug("health logged",
		"user_id", userID,
		"meals", len(d.Meals),
		"mood", d.Mood != nil,
		"activities", len(d.Activities),
	)
	return d, nil
}

// DailySummary returns everything logged for the user on day.
func (t *Tracker) DailySummary(ctx context.Context, userID, day string) (*Summary, error) {
	s := &Summary{Date: day}

	rows, err := t.db.QueryContext(ctx, `
		SELECT meal_type, description, created_at FROM meals
		WHERE user_id = ? AND entry_date = ?
		ORDER BY created_at ASC`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("query meals: %w", err)
	}
	for rows.Next() {
		var m MealEntry
		var created string
		if err := rows.Scan(&m.Type, &m.Description, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		m.CreatedAt, _ = database.ParseTime(created)
		s.Meals = append(s.Meals, m)
	}
	rows.Close()

	rows, err = t.db.QueryContext(ctx, `
		SELECT mood, level, note, created_at FROM mood_entries
		WHERE user_id = ? AND entry_date = ?
		ORDER BY created_at DESC, id DESC`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("query mood entries: %w", err)
	}
	for rows.Next() {
		var m MoodEntry
		var created string
		if err := rows.Scan(&m.Mood, &m.Level, &m.Note, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan mood entry: %w", err)
		}
		m.CreatedAt, _ = database.ParseTime(created)
		s.Moods = append(s.Moods, m)
	}
	rows.Close()

	rows, err = t.db.QueryContext(ctx, `
		SELECT kind, value, unit, detail, created_at FROM health_logs
		WHERE user_id = ? AND entry_date = ?
		ORDER BY created_at ASC`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("query health logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a LogEntry
		var created string
		if err := rows.Scan(&a.Kind, &a.Value, &a.Unit, &a.Detail, &created); err != nil {
			return nil, fmt.Errorf("scan health log: %w", err)
		}
		a.CreatedAt, _ = database.ParseTime(created)
		s.Activities = append(s.Activities, a)
	}
	return s, rows.Err()
}

// DeleteForUser removes every health record owned by the user.
func (t *Tracker) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	for _, table := range []string{"meals", "mood_entries", "health_logs"} {
		res, err := t.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID)
		if err != nil {
			return total, fmt.Errorf("delete %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
