// Package habits records the daily habits people mention in chat. A
// habit is created the first time it is reported and gets at most one
// entry per calendar day.
package habits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/pulse/internal/database"
)

// FrequencyDaily is the only tracking frequency.
const FrequencyDaily = "daily"

// Habit is a tracked activity.
type Habit struct {
	ID        string
	UserID    string
	Name      string
	Frequency string
	CreatedAt time.Time
}

// Entry is one day's record of a habit.
type Entry struct {
	ID        string
	HabitID   string
	EntryDate string // YYYY-MM-DD in the user's zone
	Count     int
	Notes     string
	CreatedAt time.Time
}

// Stats summarizes a habit for reports.
type Stats struct {
	Habit
	TotalEntries int
	LastDate     string // empty when never logged
	Streak       int
}

// Store persists habits and their entries.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates the habit schema on db if needed.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate habit schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS habits (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		frequency  TEXT NOT NULL DEFAULT 'daily',
		created_at TEXT NOT NULL,
		UNIQUE(user_id, name)
	);

	CREATE TABLE IF NOT EXISTS habit_entries (
		id         TEXT PRIMARY KEY,
		habit_id   TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
		entry_date TEXT NOT NULL,
		count      INTEGER NOT NULL DEFAULT 1,
		notes      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(habit_id, entry_date)
	);
	CREATE INDEX IF NOT EXISTS idx_habit_entries_date ON habit_entries(entry_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetOrCreate returns the user's habit called name, creating it if
// needed.
func (s *Store) GetOrCreate(ctx context.Context, userID, name string) (*Habit, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (id, user_id, name, frequency, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO NOTHING`,
		database.NewID(), userID, name, FrequencyDaily, database.FormatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	return s.scanHabit(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, frequency, created_at FROM habits
		WHERE user_id = ? AND name = ?`, userID, name))
}

// Get returns a habit by ID, or nil.
func (s *Store) Get(ctx context.Context, id string) (*Habit, error) {
	h, err := s.scanHabit(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, frequency, created_at FROM habits WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return h, err
}

func (s *Store) scanHabit(row *sql.Row) (*Habit, error) {
	var h Habit
	var created string
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Frequency, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan habit: %w", err)
	}
	h.CreatedAt, _ = database.ParseTime(created)
	return &h, nil
}

// Log records the habit for day unless it already has an entry. It
// reports whether a new entry was written.
func (s *Store) Log(ctx context.Context, habitID, day, notes string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_entries (id, habit_id, entry_date, count, notes, created_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(habit_id, entry_date) DO NOTHING`,
		database.NewID(), habitID, day, notes, database.FormatTime(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert habit entry: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetCount records count for the habit on day, replacing any count
// already logged that day.
func (s *Store) SetCount(ctx context.Context, habitID, day string, count int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_entries (id, habit_id, entry_date, count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(habit_id, entry_date) DO UPDATE SET count = excluded.count`,
		database.NewID(), habitID, day, count, database.FormatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("set habit count: %w", err)
	}
	return nil
}

// Entries returns the habit's entries newest first.
func (s *Store) Entries(ctx context.Context, habitID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, habit_id, entry_date, count, notes, created_at
		FROM habit_entries WHERE habit_id = ?
		ORDER BY entry_date DESC`, habitID)
	if err != nil {
		return nil, fmt.Errorf("query habit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.HabitID, &e.EntryDate, &e.Count, &e.Notes, &created); err != nil {
			return nil, fmt.Errorf("scan habit entry: %w", err)
		}
		e.CreatedAt, _ = database.ParseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats returns every habit of the user with its totals and current
// streak as of today (YYYY-MM-DD), most tracked first.
func (s *Store) Stats(ctx context.Context, userID, today string) ([]Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.user_id, h.name, h.frequency, h.created_at,
		       COUNT(e.id), COALESCE(MAX(e.entry_date), '')
		FROM habits h
		LEFT JOIN habit_entries e ON e.habit_id = h.id
		WHERE h.user_id = ?
		GROUP BY h.id
		ORDER BY COUNT(e.id) DESC, h.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query habit stats: %w", err)
	}

	var out []Stats
	for rows.Next() {
		var st Stats
		var created string
		if err := rows.Scan(&st.ID, &st.UserID, &st.Name, &st.Frequency, &created,
			&st.TotalEntries, &st.LastDate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan habit stats: %w", err)
		}
		st.CreatedAt, _ = database.ParseTime(created)
		out = append(out, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		streak, err := s.Streak(ctx, out[i].ID, today)
		if err != nil {
			return nil, err
		}
		out[i].Streak = streak
	}
	return out, nil
}

// Streak counts consecutive logged days ending today, or ending
// yesterday when today has no entry yet.
func (s *Store) Streak(ctx context.Context, habitID, today string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_date FROM habit_entries
		WHERE habit_id = ? AND entry_date <= ?
		ORDER BY entry_date DESC`, habitID, today)
	if err != nil {
		return 0, fmt.Errorf("query habit streak: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return 0, fmt.Errorf("scan habit streak: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return streak(dates, today), nil
}

// streak walks dates (newest first) backwards from today.
func streak(dates []string, today string) int {
	day, err := time.Parse(database.DateLayout, today)
	if err != nil || len(dates) == 0 {
		return 0
	}
	if dates[0] != today {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for _, d := range dates {
		if d != day.Format(database.DateLayout) {
			break
		}
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

// NameCount is a habit name with an entry count.
type NameCount struct {
	Name  string
	Count int
}

// Top returns the user's habits by number of entries in [fromDay, toDay]
// inclusive, most first, at most limit.
func (s *Store) Top(ctx context.Context, userID, fromDay, toDay string, limit int) ([]NameCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.name, COUNT(e.id) AS n
		FROM habits h
		JOIN habit_entries e ON e.habit_id = h.id
		WHERE h.user_id = ? AND e.entry_date >= ? AND e.entry_date <= ?
		GROUP BY h.id
		ORDER BY n DESC, h.name ASC
		LIMIT ?`, userID, fromDay, toDay, limit)
	if err != nil {
		return nil, fmt.Errorf("query top habits: %w", err)
	}
	defer rows.Close()

	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("scan top habits: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

// DeleteForUser removes the user's habits and all their entries.
func (s *Store) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin habit delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM habit_entries
		WHERE habit_id IN (SELECT id FROM habits WHERE user_id = ?)`, userID); err != nil {
		return 0, fmt.Errorf("delete habit entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete habits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit habit delete: %w", err)
	}
	return res.RowsAffected()
}
