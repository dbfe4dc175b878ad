// Package reminders stores time-based reminders and moves them through
// their lifecycle: created from a chat message, modified by later
// messages or inline buttons, and delivered by a periodic sweep.
package reminders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/pulse/internal/database"
)

// ErrNotFound is returned by mutations whose target reminder does not
// exist or belongs to another user.
var ErrNotFound = errors.New("reminder not found")

// Status is a reminder's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Filter selects reminders for List.
type Filter string

const (
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
	FilterCancelled Filter = "cancelled"
	FilterToday     Filter = "today"
	FilterAll       Filter = "all"
)

// ParseFilter maps a user-supplied word to a Filter, ignoring case and
// surrounding space. Empty means pending.
func ParseFilter(s string) (Filter, bool) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterPending, true
	case FilterPending, FilterCompleted, FilterCancelled, FilterToday, FilterAll:
		return f, true
	default:
		return "", false
	}
}

// Reminder is one scheduled nudge.
type Reminder struct {
	ID          string
	UserID      string
	Description string
	RemindAt    time.Time
	Status      Status
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// Store persists reminders on the shared database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates the reminder schema on db if needed.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate reminder schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		description  TEXT NOT NULL,
		remind_at    TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		notes        TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		completed_at TEXT,
		cancelled_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(user_id, status, remind_at);
	CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(status, remind_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const reminderColumns = `id, user_id, description, remind_at, status, notes,
	created_at, updated_at, completed_at, cancelled_at`

// Insert stores a new pending reminder.
func (s *Store) Insert(ctx context.Context, userID, description string, remindAt time.Time, notes string) (*Reminder, error) {
	now := s.now()
	r := &Reminder{
		ID:          database.NewID(),
		UserID:      userID,
		Description: description,
		RemindAt:    remindAt.UTC().Truncate(time.Second),
		Status:      StatusPending,
		Notes:       notes,
		CreatedAt:   now.UTC().Truncate(time.Second),
		UpdatedAt:   now.UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, description, remind_at, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Description, database.FormatTime(r.RemindAt), r.Status, r.Notes,
		database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	return r, nil
}

// Get returns a reminder by ID, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// FindNewest returns the user's most recently created reminder whose
// description contains title, ignoring case, or nil.
func (s *Store) FindNewest(ctx context.Context, userID, title string) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE user_id = ? AND instr(lower(description), lower(?)) > 0
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, userID, title)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// List returns the user's reminders matching filter, soonest first.
// FilterToday selects pending reminders due within [dayStart, dayEnd).
func (s *Store) List(ctx context.Context, userID string, filter Filter, dayStart, dayEnd time.Time) ([]Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = ?`
	args := []any{userID}

	switch filter {
	case FilterAll:
	case FilterToday:
		query += ` AND status = ? AND remind_at >= ? AND remind_at < ?`
		args = append(args, StatusPending, database.FormatTime(dayStart), database.FormatTime(dayEnd))
	case FilterPending, FilterCompleted, FilterCancelled:
		query += ` AND status = ?`
		args = append(args, string(filter))
	default:
		return nil, fmt.Errorf("unknown reminder filter %q", filter)
	}
	query += ` ORDER BY remind_at ASC, id ASC`

	return s.query(ctx, query, args...)
}

// Due returns every pending reminder with remind_at at or before now.
func (s *Store) Due(ctx context.Context, now time.Time) ([]Reminder, error) {
	return s.query(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE status = ? AND remind_at <= ?
		ORDER BY remind_at ASC, id ASC`,
		StatusPending, database.FormatTime(now))
}

// CountBetween counts the user's reminders with remind_at in [start, end)
// and the given status. An empty status counts all of them.
func (s *Store) CountBetween(ctx context.Context, userID string, status Status, start, end time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM reminders WHERE user_id = ? AND remind_at >= ? AND remind_at < ?`
	args := []any{userID, database.FormatTime(start), database.FormatTime(end)}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return n, nil
}

// Reschedule moves a reminder to at and makes it pending again.
func (s *Store) Reschedule(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, id, `remind_at = ?, status = ?, completed_at = NULL, cancelled_at = NULL`,
		database.FormatTime(at), StatusPending)
}

// Rename replaces a reminder's description.
func (s *Store) Rename(ctx context.Context, id, description string) error {
	return s.update(ctx, id, `description = ?`, description)
}

// SetNotes replaces a reminder's notes.
func (s *Store) SetNotes(ctx context.Context, id, notes string) error {
	return s.update(ctx, id, `notes = ?`, notes)
}

// MarkCompleted moves a reminder to completed.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.update(ctx, id, `status = ?, completed_at = ?`, StatusCompleted, database.FormatTime(s.now()))
}

// MarkCancelled moves a reminder to cancelled.
func (s *Store) MarkCancelled(ctx context.Context, id string) error {
	return s.update(ctx, id, `status = ?, cancelled_at = ?`, StatusCancelled, database.FormatTime(s.now()))
}

// DeleteForUser removes every reminder owned by the user.
func (s *Store) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete reminders: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) update(ctx context.Context, id, set string, args ...any) error {
	args = append(args, database.FormatTime(s.now()), id)
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update reminder %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(sc scanner) (*Reminder, error) {
	var (
		r                    Reminder
		remindAt, created    string
		updated              string
		completed, cancelled sql.NullString
	)
	err := sc.Scan(&r.ID, &r.UserID, &r.Description, &remindAt, &r.Status, &r.Notes,
		&created, &updated, &completed, &cancelled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan reminder: %w", err)
	}
	r.RemindAt, _ = database.ParseTime(remindAt)
	r.CreatedAt, _ = database.ParseTime(created)
	r.UpdatedAt, _ = database.ParseTime(updated)
	r.CompletedAt = database.NullTime(completed)
	r.CancelledAt = database.NullTime(cancelled)
	return &r, nil
}
