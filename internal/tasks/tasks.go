// Package tasks keeps each user's to-do list. Tasks are usually created
// from phrases like "I need to ..." and closed from an inline button.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nugget/pulse/internal/database"
)

// ErrNotFound is returned when a task does not exist or belongs to
// another user.
var ErrNotFound = errors.New("task not found")

// Task statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// PendingLimit bounds Pending.
const PendingLimit = 10

// maxTitle is the title length before truncation.
const maxTitle = 50

// Task is one to-do item.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      string
	Priority    string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

var (
	trigger = regexp.MustCompile(`(?i)\btask\b|\badd\b.*\bto\b|\bneed to\b|\bhave to\b|\bshould\b|\bmust\b|\btodo\b`)

	extractors = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:add|create)\s+(?:a\s+)?task(?:\s+to\s+|:?\s*)(.+)`),
		regexp.MustCompile(`(?i)(?:need|have|want) to (.+)`),
		regexp.MustCompile(`(?i)(?:should|must) (.+)`),
		regexp.MustCompile(`(?i)\badd\s+(.+?)\s+to\s+(?:my\s+)?(?:list|tasks|todo)`),
		regexp.MustCompile(`(?i)task:\s*(.+)`),
		regexp.MustCompile(`(?i)todo:?\s*(.+)`),
	}

	keywordPrefix = regexp.MustCompile(`(?i)^\s*(?:add|create|need|have|want|should|must)\s+(?:a\s+)?(?:task|todo|:)?\s*`)
	titleEnd      = regexp.MustCompile(`[.!?]`)
)

// Parse extracts a task from text. ok is false when text does not read
// as a task.
func Parse(text string) (title, description string, ok bool) {
	if !trigger.MatchString(text) {
		return "", "", false
	}

	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	var content string
	for _, re := range extractors {
		if m := re.FindStringSubmatch(line); m != nil {
			content = strings.TrimSpace(m[1])
			break
		}
	}
	if content == "" {
		content = strings.TrimSpace(keywordPrefix.ReplaceAllString(line, ""))
	}
	if len([]rune(content)) < 2 {
		return "", "", false
	}

	title = content
	if loc := titleEnd.FindStringIndex(content); loc != nil {
		if t := strings.TrimSpace(content[:loc[0]]); t != "" {
			title = t
		}
	}
	if r := []rune(title); len(r) > maxTitle {
		title = string(r[:maxTitle]) + "..."
	}
	return title, content, true
}

// Store persists tasks.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates the task schema on db if needed.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate task schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'pending',
		priority     TEXT NOT NULL DEFAULT 'medium',
		created_at   TEXT NOT NULL,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateFromMessage parses text and stores the task it describes. It
// returns nil, nil when text is not a task.
func (s *Store) CreateFromMessage(ctx context.Context, userID, text string) (*Task, error) {
	title, desc, ok := Parse(text)
	if !ok {
		return nil, nil
	}
	return s.Create(ctx, userID, title, desc, PriorityMedium)
}

// Create stores a pending task.
func (s *Store) Create(ctx context.Context, userID, title, description, priority string) (*Task, error) {
	now := s.now().UTC().Truncate(time.Second)
	t := &Task{
		ID:          database.NewID(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      StatusPending,
		Priority:    priority,
		CreatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Description, t.Status, t.Priority, database.FormatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	s.logger.Info("task created", "user_id", userID, "task_id", t.ID)
	return t, nil
}

// Get returns a task by ID, or nil.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	list, err := scanTasks(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// Pending returns the user's newest pending tasks, at most PendingLimit.
func (s *Store) Pending(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, StatusPending, PendingLimit)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	return scanTasks(rows)
}

// Complete marks the user's task completed.
func (s *Store) Complete(ctx context.Context, userID, id string) (*Task, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, completed_at = ?
		WHERE id = ? AND user_id = ?`,
		StatusCompleted, database.FormatTime(s.now()), id, userID)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Counts returns how many of the user's tasks were created in
// [start, end) and how many of those are completed.
func (s *Store) Counts(ctx context.Context, userID string, start, end time.Time) (total, completed int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM tasks
		WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		StatusCompleted, userID, database.FormatTime(start), database.FormatTime(end),
	).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("count tasks: %w", err)
	}
	return total, completed, nil
}

// DeleteForUser removes every task owned by the user.
func (s *Store) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	return res.RowsAffected()
}

const taskColumns = `id, user_id, title, description, status, priority, created_at, completed_at`

func scanTasks(rows *sql.Rows) ([]Task, error) {
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		var created string
		var completed sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&created, &completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt, _ = database.ParseTime(created)
		t.CompletedAt = database.NullTime(completed)
		out = append(out, t)
	}
	return out, rows.Err()
}
