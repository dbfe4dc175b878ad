// Package convo keeps the recent conversation with each user: every
// message and the reply it got, trimmed to a fixed retention, plus the
// context assembled from it for the next LLM call.
package convo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/pulse/internal/database"
	"github.com/nugget/pulse/internal/llm"
	"github.com/nugget/pulse/internal/users"
)

// Defaults for Store when the caller passes zero.
const (
	DefaultMaxTurns  = 20
	DefaultRetention = 50
)

// Turn is one user message and the bot's reply.
type Turn struct {
	ID        string
	UserID    string
	Message   string
	Response  string
	CreatedAt time.Time
}

// Context is what a reply is generated from.
type Context struct {
	Turns       []Turn // oldest first
	Preferences users.Preferences
}

// History flattens the turns into alternating user/assistant messages.
func (c *Context) History() []llm.Message {
	out := make([]llm.Message, 0, 2*len(c.Turns))
	for _, t := range c.Turns {
		out = append(out, llm.Message{Role: "user", Content: t.Message})
		if t.Response != "" {
			out = append(out, llm.Message{Role: "assistant", Content: t.Response})
		}
	}
	return out
}

// PreferenceSource supplies cached user preferences.
type PreferenceSource interface {
	Preferences(ctx context.Context, userID string) (users.Preferences, error)
}

// Store persists conversation turns on the shared database.
type Store struct {
	db        *sql.DB
	prefs     PreferenceSource
	maxTurns  int
	retention int
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore creates the conversation schema on db if needed. maxTurns is
// how many turns GetContext returns; retention is how many are kept.
func NewStore(db *sql.DB, prefs PreferenceSource, maxTurns, retention int, logger *slog.Logger) (*Store, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if retention < maxTurns {
		retention = maxTurns
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		db:        db,
		prefs:     prefs,
		maxTurns:  maxTurns,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate conversation schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		message    TEXT NOT NULL,
		response   TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save appends a turn and deletes the user's turns beyond retention, in
// one transaction.
func (s *Store) Save(ctx context.Context, userID, message, response string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, message, response, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		database.NewID(), userID, message, response, database.FormatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM conversations
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM conversations
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`, userID, userID, s.retention)
	if err != nil {
		return fmt.Errorf("prune conversation turns: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation turn: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("pruned conversation turns", "user_id", userID, "deleted", n)
	}
	return nil
}

// Recent returns up to n of the user's newest turns, oldest first.
func (s *Store) Recent(ctx context.Context, userID string, n int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, COALESCE(response, ''), created_at FROM (
			SELECT * FROM conversations
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var created string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Message, &t.Response, &created); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		t.CreatedAt, _ = database.ParseTime(created)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Count returns how many turns are stored for the user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversation turns: %w", err)
	}
	return n, nil
}

// CountBetween returns how many turns the user had in [start, end).
func (s *Store) CountBetween(ctx context.Context, userID string, start, end time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversations
		WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		userID, database.FormatTime(start), database.FormatTime(end),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversation turns: %w", err)
	}
	return n, nil
}

// GetContext returns the user's last maxTurns turns, oldest first, and
// their preferences. A preference lookup failure is logged and yields
// empty preferences.
func (s *Store) GetContext(ctx context.Context, userID string) (*Context, error) {
	turns, err := s.Recent(ctx, userID, s.maxTurns)
	if err != nil {
		return nil, err
	}

	c := &Context{Turns: turns, Preferences: users.Preferences{}}
	if s.prefs != nil {
		p, err := s.prefs.Preferences(ctx, userID)
		if err != nil {
			s.logger.Warn("preferences unavailable", "user_id", userID, "error", err)
		} else if p != nil {
			c.Preferences = p
		}
	}
	return c, nil
}

// DeleteForUser removes every turn for the user.
func (s *Store) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete conversations: %w", err)
	}
	return res.RowsAffected()
}
