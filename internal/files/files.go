// Package files records the photos, documents and voice notes people
// send. Only Telegram's file reference is kept; the content stays on
// Telegram's servers.
package files

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/pulse/internal/database"
)

// Kind is the type of media.
type Kind string

const (
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
	KindVoice    Kind = "voice"
)

// File is a stored media reference.
type File struct {
	ID           string
	UserID       string
	TelegramID   string
	Kind         Kind
	Name         string
	MimeType     string
	Size         int
	Caption      string
	DurationSecs int
	CreatedAt    time.Time
}

// Store persists media references.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates the files schema on db if needed.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate files schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		telegram_id TEXT NOT NULL,
		kind        TEXT NOT NULL,
		name        TEXT NOT NULL DEFAULT '',
		mime_type   TEXT NOT NULL DEFAULT '',
		size        INTEGER NOT NULL DEFAULT 0,
		caption     TEXT NOT NULL DEFAULT '',
		duration    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_user ON files(user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stores f, assigning its ID and creation time.
func (s *Store) Save(ctx context.Context, f *File) error {
	f.ID = database.NewID()
	f.CreatedAt = s.now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, user_id, telegram_id, kind, name, mime_type, size, caption, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.TelegramID, f.Kind, f.Name, f.MimeType, f.Size, f.Caption, f.DurationSecs,
		database.FormatTime(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	s.logger.Debug("file saved", "user_id", f.UserID, "kind", f.Kind, "telegram_id", f.TelegramID)
	return nil
}

// Recent returns the user's newest files, at most limit.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, telegram_id, kind, name, mime_type, size, caption, duration, created_at
		FROM files WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		var created string
		if err := rows.Scan(&f.ID, &f.UserID, &f.TelegramID, &f.Kind, &f.Name, &f.MimeType,
			&f.Size, &f.Caption, &f.DurationSecs, &created); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.CreatedAt, _ = database.ParseTime(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteForUser removes every file reference owned by the user.
func (s *Store) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete files: %w", err)
	}
	return res.RowsAffected()
}
