// Package users stores the people Pulse talks to: one row per Telegram
// chat, with a timezone and a small preferences object.
package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/pulse/internal/cache"
	"github.com/nugget/pulse/internal/database"
)

// Preference keys.
const (
	PrefNotifications         = "notifications"          // "enabled" | "disabled"
	PrefReminderNotifications = "reminder_notifications" // "enabled" | "disabled"
	PrefReportNotifications   = "report_notifications"   // "enabled" | "disabled"
)

// Preference values.
const (
	Enabled  = "enabled"
	Disabled = "disabled"
)

// Preferences is the user's settings object.
type Preferences map[string]string

// Enabled reports whether key is switched on. Missing keys are on.
func (p Preferences) Enabled(key string) bool {
	return p[key] != Disabled
}

// User is one Telegram chat.
type User struct {
	ID          string
	ChatID      int64
	Username    string
	FirstName   string
	LastName    string
	Preferences Preferences
	Timezone    string
	CreatedAt   time.Time
	LastActive  time.Time
}

// Location returns the user's timezone, falling back to UTC.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Name returns the best display name for the user.
func (u *User) Name() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return "friend"
	}
}

// Profile is the identity carried by an inbound update.
type Profile struct {
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
}

// Store persists users on the shared database. Preferences are read
// through cache when one is installed.
type Store struct {
	db        *sql.DB
	defaultTZ string
	cache     cache.Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore creates the users schema on db if needed. defaultTZ is
// assigned to new users.
func NewStore(db *sql.DB, defaultTZ string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	s := &Store{db: db, defaultTZ: defaultTZ, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate users schema: %w", err)
	}
	return s, nil
}

// WithCache installs a preference cache.
func (s *Store) WithCache(c cache.Cache, ttl time.Duration) *Store {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		chat_id     INTEGER NOT NULL UNIQUE,
		username    TEXT,
		first_name  TEXT,
		last_name   TEXT,
		preferences TEXT NOT NULL DEFAULT '{}',
		timezone    TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		last_active TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_active ON users(last_active);
	`
	_, err := s.db.Exec(schema)
	return err
}

const userColumns = `id, chat_id, username, first_name, last_name, preferences, timezone, created_at, last_active`

// GetOrCreate returns the user for p.ChatID, creating it on first
// contact. Names are refreshed and last_active is touched either way.
func (s *Store) GetOrCreate(ctx context.Context, p Profile) (*User, error) {
	now := database.FormatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, chat_id, username, first_name, last_name, preferences, timezone, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, '{}', ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			last_active = excluded.last_active`,
		database.NewID(), p.ChatID, p.Username, p.FirstName, p.LastName, s.defaultTZ, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user %d: %w", p.ChatID, err)
	}

	u, err := s.GetByChatID(ctx, p.ChatID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d missing after upsert", p.ChatID)
	}
	return u, nil
}

// Get returns the user with id, or nil if there is none.
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetByChatID returns the user for a Telegram chat, or nil.
func (s *Store) GetByChatID(ctx context.Context, chatID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	return scanUser(row)
}

// Touch marks the user active now.
func (s *Store) Touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_active = ? WHERE id = ?`,
		database.FormatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("touch user %s: %w", id, err)
	}
	return nil
}

// SetTimezone validates and stores an IANA zone name.
func (s *Store) SetTimezone(ctx context.Context, id, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET timezone = ? WHERE id = ?`, tz, id); err != nil {
		return fmt.Errorf("set timezone for %s: %w", id, err)
	}
	return nil
}

// ActiveSince returns users whose last activity is at or after since.
func (s *Store) ActiveSince(ctx context.Context, since time.Time) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE last_active >= ? ORDER BY chat_id`,
		database.FormatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Preferences returns the user's preferences, from cache when possible.
func (s *Store) Preferences(ctx context.Context, id string) (Preferences, error) {
	key := prefsKey(id)
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("preference cache read failed", "user_id", id, "error", err)
		} else if ok {
			var p Preferences
			if err := json.Unmarshal([]byte(raw), &p); err == nil {
				return p, nil
			}
		}
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT preferences FROM users WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences for %s: %w", id, err)
	}
	p := decodePreferences(raw)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, encodePreferences(p), s.cacheTTL); err != nil {
			s.logger.Warn("preference cache write failed", "user_id", id, "error", err)
		}
	}
	return p, nil
}

// SetPreference writes one preference through to the database and
// invalidates the cached copy.
func (s *Store) SetPreference(ctx context.Context, id, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT preferences FROM users WHERE id = ?`, id).Scan(&raw); err != nil {
		return fmt.Errorf("read preferences for %s: %w", id, err)
	}
	p := decodePreferences(raw)
	p[key] = value

	if _, err := tx.ExecContext(ctx, `UPDATE users SET preferences = ? WHERE id = ?`, encodePreferences(p), id); err != nil {
		return fmt.Errorf("write preferences for %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

// ResetPreferences clears every preference for the user.
func (s *Store) ResetPreferences(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET preferences = '{}' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("reset preferences for %s: %w", id, err)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Store) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, prefsKey(id)); err != nil {
		s.logger.Warn("preference cache invalidation failed", "user_id", id, "error", err)
	}
}

func prefsKey(id string) string { return "prefs:" + id }

func decodePreferences(raw string) Preferences {
	p := Preferences{}
	if raw == "" {
		return p
	}
	_ = json.Unmarshal([]byte(raw), &p)
	return p
}

func encodePreferences(p Preferences) string {
	if p == nil {
		return "{}"
	}
	b, _ := json.Marshal(p)
	return string(b)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (*User, error) {
	var (
		u                             User
		username, firstName, lastName sql.NullString
		prefs, createdAt, lastActive  string
	)
	err := sc.Scan(&u.ID, &u.ChatID, &username, &firstName, &lastName, &prefs, &u.Timezone, &createdAt, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Username = username.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.Preferences = decodePreferences(prefs)
	u.CreatedAt, _ = database.ParseTime(createdAt)
	u.LastActive, _ = database.ParseTime(lastActive)
	return &u, nil
}
