package habits

import (
	"context"
	"log/slog"
	"time"

	"github.com/nugget/pulse/internal/database"
)

// Tracker logs habits detected in free text.
type Tracker struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker over store.
func NewTracker(store *Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Store returns the underlying store.
func (t *Tracker) Store() *Store { return t.store }

// Today returns the current calendar date in loc.
func (t *Tracker) Today(loc *time.Location) string {
	return database.Day(t.now(), loc)
}

// TrackFromMessage logs every habit text reports for the user's current
// day in loc and returns the habits detected. A habit already logged
// today is not logged again.
func (t *Tracker) TrackFromMessage(ctx context.Context, userID string, loc *time.Location, text string) ([]string, error) {
	detected := Detect(text)
	for _, name := range detected {
		if _, err := t.Record(ctx, userID, name, loc); err != nil {
			return detected, err
		}
	}
	return detected, nil
}

// Record logs one habit by name for today in loc and reports whether a
// new entry was written.
func (t *Tracker) Record(ctx context.Context, userID, name string, loc *time.Location) (bool, error) {
	h, err := t.store.GetOrCreate(ctx, userID, name)
	if err != nil {
		return false, err
	}
	logged, err := t.store.Log(ctx, h.ID, t.Today(loc), "")
	if err != nil {
		return false, err
	}
	if logged {
		t.logger.Info("habit logged", "user_id", userID, "habit", name)
	} else {
		t.logger.Debug("habit already logged today", "user_id", userID, "habit", name)
	}
	return logged, nil
}
