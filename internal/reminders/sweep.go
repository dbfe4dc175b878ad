package reminders

import (
	"context"
	"time"
)

// Notifier delivers a due reminder to its owner.
type Notifier interface {
	NotifyReminder(ctx context.Context, r Reminder) error
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Due    int `json:"due"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Sweep delivers every pending reminder due at now. A reminder is marked
// completed only after its notification succeeds, so a failed send is
// retried by the next sweep. If the status update fails after a
// successful send the reminder may be delivered again.
func (s *Service) Sweep(ctx context.Context, n Notifier, now time.Time) (SweepResult, error) {
	due, err := s.store.Due(ctx, now)
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Due: len(due)}
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := n.NotifyReminder(ctx, r); err != nil {
			res.Failed++
			s.logger.Warn("reminder delivery failed",
				"reminder_id", r.ID,
				"user_id", r.UserID,
				"error", err,
			)
			continue
		}
		res.Sent++
		if err := s.store.MarkCompleted(ctx, r.ID); err != nil {
			s.logger.Error("reminder sent but not marked completed",
				"reminder_id", r.ID,
				"error", err,
			)
		}
	}

	if res.Due > 0 {
		s.logger.Info("reminder sweep finished", "due", res.Due, "sent", res.Sent, "failed", res.Failed)
	}
	return res, nil
}
