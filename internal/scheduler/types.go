// Package scheduler runs Pulse's periodic jobs (the reminder sweep and
// the check-ins) on cron schedules and records every run, whether it was
// fired by the clock, by POST /cron or from the command line.
package scheduler

import (
	"context"
	"time"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerCron Trigger = "cron" // the in-process schedule
	TriggerHTTP Trigger = "http" // POST /cron
	TriggerCLI  Trigger = "cli"  // pulse sweep
)

// Status is the state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// JobFunc does one pass of a job and returns counts describing what it
// did, for the run record and the /cron response.
type JobFunc func(ctx context.Context, now time.Time) (map[string]int, error)

// Job is a named unit of periodic work.
type Job struct {
	Name string

	// Schedule is a standard 5-field cron expression. Empty registers
	// the job for manual triggering only.
	Schedule string

	Run JobFunc
}

// Run is a single execution of a job.
type Run struct {
	ID         string         `json:"id"` // UUIDv7
	Job        string         `json:"job"`
	Trigger    Trigger        `json:"trigger"`
	Status     Status         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
