package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned when triggering a job that was never
// registered.
var ErrUnknownJob = errors.New("unknown job")

const (
	defaultTimeout = 5 * time.Minute
	runRetention   = 30 * 24 * time.Hour
)

// Scheduler fires registered jobs on their cron schedules. A job never
// runs twice at once: a trigger that arrives while the job is busy is
// recorded as skipped.
type Scheduler struct {
	logger  *slog.Logger
	store   *Store
	cron    *cron.Cron
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	jobs    map[string]*entry
	running bool
	wg      sync.WaitGroup
}

type entry struct {
	job  Job
	busy sync.Mutex
}

// New creates a scheduler that evaluates schedules in loc.
func New(logger *slog.Logger, store *Store, loc *time.Location) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		logger:  logger,
		store:   store,
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{logger}))),
		timeout: defaultTimeout,
		now:     time.Now,
		jobs:    make(map[string]*entry),
	}
}

// Register adds a job. Jobs with a schedule start firing once Start is
// called.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	e := &entry{job: job}
	if job.Schedule != "" {
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.onFire(job.Name) }); err != nil {
			return fmt.Errorf("schedule %q for job %s: %w", job.Schedule, job.Name, err)
		}
	}
	s.jobs[job.Name] = e

	s.logger.Debug("job registered", "name", job.Name, "schedule", job.Schedule)
	return nil
}

// Start closes out runs interrupted by a previous process, prunes old
// run records and starts the clock.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	now := s.now()
	if n, err := s.store.MarkInterrupted(ctx, now); err != nil {
		return err
	} else if n > 0 {
		s.logger.Info("closed interrupted job runs", "count", n)
	}
	if _, err := s.store.Prune(ctx, now.Add(-runRetention)); err != nil {
		s.logger.Warn("failed to prune job runs", "error", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts the clock and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Trigger runs the named job now and returns its run record. The job's
// own error is returned alongside the record.
func (s *Scheduler) Trigger(ctx context.Context, name string, trigger Trigger) (*Run, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.wg.Add(1)
	defer s.wg.Done()
	return s.executeJob(ctx, e, trigger)
}

// Jobs returns the registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runs returns recent run records for job ("" for all jobs).
func (s *Scheduler) Runs(ctx context.Context, job string, limit int) ([]*Run, error) {
	return s.store.ListRuns(ctx, job, limit)
}

// onFire is called by the cron clock.
func (s *Scheduler) onFire(name string) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	running := s.running
	s.mu.Unlock()
	if !ok || !running {
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.executeJob(ctx, e, TriggerCron); err != nil {
		s.logger.Error("job execution failed", "job", name, "error", err)
	}
}

// executeJob runs a job and records the run.
func (s *Scheduler) executeJob(ctx context.Context, e *entry, trigger Trigger) (*Run, error) {
	run := &Run{
		Job:       e.job.Name,
		Trigger:   trigger,
		Status:    StatusRunning,
		StartedAt: s.now(),
	}

	if !e.busy.TryLock() {
		run.Status = StatusSkipped
		run.Error = "previous run still in progress"
		run.FinishedAt = &run.StartedAt
		if err := s.store.CreateRun(ctx, run); err != nil {
			s.logger.Error("failed to record skipped run", "job", e.job.Name, "error", err)
		} else if err := s.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Error("failed to update job run", "id", run.ID, "error", err)
		}
		s.logger.Warn("job busy, run skipped", "job", e.job.Name, "trigger", trigger)
		return run, nil
	}
	defer e.busy.Unlock()

	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Debug("executing job",
		"job", e.job.Name,
		"trigger", trigger,
		"run_id", run.ID,
	)

	counts, runErr := e.job.Run(ctx, run.StartedAt)

	finished := s.now()
	run.FinishedAt = &finished
	run.Counts = counts
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = StatusCompleted
	}

	if err := s.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to update job run", "id", run.ID, "error", err)
	}

	s.logger.Info("job execution completed",
		"job", e.job.Name,
		"run_id", run.ID,
		"trigger", trigger,
		"status", run.Status,
		"counts", counts,
		"duration", run.Duration(),
	)

	return run, runErr
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
