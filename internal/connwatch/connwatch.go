// Package connwatch monitors Pulse's backing services (the database and
// the optional Redis cache) so /health can report them.
//
// This is distinct from httpkit's transport-level retry, which handles
// sub-second dial errors on a single request. connwatch tracks outages
// that last seconds to minutes. Each watcher probes its service on a
// fixed interval while the service is up and backs off exponentially
// (2s, 4s, 8s, ... capped at the interval) while it is down.
package connwatch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ProbeFunc checks whether a service is reachable. Return nil if healthy.
type ProbeFunc func(ctx context.Context) error

// Config configures a single service watcher.
type Config struct {
	// Name identifies the service in logs and status ("database").
	Name string

	// Probe checks service health. Must be safe for concurrent use.
	Probe ProbeFunc

	// Critical services make the whole process unhealthy when down.
	// Non-critical ones (a cache with a database fallback) only show
	// up in the status.
	Critical bool

	// Interval between probes while the service is up (default 60s).
	Interval time.Duration

	// InitialBackoff is the first retry delay while the service is down
	// (default 2s). It doubles up to Interval.
	InitialBackoff time.Duration

	// Timeout bounds each probe (default 5s).
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 2 * time.Second
	}
	if c.InitialBackoff > c.Interval {
		c.InitialBackoff = c.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// ServiceStatus is the health of one service, as served on /health.
type ServiceStatus struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	Critical  bool      `json:"critical"`
	LastCheck time.Time `json:"last_check"`
	Since     time.Time `json:"since"` // last transition
	LastError string    `json:"last_error,omitempty"`
}

// watcher probes one service.
type watcher struct {
	cfg    Config
	logger *slog.Logger
	done   chan struct{}

	mu     sync.Mutex
	status ServiceStatus
}

// Manager owns a set of watchers.
type Manager struct {
	logger *slog.Logger

	mu       sync.RWMutex
	watchers map[string]*watcher
	cancel   []context.CancelFunc
}

// NewManager creates a connection watch manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		watchers: make(map[string]*watcher),
	}
}

// Watch probes cfg.Probe once synchronously, so the first status is
// known on return, then keeps probing in the background until ctx is
// cancelled or Stop is called.
//
// Panics if Name is empty or Probe is nil.
func (m *Manager) Watch(ctx context.Context, cfg Config) {
	if cfg.Name == "" {
		panic("connwatch: Config.Name must not be empty")
	}
	if cfg.Probe == nil {
		panic("connwatch: Config.Probe must not be nil")
	}
	cfg.applyDefaults()

	w := &watcher{
		cfg:    cfg,
		logger: m.logger.With("service", cfg.Name),
		done:   make(chan struct{}),
		status: ServiceStatus{Name: cfg.Name, Critical: cfg.Critical},
	}
	err := w.probe(ctx)
	w.record(err)
	if err != nil {
		w.logger.Warn("service unreachable at startup", "error", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.watchers[cfg.Name] = w
	m.cancel = append(m.cancel, cancel)
	m.mu.Unlock()

	go w.run(watchCtx)
}

// Status returns the health of every watched service, sorted by name.
func (m *Manager) Status() []ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServiceStatus, 0, len(m.watchers))
	for _, w := range m.watchers {
		w.mu.Lock()
		out = append(out, w.status)
		w.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Healthy reports whether every critical service is up.
func (m *Manager) Healthy() bool {
	for _, s := range m.Status() {
		if s.Critical && !s.Ready {
			return false
		}
	}
	return true
}

// Stop cancels every watcher and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancels := m.cancel
	m.cancel = nil
	watchers := make([]*watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, w := range watchers {
		<-w.done
	}
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.done)

	backoff := w.cfg.InitialBackoff
	for {
		delay := w.cfg.Interval
		if !w.ready() {
			delay = backoff
			backoff = min(backoff*2, w.cfg.Interval)
		}
		if !sleepCtx(ctx, delay) {
			return
		}

		err := w.probe(ctx)
		if ctx.Err() != nil {
			return
		}
		wasReady := w.ready()
		w.record(err)

		switch {
		case wasReady && err != nil:
			w.logger.Warn("service became unreachable", "error", err)
			backoff = w.cfg.InitialBackoff
		case !wasReady && err == nil:
			w.logger.Info("service recovered")
		case err != nil:
			w.logger.Debug("service still unreachable", "error", err, "next_retry", backoff)
		}
	}
}

func (w *watcher) ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status.Ready
}

// probe calls the configured ProbeFunc with a timeout.
func (w *watcher) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()
	return w.cfg.Probe(probeCtx)
}

// record stores a probe outcome.
func (w *watcher) record(err error) {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	ready := err == nil
	if ready != w.status.Ready || w.status.Since.IsZero() {
		w.status.Since = now
	}
	w.status.Ready = ready
	w.status.LastCheck = now
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
}

// sleepCtx sleeps for d or until ctx is cancelled. Returns false if cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
