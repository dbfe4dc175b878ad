// Package api implements Pulse's HTTP surface: the Telegram webhook,
// the external cron trigger and the operational endpoints.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nugget/pulse/internal/buildinfo"
	"github.com/nugget/pulse/internal/connwatch"
	"github.com/nugget/pulse/internal/scheduler"
	"github.com/nugget/pulse/internal/usage"
)

// secretHeader carries the secret_token given to setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateBytes bounds a webhook body.
const maxUpdateBytes = 1 << 20

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u *tgbotapi.Update) error
}

// JobRunner triggers and lists scheduled jobs.
type JobRunner interface {
	Trigger(ctx context.Context, name string, trigger scheduler.Trigger) (*scheduler.Run, error)
	Jobs() []string
	Runs(ctx context.Context, job string, limit int) ([]*scheduler.Run, error)
}

// UsageReporter summarizes recorded LLM usage.
type UsageReporter interface {
	Summary(ctx context.Context, start, end time.Time) (*usage.Summary, error)
	SummaryByProvider(ctx context.Context, start, end time.Time) (map[string]*usage.Summary, error)
}

// HealthReporter reports the state of backing services.
type HealthReporter interface {
	Status() []connwatch.ServiceStatus
	Healthy() bool
}

// Config configures a Server.
type Config struct {
	Address string
	Port    int

	// WebhookSecret, when set, must match the secret header on
	// POST /webhook.
	WebhookSecret string

	// CronSecret, when set, must be presented as a bearer token on
	// POST /cron.
	CronSecret string

	// UpdateTimeout bounds the handling of a single update.
	UpdateTimeout time.Duration

	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	cfg     Config
	updates UpdateHandler
	jobs    JobRunner
	usage   UsageReporter
	health  HealthReporter
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg Config, updates UpdateHandler) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = 60 * time.Second
	}
	return &Server{
		cfg:     cfg,
		updates: updates,
		logger:  logger,
	}
}

// SetScheduler configures the job runner behind POST /cron.
func (s *Server) SetScheduler(jobs JobRunner) {
	s.jobs = jobs
}

// SetUsageStore configures the store behind GET /v1/usage.
func (s *Server) SetUsageStore(u UsageReporter) {
	s.usage = u
}

// SetHealth configures the service watcher reported on GET /health.
func (s *Server) SetHealth(h HealthReporter) {
	s.health = h
}

// Handler returns the routed, logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /cron", s.handleCron)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /v1/usage", s.handleUsage)
	mux.HandleFunc("GET /v1/jobs/runs", s.handleJobRuns)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.cfg.UpdateTimeout + 30*time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	addr := s.cfg.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.cfg.Port)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if r.URL.Path == "/health" {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

// secretsEqual compares in constant time.
func secretsEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// handleWebhook accepts one Telegram update. Once the body parses the
// answer is always 200, so Telegram does not redeliver an update whose
// handling failed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret != "" && !secretsEqual(r.Header.Get(secretHeader), s.cfg.WebhookSecret) {
		s.logger.Warn("webhook secret mismatch", "remote", r.RemoteAddr)
		s.errorResponse(w, http.StatusUnauthorized, "invalid secret token")
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		s.logger.Warn("undecodable webhook body", "error", err)
		s.errorResponse(w, http.StatusBadRequest, "invalid update")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.UpdateTimeout)
	defer cancel()

	if err := s.updates.HandleUpdate(ctx, &update); err != nil {
		s.logger.Error("update handling failed", "update_id", update.UpdateID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"ok": true}, s.logger)
}

// CronResult is the per-job part of the POST /cron response.
type CronResult struct {
	Status scheduler.Status `json:"status"`
	Counts map[string]int   `json:"counts,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// handleCron runs every registered job once.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if s.cfg.CronSecret != "" {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !secretsEqual(token, s.cfg.CronSecret) {
			s.errorResponse(w, http.StatusUnauthorized, "invalid cron secret")
			return
		}
	}
	if s.jobs == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	results := make(map[string]CronResult)
	failed := false
	for _, name := range s.jobs.Jobs() {
		run, err := s.jobs.Trigger(r.Context(), name, scheduler.TriggerHTTP)
		if run == nil {
			failed = true
			results[name] = CronResult{Status: scheduler.StatusFailed, Error: err.Error()}
			continue
		}
		if err != nil {
			failed = true
		}
		results[name] = CronResult{Status: run.Status, Counts: run.Counts, Error: run.Error}
	}

	code := http.StatusOK
	if failed {
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{"ok": !failed, "jobs": results}, s.logger)
}

// handleHealth answers 503 when a critical backing service is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "healthy",
		"version": buildinfo.Version,
		"uptime":  buildinfo.Uptime().String(),
	}
	code := http.StatusOK
	if s.health != nil {
		body["services"] = s.health.Status()
		if !s.health.Healthy() {
			body["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, body, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

// handleUsage reports token usage for the last 24 hours by provider.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "usage store not configured")
		return
	}

	end := time.Now()
	start := end.Add(-24 * time.Hour)

	total, err := s.usage.Summary(r.Context(), start, end)
	if err != nil {
		s.logger.Error("usage summary failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "usage query failed")
		return
	}
	byProvider, err := s.usage.SummaryByProvider(r.Context(), start, end)
	if err != nil {
		s.logger.Error("usage summary failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "usage query failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"start":       start.UTC().Format(time.RFC3339),
		"end":         end.UTC().Format(time.RFC3339),
		"total":       total,
		"by_provider": byProvider,
	}, s.logger)
}

// handleJobRuns lists recent job runs, optionally for one job.
func (s *Server) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.jobs.Runs(r.Context(), r.URL.Query().Get("job"), limit)
	if err != nil {
		s.logger.Error("list job runs failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "job run query failed")
		return
	}
	if runs == nil {
		runs = []*scheduler.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"runs": runs}, s.logger)
}
