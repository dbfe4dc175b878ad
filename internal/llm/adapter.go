package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Options shape one Adapter.Generate call. Zero values defer to the
// provider.
type Options struct {
	// Provider selects a registered provider by name. Empty uses the
	// adapter's default.
	Provider string

	System      string
	Temperature float64
	MaxTokens   int

	// Role tags the call for usage accounting ("chat", "analysis",
	// "extraction", "checkin").
	Role string
}

// UsageFunc is called after every successful generation.
type UsageFunc func(ctx context.Context, resp *Response, role string)

// Adapter routes generation requests to a named provider and retries
// once on the fallback provider when the selected one fails.
type Adapter struct {
	providers    map[string]Provider
	defaultName  string
	fallbackName string
	onUsage      UsageFunc
	logger       *slog.Logger
	now          func() time.Time
}

// NewAdapter creates an adapter. Providers are registered with
// AddProvider; defaultName and fallbackName refer to their names.
func NewAdapter(defaultName, fallbackName string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		providers:    make(map[string]Provider),
		defaultName:  defaultName,
		fallbackName: fallbackName,
		logger:       logger,
		now:          time.Now,
	}
}

// AddProvider registers a provider under its Name.
func (a *Adapter) AddProvider(p Provider) {
	a.providers[p.Name()] = p
}

// OnUsage installs a usage callback.
func (a *Adapter) OnUsage(fn UsageFunc) {
	a.onUsage = fn
}

// Providers returns the registered provider names, default first.
func (a *Adapter) Providers() []string {
	var names []string
	if _, ok := a.providers[a.defaultName]; ok {
		names = append(names, a.defaultName)
	}
	for name := range a.providers {
		if name != a.defaultName {
			names = append(names, name)
		}
	}
	return names
}

// Generate sends prompt (with history, oldest first) to the selected
// provider. If it fails and is not the fallback, the same request is
// sent once to the fallback. When every attempt fails the error is an
// *AllProvidersFailedError.
func (a *Adapter) Generate(ctx context.Context, prompt string, history []Message, opts Options) (*Response, error) {
	name := opts.Provider
	if name == "" {
		name = a.defaultName
	}

	req := Request{
		System:      opts.System,
		History:     history,
		Prompt:      prompt,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	a.logger.Debug("generating response", "provider", name, "prompt_len", len(prompt), "role", opts.Role)

	var attempts []ProviderAttempt
	resp, err := a.call(ctx, name, req)
	if err == nil {
		a.recordUsage(ctx, resp, opts.Role)
		return resp, nil
	}
	attempts = append(attempts, ProviderAttempt{Provider: name, Err: err})
	a.logger.Warn("provider failed", "provider", name, "error", err)

	if name != a.fallbackName && a.fallbackName != "" && ctx.Err() == nil {
		a.logger.Info("falling back", "from", name, "to", a.fallbackName)
		resp, err = a.call(ctx, a.fallbackName, req)
		if err == nil {
			a.recordUsage(ctx, resp, opts.Role)
			return resp, nil
		}
		attempts = append(attempts, ProviderAttempt{Provider: a.fallbackName, Err: err})
		a.logger.Error("fallback provider also failed", "provider", a.fallbackName, "error", err)
	}

	return nil, &AllProvidersFailedError{Attempts: attempts}
}

func (a *Adapter) call(ctx context.Context, name string, req Request) (*Response, error) {
	p, ok := a.providers[name]
	if !ok {
		return nil, &ProviderError{Provider: name, Err: errors.New("provider not configured")}
	}
	start := a.now()
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &ProviderError{Provider: name, Err: errors.New("empty response")}
	}
	if resp.Provider == "" {
		resp.Provider = name
	}
	a.logger.Debug("response generated",
		"provider", resp.Provider,
		"model", resp.Model,
		"content_len", len(resp.Content),
		"elapsed", a.now().Sub(start).Round(time.Millisecond),
	)
	return resp, nil
}

func (a *Adapter) recordUsage(ctx context.Context, resp *Response, role string) {
	if a.onUsage == nil {
		return
	}
	if role == "" {
		role = "chat"
	}
	a.onUsage(ctx, resp, role)
}

// IsAllProvidersFailed reports whether err came from exhausting every
// provider.
func IsAllProvidersFailed(err error) bool {
	var apf *AllProvidersFailedError
	return errors.As(err, &apf)
}

// String describes the adapter's routing for startup logs.
func (a *Adapter) String() string {
	return fmt.Sprintf("default=%s fallback=%s providers=%v", a.defaultName, a.fallbackName, a.Providers())
}
