// Pulse is a Telegram companion bot: reminders, habits, tasks, health
// notes and daily reports, driven by an LLM with provider fallback.
//
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	pulse serve              Start the webhook server and scheduler
//	pulse sweep              Run the reminder sweep and check-ins once
//	pulse webhook <url>      Register the Telegram webhook
//	pulse init [dir]         Write a default config into dir
//	pulse version            Print version and build information
//	pulse -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/nugget/pulse/internal/api"
	"github.com/nugget/pulse/internal/buildinfo"
	"github.com/nugget/pulse/internal/config"
	"github.com/nugget/pulse/internal/scheduler"
)

// main constructs the OS-level environment and delegates to [run], so
// the whole lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand because the
// flag package's globals get in the way of calling run from parallel
// tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "sweep":
		return runSweep(ctx, stdout, configPath, outputFmt)
	case "webhook":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: pulse webhook <url>")
		}
		return runWebhook(ctx, stdout, configPath, cmdArgs[0])
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Pulse - Telegram companion bot")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: pulse [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve          Start the webhook server and scheduler")
	fmt.Fprintln(w, "  sweep          Deliver due reminders and check-ins once")
	fmt.Fprintln(w, "  webhook <url>  Register the Telegram webhook")
	fmt.Fprintln(w, "  init [dir]     Write a default config (default: .)")
	fmt.Fprintln(w, "  version        Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/pulse/config.yaml, /etc/pulse/config.yaml")
	return nil
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// configuredLogger builds the logger the config asks for. Level was
// already checked by config.Validate.
func configuredLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return config.NewLogger(w, level, cfg.LogFormat)
}

// runServe is the primary operating mode: it wires every component,
// starts the scheduler and serves HTTP until SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := config.NewLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Pulse", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger = configuredLogger(stdout, cfg)
	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"database", cfg.Database.Path,
		"timezone", cfg.Timezone,
		"redis", cfg.Redis.Configured(),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	server := api.NewServer(api.Config{
		Address:       cfg.Listen.Address,
		Port:          cfg.Listen.Port,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		CronSecret:    cfg.CronSecret,
		UpdateTimeout: cfg.Telegram.UpdateTimeout,
		Logger:        logger.With("component", "api"),
	}, a.bot)
	server.SetScheduler(sched)
	server.SetUsageStore(a.usage)

	watch := a.watchServices(ctx)
	defer watch.Stop()
	server.SetHealth(watch)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Telegram.UpdateTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Pulse stopped")
	return nil
}

// runSweep triggers every registered job once, as POST /cron does, and
// prints what each did.
func runSweep(ctx context.Context, stdout io.Writer, configPath, outputFmt string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(os.Stderr, cfg)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	var runs []*scheduler.Run
	var errs []error
	for _, name := range sched.Jobs() {
		run, err := sched.Trigger(ctx, name, scheduler.TriggerCLI)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		if run != nil {
			runs = append(runs, run)
		}
	}

	if err := printRuns(stdout, runs, outputFmt); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func printRuns(w io.Writer, runs []*scheduler.Run, outputFmt string) error {
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%-16s %-10s %s", r.Job, r.Status, r.Duration().Round(time.Millisecond))
		keys := make([]string, 0, len(r.Counts))
		for k := range r.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, " %s=%d", k, r.Counts[k])
		}
		if r.Error != "" {
			fmt.Fprintf(w, " error=%q", r.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// runWebhook registers rawURL as the bot's webhook, with the configured
// secret token.
func runWebhook(ctx context.Context, stdout io.Writer, configPath, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("webhook url must be an absolute https URL, got %q", rawURL)
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Telegram.Configured() {
		return errors.New("telegram.token is not configured")
	}
	logger := configuredLogger(os.Stderr, cfg)

	tg, err := newTelegramClient(cfg, logger)
	if err != nil {
		return err
	}
	if err := tg.SetWebhook(ctx, u.String(), cfg.Telegram.WebhookSecret); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	fmt.Fprintf(stdout, "Webhook registered for @%s: %s\n", tg.Username(), u)
	return nil
}
