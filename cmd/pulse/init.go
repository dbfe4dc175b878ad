package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nugget/pulse/examples"
)

// runInit initializes a Pulse working directory: a data directory, the
// example config and an empty .env for secrets. Existing files are
// never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Pulse workspace in %s\n", dir)

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDir, err)
	}
	fmt.Fprintf(w, "  ✓ %s/\n", dataDir)

	// The config and .env hold tokens.
	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, examples.ConfigYAML, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	envPath := filepath.Join(dir, ".env")
	env := []byte("TELEGRAM_BOT_TOKEN=\nTELEGRAM_WEBHOOK_SECRET=\nGROQ_API_KEY=\nGEMINI_API_KEY=\nPULSE_CRON_SECRET=\n")
	if err := writeIfMissing(envPath, env, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", envPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fill in .env, then run `pulse serve` and `pulse webhook <url>`.")
	return nil
}

// writeIfMissing writes content to path only if the file does not already
// exist. This ensures init never overwrites user customizations.
func writeIfMissing(path string, content []byte, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
