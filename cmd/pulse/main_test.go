package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nugget/pulse/internal/scheduler"
)

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"-h"}, {"--help"}} {
		var out bytes.Buffer
		if err := run(context.Background(), &out, &bytes.Buffer{}, args); err != nil {
			t.Fatalf("run(%v): %v", args, err)
		}
		if !strings.Contains(out.String(), "Usage: pulse") {
			t.Errorf("run(%v) printed %q", args, out.String())
		}
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, &bytes.Buffer{}, []string{"version"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "Pulse ") || !strings.Contains(out.String(), "go_version:") {
		t.Errorf("text version = %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), &out, &bytes.Buffer{}, []string{"-o", "json", "version"}); err != nil {
		t.Fatal(err)
	}
	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("json version: %v\n%s", err, out.String())
	}
	if info["version"] == "" {
		t.Errorf("info = %v", info)
	}
}

func TestRun_Errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"dance"}, "unknown command: dance"},
		{"unknown flag", []string{"-x"}, "unknown flag: -x"},
		{"bad output format", []string{"-o", "xml", "version"}, "unknown output format"},
		{"webhook without url", []string{"webhook"}, "usage: pulse webhook <url>"},
		{"webhook over http", []string{"webhook", "http://example.com/webhook"}, "absolute https URL"},
		{"missing config", []string{"-config", missing, "sweep"}, "config file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestRun_SweepRequiresToken(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "data_dir: " + dir + "\ntelegram:\n  token: \"\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"-config=" + cfgPath, "sweep"})
	if err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Errorf("err = %v", err)
	}
}

func TestPrintRuns(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	runs := []*scheduler.Run{
		{Job: "reminder_sweep", Status: scheduler.StatusCompleted, StartedAt: start, FinishedAt: &end,
			Counts: map[string]int{"sent": 2, "due": 3, "failed": 1}},
		{Job: "checkin", Status: scheduler.StatusFailed, StartedAt: start, FinishedAt: &end, Error: "db locked"},
	}

	var out bytes.Buffer
	if err := printRuns(&out, runs, "text"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasSuffix(lines[0], "1.5s due=3 failed=1 sent=2") {
		t.Errorf("sweep line = %q", lines[0])
	}
	if !strings.Contains(lines[1], `error="db locked"`) {
		t.Errorf("checkin line = %q", lines[1])
	}

	out.Reset()
	if err := printRuns(&out, runs, "json"); err != nil {
		t.Fatal(err)
	}
	var decoded []scheduler.Run
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil || len(decoded) != 2 {
		t.Errorf("json runs: %v %s", err, out.String())
	}
}
