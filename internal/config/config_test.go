package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("telegram:\n  token: ${PULSE_TEST_TOKEN}\n"), 0600)
	t.Setenv("PULSE_TEST_TOKEN", "123:abc")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q, want %q", cfg.Telegram.Token, "123:abc")
	}
}

func TestLoad_DotEnvBesideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("providers:\n  groq:\n    api_key: ${PULSE_DOTENV_GROQ}\n"), 0600)
	os.WriteFile(filepath.Join(dir, ".env"), []byte("PULSE_DOTENV_GROQ=gsk-from-dotenv\n"), 0600)
	t.Cleanup(func() { os.Unsetenv("PULSE_DOTENV_GROQ") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Providers.Groq.APIKey != "gsk-from-dotenv" {
		t.Errorf("groq api_key = %q, want %q", cfg.Providers.Groq.APIKey, "gsk-from-dotenv")
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("data_dir: /var/lib/pulse\ntelegram:\n  update_timeout: 30s\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Providers.Groq.Model != "llama-3.3-70b-versatile" {
		t.Errorf("groq model = %q, want default", cfg.Providers.Groq.Model)
	}
	if cfg.Reminders.ConfidenceThreshold != 60 {
		t.Errorf("confidence_threshold = %d, want 60", cfg.Reminders.ConfidenceThreshold)
	}
	if cfg.Database.Path != filepath.Join("/var/lib/pulse", "pulse.db") {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.Telegram.UpdateTimeout != 30*time.Second {
		t.Errorf("update_timeout = %v, want 30s", cfg.Telegram.UpdateTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "unknown log level"},
		{name: "bad provider", mutate: func(c *Config) { c.Providers.Default = "openai" }, wantErr: "providers.default"},
		{name: "threshold range", mutate: func(c *Config) { c.Reminders.ConfidenceThreshold = 101 }, wantErr: "confidence_threshold"},
		{name: "bad cron", mutate: func(c *Config) { c.Reminders.SweepSchedule = "every five" }, wantErr: "sweep_schedule"},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
		{name: "empty reflection window", mutate: func(c *Config) { c.Checkin.ReflectionEndHour = 20 }, wantErr: "reflection window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestProvider(t *testing.T) {
	cfg := Default()
	if p, ok := cfg.Provider(ProviderGemini); !ok || p.Model != "gemini-2.5-flash" {
		t.Errorf("Provider(gemini) = %+v, %v", p, ok)
	}
	if _, ok := cfg.Provider("anthropic"); ok {
		t.Error("Provider(anthropic) should not be known")
	}
}
