package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shoutd/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.Worker.RenewInterval != 10 || cfg.Worker.LeaseExtension != 15 {
		t.Fatalf("unexpected lease defaults: renew=%d extension=%d",
			cfg.Worker.RenewInterval, cfg.Worker.LeaseExtension)
	}
	if !cfg.Shout.Simulate {
		t.Fatal("simulated processor should be the default")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		`[queue]`,
		`endpoint = "http://queue.internal:9000/"`,
		`subscription = "shouts"`,
		``,
		`[shout]`,
		`corn_failure_rate = 0.25`,
		`random_seed = 42`,
		``,
		`[paths]`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved=%q exists=true, got %q %v", path, resolved, exists)
	}
	if cfg.Queue.Endpoint != "http://queue.internal:9000" {
		t.Fatalf("endpoint not normalized: %q", cfg.Queue.Endpoint)
	}
	if cfg.Queue.Subscription != "shouts" {
		t.Fatalf("unexpected subscription %q", cfg.Queue.Subscription)
	}
	if cfg.Shout.CornFailureRate != 0.25 || cfg.Shout.RandomSeed != 42 {
		t.Fatalf("shout overrides not applied: %+v", cfg.Shout)
	}
	if cfg.JournalPath() != filepath.Join(dir, "data", "journal.db") {
		t.Fatalf("unexpected journal path %q", cfg.JournalPath())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad endpoint", "[queue]\nendpoint = \"not a url\""},
		{"empty subscription", "[queue]\nsubscription = \" \""},
		{"corn rate out of range", "[shout]\ncorn_failure_rate = 1.5"},
		{"zero renew interval", "[worker]\nrenew_interval = 0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly, exists=%v err=%v", exists, err)
	}
}
