package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dockmon/internal/grouping"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Config{
		Listen:          ":8080",
		RefreshInterval: 5 * time.Second,
		StatsTimeout:    3 * time.Second,
		MaxConcurrency:  8,
		ShutdownGrace:   5 * time.Second,
		LogLines:        100,
		GroupLabel:      grouping.DefaultLabel,
		LogLevel:        "info",
		LogFormat:       "text",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dockmon.yaml")
	file := strings.Join([]string{
		"refresh-interval: 10s",
		"max-concurrency: 4",
		"group-label: app.instance",
		"log-lines: 50",
	}, "\n")
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCKMON_MAX_CONCURRENCY", "16")
	t.Setenv("DOCKMON_LOG_FORMAT", "JSON")

	fs := pflag.NewFlagSet("dockmond", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--log-lines=200", "--docker-host=tcp://10.0.0.5:2375"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// file
	if cfg.RefreshInterval != 10*time.Second || cfg.GroupLabel != "app.instance" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	// env over file
	if cfg.MaxConcurrency != 16 {
		t.Errorf("MaxConcurrency = %d, want 16 from env", cfg.MaxConcurrency)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	// flag over file
	if cfg.LogLines != 200 {
		t.Errorf("LogLines = %d, want 200 from flag", cfg.LogLines)
	}
	if cfg.DockerHost != "tcp://10.0.0.5:2375" {
		t.Errorf("DockerHost = %q", cfg.DockerHost)
	}
	// untouched flag keeps default
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want default", cfg.Listen)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatal("Load() with a missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	base, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad listen", mutate: func(c *Config) { c.Listen = "8080" }, wantErr: KeyListen},
		{name: "interval too short", mutate: func(c *Config) { c.RefreshInterval = time.Millisecond }, wantErr: KeyRefreshInterval},
		{name: "zero concurrency", mutate: func(c *Config) { c.MaxConcurrency = 0 }, wantErr: KeyMaxConcurrency},
		{name: "zero shutdown grace", mutate: func(c *Config) { c.ShutdownGrace = 0 }, wantErr: KeyShutdownGrace},
		{name: "negative shutdown grace", mutate: func(c *Config) { c.ShutdownGrace = -time.Second }, wantErr: KeyShutdownGrace},
		{name: "log lines over cap", mutate: func(c *Config) { c.LogLines = 5001 }, wantErr: KeyLogLines},
		{name: "empty label", mutate: func(c *Config) { c.GroupLabel = "" }, wantErr: KeyGroupLabel},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: KeyLogLevel},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: KeyLogFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestAggregatorConfig(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	agg := cfg.Aggregator()
	if agg.Interval != cfg.RefreshInterval || agg.GroupLabel != cfg.GroupLabel || agg.MaxConcurrency != 8 {
		t.Fatalf("Aggregator() = %+v", agg)
	}
}
