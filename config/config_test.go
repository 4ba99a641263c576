package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Contexts) != 0 || cfg.CurrentContext != "" {
		t.Fatalf("Load() = %+v, want empty config", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("prod", Context{Server: "http://10.0.0.5:8080"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cfg.Use("prod"); err != nil {
		t.Fatalf("Use() error = %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dockmon", "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	name, ctx, ok := loaded.Current()
	if !ok || name != "prod" || ctx.Server != "http://10.0.0.5:8080" {
		t.Fatalf("Current() = %q %+v %v", name, ctx, ok)
	}
}

func TestSetRejectsBadServer(t *testing.T) {
	cfg := &Config{Contexts: map[string]Context{}}
	for _, server := range []string{"", "10.0.0.5:8080", "unix:///run/dockmon.sock"} {
		if err := cfg.Set("x", Context{Server: server}); err == nil {
			t.Errorf("Set(%q) accepted an invalid server", server)
		}
	}
	if err := cfg.Set(" ", Context{Server: "http://localhost:8080"}); err == nil {
		t.Error("Set() accepted a blank name")
	}
}

func TestRemoveClearsCurrent(t *testing.T) {
	cfg := &Config{
		CurrentContext: "dev",
		Contexts:       map[string]Context{"dev": {Server: "http://localhost:8080"}},
	}
	if err := cfg.Remove("dev"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if cfg.CurrentContext != "" {
		t.Fatalf("CurrentContext = %q, want cleared", cfg.CurrentContext)
	}
	if err := cfg.Remove("dev"); err == nil {
		t.Fatal("Remove() of a missing context should fail")
	}
}

func TestResolve(t *testing.T) {
	cfg := &Config{
		CurrentContext: "dev",
		Contexts: map[string]Context{
			"dev":  {Server: "http://localhost:8080"},
			"prod": {Server: "https://mon.example.com"},
		},
	}

	tests := []struct {
		name, server, context, want string
		wantErr                     bool
	}{
		{name: "explicit server", server: "http://other:1", context: "prod", want: "http://other:1"},
		{name: "named context", context: "prod", want: "https://mon.example.com"},
		{name: "current context", want: "http://localhost:8080"},
		{name: "unknown context", context: "qa", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.Resolve(tt.server, tt.context)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}

	empty := &Config{Contexts: map[string]Context{}}
	if got, err := empty.Resolve("", ""); err != nil || got != "" {
		t.Fatalf("Resolve() on empty config = %q, %v", got, err)
	}
}
