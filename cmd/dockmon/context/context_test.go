package contextcmd

import (
	"bytes"
	"strings"
	"testing"

	"dockmon/cmd/dockmon/ui"
	"dockmon/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := Cmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestContextLifecycle(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	ui.ConfigureInteraction(true)

	if _, err := run(t, "add", "dev", "--server", "http://localhost:8080"); err != nil {
		t.Fatalf("add dev: %v", err)
	}
	if _, err := run(t, "add", "prod", "--server", "https://mon.example.com"); err != nil {
		t.Fatalf("add prod: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentContext != "dev" {
		t.Fatalf("CurrentContext = %q, want first added context", cfg.CurrentContext)
	}

	if _, err := run(t, "use", "prod"); err != nil {
		t.Fatalf("use prod: %v", err)
	}
	out, err := run(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"dev", "prod", "https://mon.example.com", "*"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "rm", "prod"); err != nil {
		t.Fatalf("rm prod: %v", err)
	}
	cfg, err = config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Contexts["prod"]; ok || cfg.CurrentContext != "" {
		t.Fatalf("after rm: %+v", cfg)
	}

	if _, err := run(t, "use", "prod"); err == nil {
		t.Fatal("use of a removed context should fail")
	}
	if _, err := run(t, "add", "bad", "--server", "localhost"); err == nil {
		t.Fatal("add with an invalid server should fail")
	}
}
