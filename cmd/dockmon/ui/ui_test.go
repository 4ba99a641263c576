package ui

import (
	"strings"
	"testing"
	"time"

	"dockmon/internal/engine"
)

func TestFormatting(t *testing.T) {
	ConfigureInteraction(true)

	pct := 12.345
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "percent", got: Percent(40), want: "40.0%"},
		{name: "percent ptr", got: PercentPtr(&pct), want: "12.3%"},
		{name: "percent unknown", got: PercentPtr(nil), want: "-"},
		{name: "bytes", got: Bytes(1536), want: "1.5KiB"},
		{name: "duration", got: Duration(3 * time.Minute), want: "3 minutes"},
		{name: "duration zero", got: Duration(0), want: "-"},
		{name: "ratio", got: Ratio(2, 3), want: "2/3"},
		{name: "state", got: State(engine.StateExited), want: "exited"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNonInteractiveHasNoEscapes(t *testing.T) {
	ConfigureInteraction(true)

	if IsInteractive() {
		t.Fatal("IsInteractive() = true after disabling interaction")
	}
	if ClearScreen() != "" {
		t.Fatal("ClearScreen() should be empty when not interactive")
	}
	out := Table([]string{"NAME"}, [][]string{{"shop"}})
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("table contains ANSI escapes: %q", out)
	}
	if got := Accent("shop"); got != "shop" {
		t.Fatalf("Accent() = %q, want plain text when not interactive", got)
	}
	if !strings.Contains(out, "shop") {
		t.Fatalf("table missing row: %q", out)
	}
}

func TestKeyValuesAligned(t *testing.T) {
	ConfigureInteraction(true)

	out := KeyValues("  ", KV("ID", "abc"), KV("Image", "nginx"))
	want := "  ID:    abc\n  Image: nginx\n"
	if out != want {
		t.Fatalf("KeyValues() = %q, want %q", out, want)
	}
}
