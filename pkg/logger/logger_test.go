
package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithLevel("warn", &buf)
	l.Infof("hidden %d", 1)
	l.Errorf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Fatalf("error line missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Fatal("want debug")
	}
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
}
