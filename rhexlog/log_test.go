package rhexlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerBindsContext(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{mu: root.mu, w: &buf, minLevel: LevelDebug}
	child := l.New("scope", "a.b")
	child.Info("hello", "n", 3)

	out := buf.String()
	if !strings.Contains(out, `msg="hello"`) {
		t.Fatalf("missing msg: %s", out)
	}
	if !strings.Contains(out, "scope=") || !strings.Contains(out, "n=3") {
		t.Fatalf("missing bound/explicit kv: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{mu: root.mu, w: &buf, minLevel: LevelWarn}
	l.Debug("should not appear")
	l.Info("should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buf.String())
	}
	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Fatalf("expected output at configured level")
	}
}
