package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn, false)
	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warn("visible warning")
	l.Error("visible error")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("filtered line leaked through: %q", out)
	}
	if !strings.Contains(out, "visible warning") || !strings.Contains(out, "visible error") {
		t.Errorf("expected both warn and error lines, got %q", out)
	}
}

func TestNilLoggerIsSilentNotPanicking(t *testing.T) {
	var l *Logger
	l.Error("x")
	l.Warn("x")
	l.Info("x")
	l.Sublogger("child").Debug("still nil, still fine")
}

func TestSubloggerPrefixNesting(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, false).Sublogger("boss").Sublogger("deploy")
	l.Info("hello")
	if !strings.Contains(buf.String(), "[boss.deploy] hello") {
		t.Errorf("got %q, want nested prefix", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, ok := ParseLevel("debug"); !ok || lvl != LevelDebug {
		t.Errorf("ParseLevel(debug) = (%v, %v)", lvl, ok)
	}
	if _, ok := ParseLevel("nonsense"); ok {
		t.Error("expected ParseLevel(nonsense) to fail")
	}
}
