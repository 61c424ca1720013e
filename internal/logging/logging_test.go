package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_QuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})
	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	_ = l.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info should be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warn line, got %q", out)
	}
}

func TestNew_VerboseJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Verbose: true, JSON: true})
	l.Debug("chunk", zap.String("session", "abc"))
	_ = l.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "chunk" || entry["session"] != "abc" || entry["level"] != "debug" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected a usable logger")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("expected the same logger back")
	}
}
