package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/matthoffner/wizardcoder-sandbox/internal/buffer"
	"github.com/matthoffner/wizardcoder-sandbox/internal/classify"
	"github.com/matthoffner/wizardcoder-sandbox/internal/sandbox"
)

func init() {
	color.NoColor = true
}

func TestChatPrinter_Roles(t *testing.T) {
	var buf bytes.Buffer
	p := NewChatPrinter(&buf)
	p.Append(sandbox.ChatMessage{Role: sandbox.RoleSystem, Content: sandbox.WelcomeMessage})
	p.Append(sandbox.ChatMessage{Role: sandbox.RoleUser, Content: "todo app"})
	p.Append(sandbox.ChatMessage{Role: sandbox.RoleWizard, Content: "v1"})
	p.Append(sandbox.ChatMessage{Role: sandbox.RoleSystem, Content: "error: connection refused"})

	out := buf.String()
	for _, want := range []string{sandbox.WelcomeMessage, "you › todo app", "🪄 v1", "error: connection refused"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestEditorEcho_AppendsThenResets(t *testing.T) {
	var buf bytes.Buffer
	e := NewEditorEcho(&buf)

	e.OnChange(buffer.Change{Origin: buffer.OriginStream, Reset: true, Value: "<p>", Language: classify.HTML})
	e.OnChange(buffer.Change{Origin: buffer.OriginStream, Edit: buffer.Edit{Start: 3, End: 3, Text: "hi"}, Value: "<p>hi", Language: classify.HTML})
	if got := buf.String(); got != "── html ──\n<p>hi" {
		t.Fatalf("unexpected echo %q", got)
	}

	buf.Reset()
	e.OnChange(buffer.Change{Origin: buffer.OriginStream, Edit: buffer.Edit{Start: 0, End: 3, Text: "<b>"}, Value: "<b>hi", Language: classify.HTML})
	if got := buf.String(); got != "\n── html ──\n<b>hi" {
		t.Errorf("non-append edit should reprint, got %q", got)
	}

	buf.Reset()
	e.Break()
	e.Break()
	if buf.String() != "\n" {
		t.Errorf("expected a single line break, got %q", buf.String())
	}
}

func TestEditorEcho_UserEditsAreSilent(t *testing.T) {
	var buf bytes.Buffer
	e := NewEditorEcho(&buf)
	e.OnChange(buffer.Change{Origin: buffer.OriginUser, Edit: buffer.Edit{Text: "x"}, Value: "x"})
	if buf.Len() != 0 {
		t.Errorf("user edits should not echo, got %q", buf.String())
	}
	e.OnChange(buffer.Change{Origin: buffer.OriginStream, Edit: buffer.Edit{Start: 1, End: 1, Text: "y"}, Value: "xy"})
	if buf.String() != "y" {
		t.Errorf("expected append after user edit, got %q", buf.String())
	}
}
