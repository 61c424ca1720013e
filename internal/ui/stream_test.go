package ui

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/matthoffner/wizardcoder-sandbox/internal/ai"
	"github.com/matthoffner/wizardcoder-sandbox/internal/classify"
)

func feed(tokens ...string) <-chan ai.StreamDelta {
	ch := make(chan ai.StreamDelta, len(tokens)+1)
	for _, tok := range tokens {
		ch <- ai.StreamDelta{Token: tok}
	}
	ch <- ai.StreamDelta{Done: true}
	close(ch)
	return ch
}

func TestRenderStream_BasicTokens(t *testing.T) {
	var buf bytes.Buffer
	chunk, err := RenderStream(&buf, feed("hello", " world"), "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Content != "hello world" {
		t.Errorf("expected 'hello world', got %q", chunk.Content)
	}
	if !strings.HasPrefix(buf.String(), "  hello") {
		t.Errorf("expected output to start with prefix, got %q", buf.String())
	}
}

func TestRenderStream_StripsFences(t *testing.T) {
	var buf bytes.Buffer
	chunk, err := RenderStream(&buf, feed("```ht", "ml\n<p>x</p>\n", "```"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Kind != classify.HTML {
		t.Errorf("expected html, got %q", chunk.Kind)
	}
	if strings.Contains(buf.String(), "```") {
		t.Errorf("fence markers leaked: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "<p>x</p>") {
		t.Errorf("expected code in output, got %q", buf.String())
	}
}

func TestRenderStream_SkipsEmptyTokens(t *testing.T) {
	var buf bytes.Buffer
	chunk, err := RenderStream(&buf, feed("", "hello", ""), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Content != "hello" {
		t.Errorf("expected 'hello', got %q", chunk.Content)
	}
}

func TestRenderStream_Error(t *testing.T) {
	ch := make(chan ai.StreamDelta, 3)
	ch <- ai.StreamDelta{Token: "partial"}
	ch <- ai.StreamDelta{Err: fmt.Errorf("stream broke")}
	close(ch)

	var buf bytes.Buffer
	chunk, err := RenderStream(&buf, ch, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if chunk.Content != "partial" {
		t.Errorf("expected partial 'partial', got %q", chunk.Content)
	}
	if !strings.Contains(err.Error(), "stream broke") {
		t.Errorf("expected 'stream broke', got: %v", err)
	}
}

func TestRenderStream_ClosedChannel(t *testing.T) {
	ch := make(chan ai.StreamDelta)
	close(ch)

	var buf bytes.Buffer
	chunk, err := RenderStream(&buf, ch, ">> ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Content != "" {
		t.Errorf("expected empty result, got %q", chunk.Content)
	}
	if strings.Contains(buf.String(), ">>") {
		t.Error("prefix should only be written before visible text")
	}
}

func TestRenderStream_AddsTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	if _, err := RenderStream(&buf, feed("no newline at end"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("output should end with newline")
	}
}

func TestRenderStream_PreservesExistingNewline(t *testing.T) {
	var buf bytes.Buffer
	if _, err := RenderStream(&buf, feed("ends with newline\n"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.HasSuffix(buf.String(), "\n\n\n") {
		t.Errorf("should not triple-newline, got %q", buf.String())
	}
}
