package ai

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/matthoffner/wizardcoder-sandbox/internal/config"
)

// mockTransport records requests and replays canned tokens.
type mockTransport struct {
	tokens  []string
	err     error
	openErr error

	calls   int
	lastReq Request
}

func (m *mockTransport) Stream(_ context.Context, req Request) (<-chan StreamDelta, error) {
	m.calls++
	m.lastReq = req
	if m.openErr != nil {
		return nil, m.openErr
	}
	ch := make(chan StreamDelta, len(m.tokens)+1)
	for _, tok := range m.tokens {
		ch <- StreamDelta{Token: tok}
	}
	if m.err != nil {
		ch <- StreamDelta{Err: m.err}
	} else {
		ch <- StreamDelta{Done: true}
	}
	close(ch)
	return ch, nil
}

func TestClient_CapsHistory(t *testing.T) {
	mock := &mockTransport{tokens: []string{"ok"}}
	client := NewClientWithTransport(mock)

	var history []Message
	for i := 0; i < 30; i++ {
		history = append(history, Message{Role: "user", Content: fmt.Sprintf("msg %d", i)})
	}

	if _, err := client.Stream(context.Background(), history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// System message + 20 trimmed history messages = 21 total.
	if len(mock.lastReq.Messages) != 21 {
		t.Errorf("expected 21 messages (1 system + 20 history), got %d", len(mock.lastReq.Messages))
	}
	if mock.lastReq.Messages[0].Role != "system" {
		t.Errorf("expected system message first, got %q", mock.lastReq.Messages[0].Role)
	}
	if !strings.Contains(mock.lastReq.Messages[1].Content, "msg 10") {
		t.Errorf("expected trimmed history to start at msg 10, got: %s", mock.lastReq.Messages[1].Content)
	}
}

func TestClient_NoSystemPrompt(t *testing.T) {
	mock := &mockTransport{}
	client := NewClientWithTransport(mock)
	client.SetSystemPrompt("")

	client.Ask(context.Background(), "hi")
	if len(mock.lastReq.Messages) != 1 || mock.lastReq.Messages[0].Content != "hi" {
		t.Errorf("unexpected messages %+v", mock.lastReq.Messages)
	}
}

func TestClient_AskCollects(t *testing.T) {
	mock := &mockTransport{tokens: []string{"hello", " ", "world"}}
	client := NewClientWithTransport(mock)

	ch, err := client.Ask(context.Background(), "greet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := Collect(ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "hello world" {
		t.Errorf("expected 'hello world', got %q", result)
	}
}

func TestClient_OpenErrorPropagates(t *testing.T) {
	mock := &mockTransport{openErr: fmt.Errorf("endpoint down")}
	client := NewClientWithTransport(mock)
	if _, err := client.Ask(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "endpoint down") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewClient_UsesConfig(t *testing.T) {
	temp := 0.0
	cfg := config.Defaults()
	cfg.Model = "wizardcoder"
	cfg.SystemPrompt = "be brief"
	cfg.Params.Temperature = &temp
	cfg.Params.MaxTokens = 64

	client := NewClient(&cfg, nil, nil)
	req := client.Request([]Message{{Role: "user", Content: "x"}})
	if req.Messages[0].Content != "be brief" {
		t.Errorf("expected configured system prompt, got %q", req.Messages[0].Content)
	}
	if req.Params.Model != "wizardcoder" || req.Params.MaxTokens != 64 || req.Params.Temperature == nil {
		t.Errorf("params not copied: %+v", req.Params)
	}
	if _, ok := client.transport.(*HTTPTransport); !ok {
		t.Errorf("expected HTTP transport for messages endpoint, got %T", client.transport)
	}

	cfg.Endpoint = "openai"
	if _, ok := NewTransport(&cfg, nil, nil).(*OpenAITransport); !ok {
		t.Error("expected OpenAI transport for openai endpoint")
	}
}

func TestCollect_ErrorMidStream(t *testing.T) {
	mock := &mockTransport{tokens: []string{"partial"}, err: fmt.Errorf("stream interrupted")}
	ch, _ := mock.Stream(context.Background(), Request{})
	result, err := Collect(ch)
	if err == nil {
		t.Fatal("expected stream error")
	}
	if result != "partial" {
		t.Errorf("expected partial result 'partial', got %q", result)
	}
}

func TestCollect_EmptyChannel(t *testing.T) {
	ch := make(chan StreamDelta)
	close(ch)
	result, err := Collect(ch)
	if err != nil || result != "" {
		t.Errorf("expected empty result, got %q %v", result, err)
	}
}

func TestRequest_PromptText(t *testing.T) {
	r := Request{Messages: []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "make a page"},
		{Role: "assistant", Content: ""},
	}}
	if got := r.PromptText(); got != "sys\n\nmake a page" {
		t.Errorf("unexpected prompt %q", got)
	}
	r.Prompt = "explicit"
	if r.PromptText() != "explicit" {
		t.Error("explicit prompt should win")
	}
}
