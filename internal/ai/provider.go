package ai

import (
	"context"
	"strings"
)

// Message is a provider-agnostic chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Params are the generation parameters forwarded verbatim in the request
// body. Zero values are omitted, except that an explicit Temperature or
// TopP of 0 is sent.
type Params struct {
	Model            string   `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens        int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty" mapstructure:"top_p"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty" mapstructure:"frequency_penalty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty" mapstructure:"presence_penalty"`
	Stop             []string `json:"stop,omitempty" yaml:"stop,omitempty" mapstructure:"stop"`
}

// Request is one completion call. Prompt is used by prompt-shaped
// endpoints; Messages by everything else.
type Request struct {
	Messages []Message
	Prompt   string
	Params   Params
}

// PromptText flattens the request into a single prompt string for
// endpoints that take {prompt} instead of {messages}. Message contents are
// joined in order, separated by blank lines.
func (r Request) PromptText() string {
	if r.Prompt != "" {
		return r.Prompt
	}
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Transport opens one streaming completion. The returned channel is closed
// after a delta with Done or Err set, or once ctx is cancelled; no delta is
// sent after cancellation.
type Transport interface {
	Stream(ctx context.Context, req Request) (<-chan StreamDelta, error)
}
