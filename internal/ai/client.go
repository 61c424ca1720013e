// Package ai streams completions from a hosted language model. The wire
// format is server-sent events carrying either bare JSON string tokens or
// OpenAI-style choice objects; both plain HTTP and the go-openai client are
// supported behind the Transport interface.
package ai

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/config"
	"github.com/matthoffner/wizardcoder-sandbox/internal/diag"
)

// maxHistory caps how many prior messages are sent with each request.
const maxHistory = 20

// DefaultSystemPrompt steers the model towards a single self-contained
// document the preview can render.
const DefaultSystemPrompt = `You are WizardCoder, an expert web developer. Reply with one complete, self-contained HTML document (inline CSS and JavaScript) unless the user asks for another language. When you reply with code in another language, wrap it in a single fenced code block tagged with the language. Keep prose outside the code short.`

// Client builds requests for a Transport.
type Client struct {
	transport Transport
	system    string
	params    Params
}

// NewClient creates a client for cfg's endpoint.
func NewClient(cfg *config.Config, logger *zap.Logger, sink diag.Sink) *Client {
	c := NewClientWithTransport(NewTransport(cfg, logger, sink))
	if cfg.SystemPrompt != "" {
		c.system = cfg.SystemPrompt
	}
	c.params = ParamsFromConfig(cfg)
	return c
}

// NewClientWithTransport creates a client around an existing transport.
func NewClientWithTransport(t Transport) *Client {
	return &Client{transport: t, system: DefaultSystemPrompt}
}

// NewTransport picks the transport for cfg.Endpoint.
func NewTransport(cfg *config.Config, logger *zap.Logger, sink diag.Sink) Transport {
	httpClient := newHTTPClient(cfg.Timeout())
	if Shape(cfg.Endpoint) == ShapeOpenAI {
		return NewOpenAITransport(OpenAIOptions{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.APIURL,
			Model:      cfg.Model,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	}
	return NewHTTPTransport(HTTPOptions{
		URL:        cfg.APIURL,
		APIKey:     cfg.APIKey,
		Shape:      Shape(cfg.Endpoint),
		HTTPClient: httpClient,
		Logger:     logger,
		Sink:       sink,
	})
}

// newHTTPClient bounds the wait for response headers by timeout; dialing
// keeps the default transport's limits. The body is a stream whose lifetime belongs to the request
// context, so there is no overall client timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: tr}
}

// ParamsFromConfig copies the generation parameters out of cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Model:            cfg.Model,
		Temperature:      cfg.Params.Temperature,
		MaxTokens:        cfg.Params.MaxTokens,
		TopP:             cfg.Params.TopP,
		FrequencyPenalty: cfg.Params.FrequencyPenalty,
		PresencePenalty:  cfg.Params.PresencePenalty,
		Stop:             cfg.Params.Stop,
	}
}

// SetSystemPrompt replaces the system prompt; empty disables it.
func (c *Client) SetSystemPrompt(s string) { c.system = s }

// Request assembles the system prompt and the last maxHistory messages of
// history into a request.
func (c *Client) Request(history []Message) Request {
	trimmed := history
	if len(trimmed) > maxHistory {
		trimmed = trimmed[len(trimmed)-maxHistory:]
	}
	msgs := make([]Message, 0, len(trimmed)+1)
	if c.system != "" {
		msgs = append(msgs, Message{Role: "system", Content: c.system})
	}
	msgs = append(msgs, trimmed...)
	return Request{Messages: msgs, Params: c.params}
}

// Stream opens a completion for history.
func (c *Client) Stream(ctx context.Context, history []Message) (<-chan StreamDelta, error) {
	return c.transport.Stream(ctx, c.Request(history))
}

// Ask streams the answer to a single prompt with no prior history.
func (c *Client) Ask(ctx context.Context, prompt string) (<-chan StreamDelta, error) {
	return c.Stream(ctx, []Message{{Role: "user", Content: prompt}})
}
