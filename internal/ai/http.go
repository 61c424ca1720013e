package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/diag"
	"github.com/matthoffner/wizardcoder-sandbox/internal/logging"
)

// ErrStatus wraps non-2xx responses from the completion endpoint.
var ErrStatus = errors.New("completion endpoint error")

// Shape selects the request body layout.
type Shape string

const (
	// ShapeMessages posts {messages: [...], ...params}.
	ShapeMessages Shape = "messages"
	// ShapePrompt posts {prompt: "...", ...params}.
	ShapePrompt Shape = "prompt"
	// ShapeOpenAI uses the OpenAI chat completions client.
	ShapeOpenAI Shape = "openai"
)

const (
	// DefaultURL is the hosted WizardCoder endpoint.
	DefaultURL = "https://matthoffner-wizardcoder-ggml.hf.space/v0/chat/completions"

	defaultTimeout = 5 * time.Minute
	errBodyLimit   = 512
)

// HTTPTransport streams completions from an SSE endpoint over plain HTTP.
type HTTPTransport struct {
	url        string
	apiKey     string
	shape      Shape
	httpClient *http.Client
	logger     *zap.Logger
	sink       diag.Sink
}

// HTTPOptions configures an HTTPTransport. Zero values select defaults.
type HTTPOptions struct {
	URL        string
	APIKey     string
	Shape      Shape
	HTTPClient *http.Client
	Logger     *zap.Logger
	Sink       diag.Sink
}

// NewHTTPTransport returns a transport for opts.URL.
func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	t := &HTTPTransport{
		url:        opts.URL,
		apiKey:     opts.APIKey,
		shape:      opts.Shape,
		httpClient: opts.HTTPClient,
		logger:     logging.OrNop(opts.Logger),
		sink:       diag.OrNop(opts.Sink),
	}
	if t.url == "" {
		t.url = DefaultURL
	}
	if t.shape == "" {
		t.shape = ShapeMessages
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return t
}

// URL returns the endpoint the transport posts to.
func (t *HTTPTransport) URL() string { return t.url }

func (t *HTTPTransport) body(req Request) ([]byte, error) {
	// Params are flattened into the top level of the body.
	raw, err := json.Marshal(req.Params)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if t.shape == ShapePrompt {
		fields["prompt"] = req.PromptText()
	} else {
		msgs := req.Messages
		if len(msgs) == 0 && req.Prompt != "" {
			msgs = []Message{{Role: "user", Content: req.Prompt}}
		}
		fields["messages"] = msgs
	}
	return json.Marshal(fields)
}

// Stream posts req and returns the decoded token stream. A non-2xx status
// is returned as an error wrapping ErrStatus. Malformed frames are reported
// to the diagnostic sink and skipped.
func (t *HTTPTransport) Stream(ctx context.Context, req Request) (<-chan StreamDelta, error) {
	body, err := t.body(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("could not reach %s: %w", t.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return nil, fmt.Errorf("%w (status %d): %s", ErrStatus, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	t.logger.Debug("stream opened", zap.String("url", t.url), zap.String("shape", string(t.shape)))

	ch := make(chan StreamDelta, 32)
	go t.pump(ctx, resp.Body, ch)
	return ch, nil
}

func (t *HTTPTransport) pump(ctx context.Context, body io.ReadCloser, ch chan<- StreamDelta) {
	defer close(ch)
	defer body.Close()

	send := func(d StreamDelta) bool {
		select {
		case <-ctx.Done():
			return false
		case ch <- d:
			return true
		}
	}

	fr := NewFrameReader(body)
	for {
		frame, err := fr.Next()
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			// A clean end of body without a sentinel counts as completion.
			send(StreamDelta{Done: true})
			return
		}
		if err != nil {
			t.sink.Emit(diag.Event{
				Type:    diag.EventStreamError,
				Message: "stream read failed",
				Fields:  map[string]any{"error": err.Error()},
				Time:    time.Now(),
			})
			send(StreamDelta{Err: fmt.Errorf("stream interrupted: %w", err)})
			return
		}

		delta, err := DecodeFrame(frame)
		if err != nil {
			t.logger.Debug("skipping malformed frame", zap.Error(err))
			t.sink.Emit(diag.Event{
				Type:    diag.EventMalformedFrame,
				Message: "malformed frame skipped",
				Fields:  map[string]any{"error": err.Error(), "data": truncate(frame.Data, 128)},
				Time:    time.Now(),
			})
			continue
		}
		if delta.Token == "" && delta.FinishReason == "" && !delta.Done {
			continue
		}
		if !send(delta) || delta.Done {
			return
		}
	}
}
