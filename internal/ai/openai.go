package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/logging"
)

// OpenAITransport streams chat completions from an OpenAI-compatible API.
type OpenAITransport struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// OpenAIOptions configures an OpenAITransport. BaseURL may point at any
// compatible server; the key may be empty for servers that do not check it.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewOpenAITransport builds the go-openai client for opts.
func NewOpenAITransport(opts OpenAIOptions) *OpenAITransport {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = baseURL(opts.BaseURL)
	}
	if opts.HTTPClient != nil {
		config.HTTPClient = opts.HTTPClient
	} else {
		config.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAITransport{
		client: openai.NewClientWithConfig(config),
		model:  opts.Model,
		logger: logging.OrNop(opts.Logger),
	}
}

// baseURL accepts either an API root or a full chat completions URL.
func baseURL(u string) string {
	u = strings.TrimSuffix(u, "/")
	return strings.TrimSuffix(u, "/chat/completions")
}

// Stream implements Transport.
func (o *OpenAITransport) Stream(ctx context.Context, req Request) (<-chan StreamDelta, error) {
	msgs := req.Messages
	if len(msgs) == 0 && req.Prompt != "" {
		msgs = []Message{{Role: "user", Content: req.Prompt}}
	}
	in := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		in = append(in, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	model := req.Params.Model
	if model == "" {
		model = o.model
	}
	creq := openai.ChatCompletionRequest{
		Model:            model,
		Messages:         in,
		Stream:           true,
		MaxTokens:        req.Params.MaxTokens,
		FrequencyPenalty: float32(req.Params.FrequencyPenalty),
		PresencePenalty:  float32(req.Params.PresencePenalty),
		Stop:             req.Params.Stop,
	}
	if req.Params.Temperature != nil {
		creq.Temperature = float32(*req.Params.Temperature)
	}
	if req.Params.TopP != nil {
		creq.TopP = float32(*req.Params.TopP)
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w (status %d): %s", ErrStatus, apiErr.HTTPStatusCode, apiErr.Message)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return nil, fmt.Errorf("%w (status %d): %v", ErrStatus, reqErr.HTTPStatusCode, reqErr.Err)
		}
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	o.logger.Debug("openai stream opened", zap.String("model", model))

	ch := make(chan StreamDelta, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(d StreamDelta) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- d:
				return true
			}
		}
		for {
			resp, err := stream.Recv()
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				send(StreamDelta{Done: true})
				return
			}
			if err != nil {
				send(StreamDelta{Err: fmt.Errorf("stream interrupted: %w", err)})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			c := resp.Choices[0]
			d := StreamDelta{Token: c.Delta.Content, FinishReason: string(c.FinishReason)}
			if d.Token == "" && d.FinishReason == "" {
				continue
			}
			if !send(d) {
				return
			}
		}
	}()
	return ch, nil
}
