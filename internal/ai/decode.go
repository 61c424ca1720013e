package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrMalformedFrame is returned by DecodeFrame for data it cannot parse.
var ErrMalformedFrame = errors.New("malformed stream frame")

const doneSentinel = "[DONE]"

type choicePayload struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Delta *struct {
		Content string `json:"content"`
	} `json:"delta"`
	Text         *string `json:"text"`
	FinishReason *string `json:"finish_reason"`
}

type framePayload struct {
	Choices []choicePayload `json:"choices"`
}

// DecodeFrame turns one SSE frame into a delta. The data may be the
// "[DONE]" sentinel, a bare JSON string token, or an object whose
// choices[0] carries message.content, delta.content or text plus an
// optional finish_reason. An event named "done" also ends the stream.
func DecodeFrame(f Frame) (StreamDelta, error) {
	data := strings.TrimSpace(f.Data)
	if f.Event == "done" || data == doneSentinel {
		return StreamDelta{Done: true}, nil
	}
	if data == "" {
		return StreamDelta{}, nil
	}

	switch data[0] {
	case '"':
		var tok string
		if err := json.Unmarshal([]byte(data), &tok); err != nil {
			return StreamDelta{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return StreamDelta{Token: tok}, nil
	case '{':
		var p framePayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return StreamDelta{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if len(p.Choices) == 0 {
			return StreamDelta{}, fmt.Errorf("%w: no choices", ErrMalformedFrame)
		}
		c := p.Choices[0]
		var d StreamDelta
		switch {
		case c.Message != nil:
			d.Token = c.Message.Content
		case c.Delta != nil:
			d.Token = c.Delta.Content
		case c.Text != nil:
			d.Token = *c.Text
		}
		if c.FinishReason != nil {
			d.FinishReason = *c.FinishReason
		}
		return d, nil
	}
	return StreamDelta{}, fmt.Errorf("%w: unexpected data %q", ErrMalformedFrame, truncate(data, 64))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
