package ai

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDecodeFrame(t *testing.T) {
	cases := []struct {
		name   string
		frame  Frame
		token  string
		finish string
		done   bool
	}{
		{"bare string", Frame{Data: `"const "`}, "const ", "", false},
		{"escaped string", Frame{Data: `"a\nb"`}, "a\nb", "", false},
		{"message content", Frame{Data: `{"choices":[{"message":{"content":"<div>"},"finish_reason":null}]}`}, "<div>", "", false},
		{"delta content", Frame{Data: `{"choices":[{"delta":{"content":"x"},"finish_reason":"stop"}]}`}, "x", "stop", false},
		{"completion text", Frame{Data: `{"choices":[{"text":"y"}]}`}, "y", "", false},
		{"done sentinel", Frame{Data: "[DONE]"}, "", "", true},
		{"done event", Frame{Event: "done", Data: "anything"}, "", "", true},
		{"empty data", Frame{Data: ""}, "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := DecodeFrame(tc.frame)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Token != tc.token || d.FinishReason != tc.finish || d.Done != tc.done {
				t.Errorf("got %+v", d)
			}
		})
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	for _, data := range []string{`{"choices":[`, `{"choices":[]}`, `"unterminated`, `garbage`, `42`} {
		if _, err := DecodeFrame(Frame{Data: data}); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("%q: expected ErrMalformedFrame, got %v", data, err)
		}
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"ab€cd", 3, "ab..."},
		{"ab€cd", 4, "ab..."},
		{"ab€cd", 5, "ab€..."},
	}
	for _, tc := range cases {
		got := truncate(tc.in, tc.max)
		if got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tc.in, tc.max)
		}
	}
}

func TestDecodeFrame_MalformedErrorIsValidUTF8(t *testing.T) {
	_, err := DecodeFrame(Frame{Data: "x" + strings.Repeat("é", 40)})
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	if !utf8.ValidString(err.Error()) {
		t.Errorf("error message is not valid UTF-8: %q", err.Error())
	}
}
