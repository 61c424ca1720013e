package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/matthoffner/wizardcoder-sandbox/internal/ai"
	"github.com/matthoffner/wizardcoder-sandbox/internal/classify"
)

// RenderStream reads tokens from a StreamDelta channel and writes the
// cleaned content to w as it arrives, with code fences stripped. prefix is
// written before the first visible text. It returns the final classified
// chunk, which holds partial content when the stream fails.
func RenderStream(w io.Writer, ch <-chan ai.StreamDelta, prefix string) (classify.Chunk, error) {
	var (
		state classify.State
		chunk classify.Chunk
		first = true
	)
	write := func(c classify.Chunk) {
		chunk = c
		if c.Delta == "" {
			return
		}
		if first {
			fmt.Fprint(w, prefix)
			first = false
		}
		fmt.Fprint(w, c.Delta)
	}

	var streamErr error
	for delta := range ch {
		if delta.Err != nil {
			streamErr = delta.Err
			break
		}
		if delta.Done {
			break
		}
		if delta.Token == "" {
			continue
		}
		c, next := classify.Classify(state, delta.Token)
		state = next
		write(c)
	}
	c, _ := classify.Flush(state)
	write(c)

	if chunk.Content != "" && !strings.HasSuffix(chunk.Content, "\n") {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	return chunk, streamErr
}
