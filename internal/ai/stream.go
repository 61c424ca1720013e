package ai

// StreamDelta represents a single chunk from a streaming AI response.
type StreamDelta struct {
	// Token is the text fragment. Empty string is valid (heartbeat).
	Token string
	// FinishReason is the model's stop reason when the endpoint reports one.
	FinishReason string
	// Done is true when the stream is complete.
	Done bool
	// Err is non-nil if the stream encountered an error.
	Err error
}

// Collect reads all tokens from a stream channel and returns the
// concatenated result.
func Collect(ch <-chan StreamDelta) (string, error) {
	var result string
	for delta := range ch {
		if delta.Err != nil {
			return result, delta.Err
		}
		result += delta.Token
	}
	return result, nil
}
