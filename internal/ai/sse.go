package ai

import (
	"bufio"
	"io"
	"strings"
)

// maxFrameLine bounds a single SSE line; model frames are small but a
// whole-document "message" object can be large.
const maxFrameLine = 1 << 20

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  string
	ID    string
}

// FrameReader splits a text/event-stream body into frames. Multi-line data
// fields are joined with "\n", comment lines are skipped and CRLF line
// endings are accepted.
type FrameReader struct {
	scanner *bufio.Scanner
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameLine)
	return &FrameReader{scanner: scanner}
}

// Next returns the next frame. It returns io.EOF once the body ends; a
// final frame not followed by a blank line is still returned first.
func (fr *FrameReader) Next() (Frame, error) {
	var (
		f       Frame
		data    []string
		started bool
	)
	for fr.scanner.Scan() {
		line := strings.TrimSuffix(fr.scanner.Text(), "\r")
		if line == "" {
			if started {
				f.Data = strings.Join(data, "\n")
				return f, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			f.Event = value
			started = true
		case "data":
			data = append(data, value)
			started = true
		case "id":
			f.ID = value
			started = true
		}
	}
	if err := fr.scanner.Err(); err != nil {
		return Frame{}, err
	}
	if started {
		f.Data = strings.Join(data, "\n")
		return f, nil
	}
	return Frame{}, io.EOF
}
