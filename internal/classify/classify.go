// Package classify detects what a model is streaming (HTML, a fenced code
// block in some language, or plain prose) and strips markdown fence markers
// so the remaining text can be rendered or edited directly.
//
// Classification is a pure function of (State, delta). Fence state that
// straddles chunk boundaries lives in State, never in package variables, so
// one State per editor surface is all a caller needs to keep.
package classify

import "strings"

const (
	fence = "```"

	styleOpen  = "<style>\n"
	styleClose = "</style>"

	// maxFenceLine bounds how long an unterminated "```tag" line is held
	// back waiting for its newline before it is treated as plain text.
	maxFenceLine = 80
)

// State is the classifier memory carried between calls. The zero value is
// the state at the start of a stream. State is comparable.
type State struct {
	// Kind is the content type of the text classified so far.
	Kind Language
	// InBlock is set while a fenced block is open.
	InBlock bool
	// BlockLang is the language of the open fence.
	BlockLang Language
	// Passthrough marks an open fence whose language was not recognized;
	// its markers are kept in the output.
	Passthrough bool
	// MidLine is set when the last emitted byte was not a newline.
	MidLine bool
	// Decided is set once the current segment's kind is known. Segments
	// start at the beginning of the stream and after every closing fence.
	Decided bool
	// AfterClose is set right after a closing fence. The newline ending
	// the fence line is held until more text follows and dropped at the
	// end of the stream.
	AfterClose bool
	// Pending holds bytes that may be the start of a fence marker.
	Pending string
	// Content is the cleaned text emitted so far.
	Content string
}

// Chunk is the result of classifying one delta.
type Chunk struct {
	Kind          Language
	Content       string
	Delta         string
	InCodeBlock   bool
	BlockLanguage Language
}

// Classify consumes delta and returns the classified result together with
// the state to pass to the next call.
func Classify(prior State, delta string) (Chunk, State) {
	s := prior
	in := s.Pending + delta
	s.Pending = ""

	var out strings.Builder
	for in != "" {
		if s.InBlock {
			in = s.scanBlock(in, &out)
			continue
		}
		var held bool
		in, held = s.scanOutside(in, &out, false)
		if held {
			break
		}
	}
	return s.emit(out.String())
}

// Flush releases anything held back in prior.Pending. Call it once the
// stream has ended; an unterminated fence line is emitted as plain text.
func Flush(prior State) (Chunk, State) {
	s := prior
	in := s.Pending
	s.Pending = ""

	var out strings.Builder
	for in != "" {
		if s.InBlock {
			out.WriteString(in)
			s.MidLine = !strings.HasSuffix(in, "\n")
			break
		}
		in, _ = s.scanOutside(in, &out, true)
	}
	return s.emit(out.String())
}

func (s *State) emit(delta string) (Chunk, State) {
	s.Content += delta
	return Chunk{
		Kind:          s.Kind,
		Content:       s.Content,
		Delta:         delta,
		InCodeBlock:   s.InBlock,
		BlockLanguage: s.BlockLang,
	}, *s
}

// scanBlock handles text inside an open fence and returns what remains
// after a closing marker, or "" when the input was consumed or held.
func (s *State) scanBlock(in string, out *strings.Builder) string {
	i := strings.Index(in, fence)
	if i < 0 {
		keep := trailingBackticks(in)
		// The newline ending the last body line belongs to the closing
		// fence if one follows.
		if keep < len(in) && in[len(in)-keep-1] == '\n' {
			keep++
		}
		body := in[:len(in)-keep]
		out.WriteString(body)
		if body != "" {
			s.MidLine = !strings.HasSuffix(body, "\n")
		}
		s.Pending = in[len(in)-keep:]
		return ""
	}

	body := in[:i]
	switch {
	case s.Passthrough:
		body += fence
	case s.BlockLang == CSS:
		body = strings.TrimSuffix(body, "\n") + styleClose
	default:
		body = strings.TrimSuffix(body, "\n")
	}
	out.WriteString(body)

	s.AfterClose = !s.Passthrough
	s.InBlock = false
	s.Passthrough = false
	s.BlockLang = Unknown
	s.Decided = false
	s.MidLine = true
	return in[i+len(fence):]
}

// scanOutside handles text outside any fence. It consumes at most one line
// and reports whether the remainder was held back in Pending.
func (s *State) scanOutside(in string, out *strings.Builder, final bool) (string, bool) {
	if s.AfterClose {
		if in == "\n" && !final {
			s.Pending = in
			return "", true
		}
		s.AfterClose = false
		if final && in[0] == '\n' {
			s.MidLine = false
			return in[1:], false
		}
	}
	if !s.MidLine && in[0] == '`' {
		if strings.HasPrefix(in, fence) {
			nl := strings.IndexByte(in, '\n')
			if nl >= 0 {
				s.openBlock(in[len(fence):nl], in[:nl+1], out)
				return in[nl+1:], false
			}
			if !final && len(in) <= maxFenceLine {
				s.Pending = in
				return "", true
			}
		} else if !final && len(in) < len(fence) && strings.Trim(in, "`") == "" {
			s.Pending = in
			return "", true
		}
	}

	seg, rest := in, ""
	if nl := strings.IndexByte(in, '\n'); nl >= 0 {
		seg, rest = in[:nl+1], in[nl+1:]
	}
	s.decide(seg)
	out.WriteString(seg)
	s.MidLine = !strings.HasSuffix(seg, "\n")
	return rest, false
}

func (s *State) openBlock(tag, line string, out *strings.Builder) {
	s.InBlock = true
	s.Decided = true
	s.MidLine = false

	lang, ok := lookupFence(tag)
	if !ok {
		s.Passthrough = true
		s.BlockLang = Plaintext
		s.Kind = Plaintext
		out.WriteString(line)
		return
	}

	s.BlockLang = lang
	if lang == CSS {
		out.WriteString(styleOpen)
		// A stylesheet composes into an HTML document already being built.
		if s.Kind == HTML {
			return
		}
	}
	s.Kind = lang
}

// decide fixes the kind of the current segment from its first
// non-whitespace byte.
func (s *State) decide(seg string) {
	if s.Decided {
		return
	}
	t := strings.TrimLeft(seg, " \t\r\n")
	if t == "" {
		return
	}
	s.Decided = true
	if t[0] == '<' {
		s.Kind = HTML
		return
	}
	s.Kind = Plaintext
}

// trailingBackticks counts backticks at the end of s that could begin a
// closing fence, at most len(fence)-1.
func trailingBackticks(s string) int {
	n := 0
	for n < len(fence)-1 && n < len(s) && s[len(s)-1-n] == '`' {
		n++
	}
	return n
}
