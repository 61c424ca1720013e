package ui

import (
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/matthoffner/wizardcoder-sandbox/internal/buffer"
)

// EditorEcho mirrors streamed surface changes to a terminal. Appends are
// written as they arrive; anything else reprints the whole surface under a
// language header.
type EditorEcho struct {
	mu    sync.Mutex
	w     io.Writer
	last  string
	dirty bool
}

func NewEditorEcho(w io.Writer) *EditorEcho {
	return &EditorEcho{w: w}
}

var headerColor = color.New(color.FgHiBlack)

// OnChange is a buffer change listener.
func (e *EditorEcho) OnChange(c buffer.Change) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.Origin == buffer.OriginUser {
		e.last = c.Value
		return
	}
	if !c.Reset && c.Edit.IsAppend(len(e.last)) && e.last+c.Edit.Text == c.Value {
		io.WriteString(e.w, c.Edit.Text)
		e.last = c.Value
		e.dirty = true
		return
	}
	if e.dirty {
		io.WriteString(e.w, "\n")
	}
	lang := string(c.Language)
	if lang == "" {
		lang = "plaintext"
	}
	headerColor.Fprintf(e.w, "── %s ──\n", lang)
	io.WriteString(e.w, c.Value)
	e.last = c.Value
	e.dirty = c.Value != ""
}

// Break ends the current line if streamed text left it open.
func (e *EditorEcho) Break() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dirty {
		io.WriteString(e.w, "\n")
		e.dirty = false
	}
}
