// Package buffer keeps an editable text surface in step with a model's
// streamed output. Streamed text is applied as minimal range edits so the
// cursor and undo history survive; a change of content type rebuilds the
// surface instead. Keystrokes always win over late streamed pushes.
package buffer

import (
	"errors"
	"sync"

	"github.com/matthoffner/wizardcoder-sandbox/internal/classify"
)

var (
	// ErrInvalidEdit is returned for an edit whose range falls outside the text.
	ErrInvalidEdit = errors.New("edit out of range")
	// ErrNothingToUndo is returned by Undo and Redo on an empty stack.
	ErrNothingToUndo = errors.New("nothing to undo")
)

// Surface is the editable text the reconciler drives. Offsets are bytes.
type Surface interface {
	Value() string
	Language() classify.Language
	Cursor() int
	// Apply performs e as a single undo step.
	Apply(e Edit) error
	// Reset replaces the whole model and discards undo history.
	Reset(lang classify.Language, text string)
	UndoDepth() int
}

// Undoer is implemented by surfaces that can step through their history.
type Undoer interface {
	Undo() error
	Redo() error
}

type step struct {
	edit   Edit
	cursor int
}

// Document is an in-memory Surface with undo/redo stacks and a cursor.
// It is safe for concurrent use.
type Document struct {
	mu     sync.RWMutex
	text   string
	lang   classify.Language
	cursor int
	undo   []step
	redo   []step
}

// NewDocument returns a document holding text with the cursor at the end.
func NewDocument(lang classify.Language, text string) *Document {
	return &Document{text: text, lang: lang, cursor: len(text)}
}

func (d *Document) Value() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

func (d *Document) Language() classify.Language {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lang
}

func (d *Document) Cursor() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor
}

// SetCursor moves the cursor, clamped to the text.
func (d *Document) SetCursor(pos int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = max(0, min(pos, len(d.text)))
}

func (d *Document) UndoDepth() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.undo)
}

// RedoDepth returns the number of undone steps that can be redone.
func (d *Document) RedoDepth() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.redo)
}

func (d *Document) Apply(e Edit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := e.validate(len(d.text)); err != nil {
		return err
	}
	d.undo = append(d.undo, step{edit: e.invert(d.text), cursor: d.cursor})
	d.redo = nil
	d.text = e.apply(d.text)
	d.cursor = e.shift(d.cursor)
	return nil
}

func (d *Document) Reset(lang classify.Language, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
	d.lang = lang
	d.cursor = len(text)
	d.undo = nil
	d.redo = nil
}

// Undo reverts the most recent step and restores the cursor it had.
func (d *Document) Undo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swap(&d.undo, &d.redo)
}

// Redo reapplies the most recently undone step.
func (d *Document) Redo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swap(&d.redo, &d.undo)
}

func (d *Document) swap(from, to *[]step) error {
	if len(*from) == 0 {
		return ErrNothingToUndo
	}
	st := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, step{edit: st.edit.invert(d.text), cursor: d.cursor})
	d.text = st.edit.apply(d.text)
	d.cursor = st.cursor
	return nil
}
