// Package preview renders reconciled content as live HTML without flicker.
// Two surfaces alternate: new content loads into the hidden one and is
// shown only once it has finished loading and is still the newest content.
package preview

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/diag"
	"github.com/matthoffner/wizardcoder-sandbox/internal/logging"
)

// Surface is something that can display an HTML document.
type Surface interface {
	// Load starts rendering html and calls done once it has finished. done
	// may be called from any goroutine, including before Load returns.
	Load(html string, done func())
	// Show makes the surface visible or hidden.
	Show(visible bool)
}

// Renderer double-buffers two surfaces. Surfaces are never called while
// the renderer's lock is held.
type Renderer struct {
	mu        sync.Mutex
	surfaces  [2]Surface
	visible   int
	shown     string
	latest    string
	loading   bool
	pending   string
	gen       uint64
	swaps     int
	observers []func(string)

	logger *zap.Logger
	sink   diag.Sink
}

// NewRenderer shows front and hides back. logger and sink may be nil.
func NewRenderer(front, back Surface, logger *zap.Logger, sink diag.Sink) *Renderer {
	front.Show(true)
	back.Show(false)
	return &Renderer{
		surfaces: [2]Surface{front, back},
		logger:   logging.OrNop(logger),
		sink:     diag.OrNop(sink),
	}
}

// OnSwap registers fn to receive the content of each newly visible surface.
func (r *Renderer) OnSwap(fn func(content string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Update requests that content become visible. While a load is in flight
// only the newest request is kept.
func (r *Renderer) Update(content string) {
	r.mu.Lock()
	r.latest = content
	if r.loading || content == r.shown {
		r.mu.Unlock()
		return
	}
	hidden, gen := r.beginLoadLocked(content)
	r.mu.Unlock()

	hidden.Load(content, func() { r.loaded(gen) })
}

func (r *Renderer) beginLoadLocked(content string) (Surface, uint64) {
	r.loading = true
	r.pending = content
	r.gen++
	return r.surfaces[1-r.visible], r.gen
}

func (r *Renderer) loaded(gen uint64) {
	r.mu.Lock()
	if gen != r.gen || !r.loading {
		r.mu.Unlock()
		return
	}
	content := r.pending
	if content != r.latest {
		// Superseded while loading: load the newest content into the same
		// hidden surface instead of showing a stale one.
		if r.latest == r.shown {
			r.loading = false
			r.mu.Unlock()
			return
		}
		next := r.latest
		hidden, g := r.beginLoadLocked(next)
		r.mu.Unlock()
		r.logger.Debug("preview load superseded", zap.Int("bytes", len(next)))
		hidden.Load(next, func() { r.loaded(g) })
		return
	}
	front, back := 1-r.visible, r.visible
	r.mu.Unlock()

	// Shown before the old surface is hidden: some surface is always visible.
	r.surfaces[front].Show(true)
	r.surfaces[back].Show(false)

	r.mu.Lock()
	r.visible = front
	r.shown = content
	r.loading = false
	r.swaps++
	observers := append([]func(string){}, r.observers...)
	next := r.latest
	r.mu.Unlock()

	r.sink.Emit(diag.Event{
		Type:    diag.EventPreviewSwap,
		Message: "preview swapped",
		Fields:  map[string]any{"bytes": len(content), "surface": front},
		Time:    time.Now(),
	})
	for _, fn := range observers {
		fn(content)
	}
	if next != content {
		r.Update(next)
	}
}

// Visible returns the content of the visible surface.
func (r *Renderer) Visible() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown
}

// Swaps returns how many times the surfaces have been swapped.
func (r *Renderer) Swaps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swaps
}

// Pending reports whether a load is in flight.
func (r *Renderer) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Front returns the surface currently shown.
func (r *Renderer) Front() Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaces[r.visible]
}
