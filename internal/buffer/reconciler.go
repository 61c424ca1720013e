package buffer

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/classify"
	"github.com/matthoffner/wizardcoder-sandbox/internal/diag"
	"github.com/matthoffner/wizardcoder-sandbox/internal/logging"
)

var (
	// ErrStalePush means the surface changed since the last streamed update,
	// so the update was dropped to keep the user's edit.
	ErrStalePush = errors.New("stale push dropped")
	// ErrCrossTalk means the update belonged to a session that is no longer
	// authoritative for the surface.
	ErrCrossTalk = errors.New("update from inactive session dropped")
	// ErrNoHistory is returned by Undo and Redo for a surface without undo stacks.
	ErrNoHistory = errors.New("surface has no undo history")
)

// Origin says who caused a Change.
type Origin int

const (
	OriginStream Origin = iota
	OriginUser
	OriginClear
)

func (o Origin) String() string {
	switch o {
	case OriginStream:
		return "stream"
	case OriginUser:
		return "user"
	case OriginClear:
		return "clear"
	}
	return "unknown"
}

// Change describes one update to the surface. Edit is zero when Reset is set.
type Change struct {
	Origin   Origin
	Session  string
	Reset    bool
	Edit     Edit
	Value    string
	Language classify.Language
}

// Reconciler owns a Surface together with the classifier state of the
// session currently streaming into it. All methods are safe for concurrent
// use; listeners run under the reconciler's lock in change order and must
// not call back into it.
type Reconciler struct {
	mu        sync.Mutex
	surface   Surface
	logger    *zap.Logger
	sink      diag.Sink
	session   string
	base      string
	state     classify.State
	pushed    string
	listeners []func(Change)
}

// NewReconciler returns a reconciler driving surface. logger and sink may be nil.
func NewReconciler(surface Surface, logger *zap.Logger, sink diag.Sink) *Reconciler {
	return &Reconciler{
		surface: surface,
		logger:  logging.OrNop(logger),
		sink:    diag.OrNop(sink),
		pushed:  surface.Value(),
	}
}

// OnChange registers fn to be called after every applied change.
func (r *Reconciler) OnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Begin makes sessionID authoritative. The session's output is appended to
// whatever the surface holds now; updates tagged with any other id are
// dropped from here on.
func (r *Reconciler) Begin(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = sessionID
	r.base = r.surface.Value()
	r.pushed = r.base
	r.state = classify.State{}
	r.logger.Debug("session attached", zap.String("session", sessionID), zap.Int("base", len(r.base)))
}

// Active returns the authoritative session id, or "" if none.
func (r *Reconciler) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Detach drops the authoritative session if it is sessionID.
func (r *Reconciler) Detach(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == sessionID {
		r.session = ""
	}
}

// Feed classifies delta in the session's fence state and reconciles the
// result into the surface. The returned chunk reflects the classification
// even when the surface update itself was dropped as stale.
func (r *Reconciler) Feed(sessionID, delta string) (classify.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.guard(sessionID); err != nil {
		return classify.Chunk{}, err
	}
	chunk, next := classify.Classify(r.state, delta)
	r.state = next
	return chunk, r.reconcile(sessionID, chunk)
}

// Finish releases any partial fence held back by the classifier.
func (r *Reconciler) Finish(sessionID string) (classify.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.guard(sessionID); err != nil {
		return classify.Chunk{}, err
	}
	chunk, next := classify.Flush(r.state)
	r.state = next
	return chunk, r.reconcile(sessionID, chunk)
}

func (r *Reconciler) guard(sessionID string) error {
	if sessionID != "" && sessionID == r.session {
		return nil
	}
	r.logger.Debug("dropping update from inactive session",
		zap.String("session", sessionID), zap.String("active", r.session))
	r.sink.Emit(diag.Event{
		Type:    diag.EventCrossTalk,
		Session: sessionID,
		Message: "update from inactive session dropped",
		Fields:  map[string]any{"active": r.session},
		Time:    time.Now(),
	})
	return ErrCrossTalk
}

func (r *Reconciler) reconcile(sessionID string, chunk classify.Chunk) error {
	current := r.surface.Value()
	if current != r.pushed {
		r.logger.Warn("dropping stale push",
			zap.String("session", sessionID),
			zap.Int("surface_len", len(current)),
			zap.Int("pushed_len", len(r.pushed)))
		r.sink.Emit(diag.Event{
			Type:    diag.EventStalePush,
			Session: sessionID,
			Message: "surface edited since last push",
			Time:    time.Now(),
		})
		return ErrStalePush
	}

	target := r.base + chunk.Content
	kind := chunk.Kind
	if kind == classify.Unknown {
		kind = r.surface.Language()
	}

	if kind != r.surface.Language() {
		r.surface.Reset(kind, target)
		r.pushed = target
		r.logger.Debug("surface reset", zap.String("session", sessionID), zap.String("kind", string(kind)))
		r.sink.Emit(diag.Event{
			Type:    diag.EventSurfaceReset,
			Session: sessionID,
			Message: "content type changed",
			Fields:  map[string]any{"kind": string(kind)},
			Time:    time.Now(),
		})
		r.notify(Change{Origin: OriginStream, Session: sessionID, Reset: true, Value: target, Language: kind})
		return nil
	}

	e, ok := MinimalEdit(current, target)
	if !ok {
		return nil
	}
	if err := r.surface.Apply(e); err != nil {
		return err
	}
	r.pushed = target
	r.notify(Change{Origin: OriginStream, Session: sessionID, Edit: e, Value: target, Language: kind})
	return nil
}

// OnUserEdit applies a keystroke-level edit. Until the next Begin, streamed
// updates for the current session no longer match the surface and are dropped.
func (r *Reconciler) OnUserEdit(e Edit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.surface.Apply(e); err != nil {
		return err
	}
	r.notify(Change{Origin: OriginUser, Edit: e, Value: r.surface.Value(), Language: r.surface.Language()})
	return nil
}

// Undo reverts the surface's most recent step and notifies listeners as a
// user edit. It fails with ErrNoHistory if the surface keeps no undo stack.
func (r *Reconciler) Undo() error {
	return r.walkHistory(Undoer.Undo)
}

// Redo reapplies the most recently undone step.
func (r *Reconciler) Redo() error {
	return r.walkHistory(Undoer.Redo)
}

func (r *Reconciler) walkHistory(fn func(Undoer) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.surface.(Undoer)
	if !ok {
		return ErrNoHistory
	}
	before := r.surface.Value()
	if err := fn(u); err != nil {
		return err
	}
	after := r.surface.Value()
	e, ok := MinimalEdit(before, after)
	if !ok {
		return nil
	}
	r.notify(Change{Origin: OriginUser, Edit: e, Value: after, Language: r.surface.Language()})
	return nil
}

// Clear empties the surface and starts the next session from a blank slate.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface.Reset(classify.Plaintext, "")
	r.base = ""
	r.pushed = ""
	r.state = classify.State{}
	r.notify(Change{Origin: OriginClear, Reset: true, Language: classify.Plaintext})
}

// Snapshot returns the surface text and language.
func (r *Reconciler) Snapshot() (string, classify.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surface.Value(), r.surface.Language()
}

func (r *Reconciler) notify(c Change) {
	for _, fn := range r.listeners {
		fn(c)
	}
}
