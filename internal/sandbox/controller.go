// Package sandbox drives the iterate-on-a-prompt loop: it opens one stream
// session per turn, feeds tokens through the buffer reconciler, records each
// settled iteration and, in auto mode, asks the model to improve on its own
// output until stopped.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/ai"
	"github.com/matthoffner/wizardcoder-sandbox/internal/buffer"
	"github.com/matthoffner/wizardcoder-sandbox/internal/classify"
	"github.com/matthoffner/wizardcoder-sandbox/internal/diag"
	"github.com/matthoffner/wizardcoder-sandbox/internal/logging"
)

// DefaultFollowUp is the instruction resubmitted after each settle in auto mode.
const DefaultFollowUp = "create an improved version"

// ErrEmptyPrompt is returned by Submit for blank input.
var ErrEmptyPrompt = errors.New("empty prompt")

// Options configures a Controller. Client and Surface are required.
type Options struct {
	Client    *ai.Client
	Surface   buffer.Surface
	Chat      ChatSink
	ClearMode bool
	AutoMode  bool
	FollowUp  string
	Logger    *zap.Logger
	Sink      diag.Sink
}

// Controller owns the editor surface and at most one active stream
// session. Every session goroutine enters through the controller's mutex
// and is checked against the active session before touching the surface.
type Controller struct {
	mu sync.Mutex

	client *ai.Client
	rec    *buffer.Reconciler
	chat   ChatSink
	logger *zap.Logger
	sink   diag.Sink

	clearMode bool
	autoMode  bool
	followUp  string

	state      State
	idle       chan struct{}
	active     *session
	iteration  int
	records    []IterationRecord
	transcript []ChatMessage
	ordinal    int
	onEnd      []func(SessionSummary)

	wg sync.WaitGroup
}

type session struct {
	id      string
	prompt  string
	auto    bool
	parent  context.Context
	cancel  context.CancelFunc
	started time.Time

	status     Status
	content    string
	lang       classify.Language
	chunks     int
	bytes      int
	firstToken time.Duration
	err        error
}

// New returns an idle controller. The transcript starts with the welcome message.
func New(opts Options) *Controller {
	logger := logging.OrNop(opts.Logger)
	sink := diag.OrNop(opts.Sink)
	c := &Controller{
		client:    opts.Client,
		rec:       buffer.NewReconciler(opts.Surface, logger, sink),
		chat:      opts.Chat,
		logger:    logger,
		sink:      sink,
		clearMode: opts.ClearMode,
		autoMode:  opts.AutoMode,
		followUp:  opts.FollowUp,
		idle:      make(chan struct{}),
	}
	if c.followUp == "" {
		c.followUp = DefaultFollowUp
	}
	close(c.idle)
	c.appendChatLocked(RoleSystem, WelcomeMessage)
	return c
}

// Submit starts a new turn for text. A turn already streaming is cancelled
// first; its partial output stays on the surface.
func (c *Controller) Submit(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyPrompt
	}
	c.mu.Lock()
	ends := c.cancelActiveLocked()
	c.appendChatLocked(RoleUser, text)
	c.startLocked(ctx, text, false)
	c.mu.Unlock()

	c.fireEnd(ends)
	return nil
}

// Stop cancels the active session. It is a no-op when nothing is streaming.
func (c *Controller) Stop() {
	c.mu.Lock()
	ends := c.cancelActiveLocked()
	if ends != nil {
		c.setStateLocked(StateIdle)
	}
	c.mu.Unlock()
	c.fireEnd(ends)
}

// Close stops any active session and waits for session goroutines to exit.
func (c *Controller) Close() {
	c.Stop()
	c.wg.Wait()
}

// WaitIdle blocks until the controller is idle or ctx is done.
func (c *Controller) WaitIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state == StateIdle {
			c.mu.Unlock()
			return nil
		}
		ch := c.idle
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) cancelActiveLocked() []SessionSummary {
	s := c.active
	if s == nil {
		return nil
	}
	s.cancel()
	s.status = StatusCancelled
	c.rec.Detach(s.id)
	c.active = nil
	c.setStateLocked(StateCancelled)
	c.logger.Debug("session cancelled", zap.String("session", s.id), zap.Int("chunks", s.chunks))
	return []SessionSummary{c.summaryLocked(s)}
}

// startLocked opens a session. The transport is dialled from the session
// goroutine so the lock is never held across network I/O.
func (c *Controller) startLocked(parent context.Context, prompt string, auto bool) {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:      uuid.NewString(),
		prompt:  prompt,
		auto:    auto,
		parent:  parent,
		cancel:  cancel,
		started: time.Now(),
		status:  StatusPending,
	}
	history := c.historyLocked(prompt)
	c.active = s
	c.rec.Begin(s.id)
	c.setStateLocked(StateStreaming)
	c.logger.Debug("session started",
		zap.String("session", s.id), zap.Int("iteration", c.iteration), zap.Bool("auto", auto))

	c.wg.Add(1)
	go c.run(ctx, s, history)
}

// historyLocked replays settled turns as user/assistant pairs ahead of prompt.
func (c *Controller) historyLocked(prompt string) []ai.Message {
	msgs := make([]ai.Message, 0, 2*len(c.records)+1)
	for _, r := range c.records {
		msgs = append(msgs,
			ai.Message{Role: "user", Content: r.Prompt},
			ai.Message{Role: "assistant", Content: r.Content})
	}
	return append(msgs, ai.Message{Role: "user", Content: prompt})
}

func (c *Controller) run(ctx context.Context, s *session, history []ai.Message) {
	defer c.wg.Done()
	defer s.cancel()

	ch, err := c.client.Stream(ctx, history)
	if err != nil {
		c.fail(s, err)
		return
	}
	c.mark(s, StatusStreaming)

	for d := range ch {
		if d.Err != nil {
			c.fail(s, d.Err)
			return
		}
		if d.Token != "" {
			c.feed(s, d.Token)
		}
		if d.Done {
			c.settle(s)
			return
		}
	}
	if ctx.Err() == nil {
		// Channel closed without a sentinel.
		c.settle(s)
	}
}

func (c *Controller) mark(s *session, st Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == s {
		s.status = st
	}
}

func (c *Controller) feed(s *session, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The reconciler drops tokens from sessions that are no longer active.
	chunk, err := c.rec.Feed(s.id, token)
	if errors.Is(err, buffer.ErrCrossTalk) {
		return
	}
	if s.chunks == 0 {
		s.firstToken = time.Since(s.started)
	}
	s.chunks++
	s.bytes += len(token)
	s.content = chunk.Content
	s.lang = chunk.Kind
	if err != nil && !errors.Is(err, buffer.ErrStalePush) {
		c.logger.Warn("reconcile failed", zap.String("session", s.id), zap.Error(err))
	}
}

func (c *Controller) settle(s *session) {
	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return
	}

	chunk, err := c.rec.Finish(s.id)
	if err == nil || errors.Is(err, buffer.ErrStalePush) {
		s.content = chunk.Content
		s.lang = chunk.Kind
	}
	s.status = StatusDone

	rec := IterationRecord{
		Index:     c.iteration,
		Prompt:    s.prompt,
		Content:   s.content,
		Language:  s.lang,
		Timestamp: time.Now(),
	}
	c.records = append(c.records, rec)
	c.iteration++
	c.appendChatLocked(RoleWizard, fmt.Sprintf("v%d", c.iteration))

	c.rec.Detach(s.id)
	c.active = nil
	c.setStateLocked(StateSettled)
	c.sink.Emit(diag.Event{
		Type:    diag.EventSettled,
		Session: s.id,
		Message: "iteration settled",
		Fields:  map[string]any{"iteration": c.iteration, "language": string(s.lang), "bytes": len(s.content)},
		Time:    rec.Timestamp,
	})
	c.logger.Info("iteration settled",
		zap.String("session", s.id), zap.Int("iteration", c.iteration), zap.String("kind", string(s.lang)))
	ends := []SessionSummary{c.summaryLocked(s)}

	// Clear happens after the record captured the output, and before any
	// automatic follow-up starts.
	if c.clearMode {
		c.rec.Clear()
	}
	if c.autoMode && s.parent.Err() == nil {
		c.appendChatLocked(RoleUser, c.followUp)
		c.startLocked(s.parent, c.followUp, true)
	} else {
		c.setStateLocked(StateIdle)
	}
	c.mu.Unlock()

	c.fireEnd(ends)
}

func (c *Controller) fail(s *session, err error) {
	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return
	}
	s.status = StatusErrored
	s.err = err
	c.rec.Detach(s.id)
	c.active = nil
	c.setStateLocked(StateErrored)
	c.sink.Emit(diag.Event{
		Type:    diag.EventStreamError,
		Session: s.id,
		Message: "stream failed",
		Fields:  map[string]any{"error": err.Error()},
		Time:    time.Now(),
	})
	c.logger.Warn("stream failed", zap.String("session", s.id), zap.Error(err))
	c.appendChatLocked(RoleSystem, "error: "+err.Error())
	ends := []SessionSummary{c.summaryLocked(s)}
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	c.fireEnd(ends)
}

func (c *Controller) setStateLocked(st State) {
	if st == c.state {
		return
	}
	prev := c.state
	c.state = st
	switch {
	case prev == StateIdle:
		c.idle = make(chan struct{})
	case st == StateIdle:
		close(c.idle)
	}
	c.sink.Emit(diag.Event{
		Type:    diag.EventStateChange,
		Message: st.String(),
		Fields:  map[string]any{"from": prev.String(), "to": st.String()},
		Time:    time.Now(),
	})
}

func (c *Controller) appendChatLocked(role Role, content string) {
	msg := ChatMessage{Ordinal: c.ordinal, Role: role, Content: content, Time: time.Now()}
	c.ordinal++
	c.transcript = append(c.transcript, msg)
	if c.chat != nil {
		c.chat.Append(msg)
	}
}

func (c *Controller) summaryLocked(s *session) SessionSummary {
	sum := SessionSummary{
		ID:         s.id,
		Prompt:     s.prompt,
		Auto:       s.auto,
		Status:     s.status,
		Language:   s.lang,
		Iteration:  c.iteration,
		Chunks:     s.chunks,
		Bytes:      s.bytes,
		FirstToken: s.firstToken,
		Duration:   time.Since(s.started),
		Started:    s.started,
	}
	if s.err != nil {
		sum.Err = s.err.Error()
	}
	return sum
}

func (c *Controller) fireEnd(ends []SessionSummary) {
	if len(ends) == 0 {
		return
	}
	c.mu.Lock()
	hooks := append([]func(SessionSummary){}, c.onEnd...)
	c.mu.Unlock()
	for _, sum := range ends {
		for _, fn := range hooks {
			fn(sum)
		}
	}
}

// OnSessionEnd registers fn to run, outside the controller lock, whenever
// a session settles, errors or is cancelled.
func (c *Controller) OnSessionEnd(fn func(SessionSummary)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnd = append(c.onEnd, fn)
}

// OnChange registers a listener for surface changes. It runs under the
// controller lock and must not call back into the controller.
func (c *Controller) OnChange(fn func(buffer.Change)) {
	c.rec.OnChange(fn)
}

// Edit applies a user edit to the surface. Streamed output for the current
// session stops being applied once the surface diverges.
func (c *Controller) Edit(e buffer.Edit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.OnUserEdit(e)
}

// Undo reverts the last surface step. Like Edit, it counts as a user change.
func (c *Controller) Undo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Undo()
}

// Redo reapplies the last undone surface step.
func (c *Controller) Redo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Redo()
}

// Content returns the surface text and language.
func (c *Controller) Content() (string, classify.Language) {
	return c.rec.Snapshot()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Iteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iteration
}

// ActiveSession returns the id of the streaming session, or "".
func (c *Controller) ActiveSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.id
}

// Records returns the settled iterations in order.
func (c *Controller) Records() []IterationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]IterationRecord(nil), c.records...)
}

// Transcript returns the chat messages in order.
func (c *Controller) Transcript() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatMessage(nil), c.transcript...)
}

// ClearTranscript empties the chat transcript. Ordinals keep increasing.
func (c *Controller) ClearTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = nil
}

// Modes reports whether clear and auto mode are on.
func (c *Controller) Modes() (clearMode, autoMode bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearMode, c.autoMode
}

// SetClearMode toggles clearing the surface at each settle.
func (c *Controller) SetClearMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearMode = on
}

// SetAutoMode toggles automatic follow-ups. Turning it off lets the
// current turn finish without chaining another.
func (c *Controller) SetAutoMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoMode = on
}
