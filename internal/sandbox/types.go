package sandbox

import (
	"time"

	"github.com/matthoffner/wizardcoder-sandbox/internal/classify"
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateSettled
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateSettled:
		return "settled"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Role identifies who wrote a chat message.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
	RoleWizard Role = "wizard"
)

// WelcomeMessage opens every transcript.
const WelcomeMessage = "🪄 Welcome to WizardCodeSandbox 🪄"

// ChatMessage is one transcript entry. Ordinal increases by one per message.
type ChatMessage struct {
	Ordinal int
	Role    Role
	Content string
	Time    time.Time
}

// ChatSink receives transcript messages as they are appended.
type ChatSink interface {
	Append(ChatMessage)
}

// IterationRecord is the settled output of one turn.
type IterationRecord struct {
	Index     int
	Prompt    string
	Content   string
	Language  classify.Language
	Timestamp time.Time
}

// Status is a stream session's outcome.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusErrored   Status = "errored"
)

// SessionSummary describes a finished session.
type SessionSummary struct {
	ID         string
	Prompt     string
	Auto       bool
	Status     Status
	Language   classify.Language
	Iteration  int
	Chunks     int
	Bytes      int
	FirstToken time.Duration
	Duration   time.Duration
	Err        string
	Started    time.Time
}
