// Package session implements the conversation session controller: the
// phase state machine that drives agent runs, persists and resumes
// transcripts, and gates workflow-step completion on artifact existence.
package session

import (
	"context"
	"errors"

	"github.com/parleyhq/parley/protocol"
)

// Role marks which side of the conversation a transcript entry belongs to.
type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// TranscriptEntry is one durable conversation entry. Entries preserve
// chronological append order and are never reordered.
type TranscriptEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	RunID   string `json:"runId,omitempty"`
}

// Conversation is the persisted record of one conversation session.
type Conversation struct {
	Messages  []TranscriptEntry `json:"messages"`
	SessionID string            `json:"sessionId,omitempty"`
	Phase     string            `json:"phase"`
	Round     int               `json:"round"`
}

// StartRequest carries everything the external agent runtime needs to
// start or resume a run.
type StartRequest struct {
	Prompt          string
	Model           string
	WorkingDir      string
	AllowedTools    []string
	MaxTurns        int
	ResumeSessionID string
	ContextID       string
	PhaseLabel      string
	AgentPersona    string
}

// Runtime is the external agent execution runtime. Start issues a run and
// returns immediately; the runtime publishes the live Run record into the
// shared run registry as the stream progresses. Cancel is best-effort:
// the run may already have finished, which is not an error.
type Runtime interface {
	Start(ctx context.Context, req StartRequest) (protocol.RunID, error)
	Cancel(ctx context.Context, id protocol.RunID) error
}

// ArtifactStore is the external persistence store for step artifacts.
// SaveArtifact is fire-and-forget; its failures are swallowed by callers.
type ArtifactStore interface {
	SaveArtifact(contextID, stepID, relativePath, content string) error
	ReadArtifact(contextID, relativePath string) (string, bool)
}

// NotifyLevel distinguishes informational notices from failures.
type NotifyLevel int

const (
	NotifyInfo NotifyLevel = iota
	NotifyError
)

// Notification is a user-visible notice. All user-visible failures flow
// through this one channel; transcript state is never used to signal them.
type Notification struct {
	Level   NotifyLevel
	Message string
}

// Notifier receives user-visible notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify calls the function.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// ErrRunInFlight is returned when a start is attempted while a run is
// already running for the conversation.
var ErrRunInFlight = errors.New("a run is already in flight for this conversation")

// ErrArtifactMissing is returned when step completion is attempted but no
// artifact candidate location has content.
var ErrArtifactMissing = errors.New("required step artifact not found")
