package protocol

import "time"

// RunStatus is the lifecycle state of one agent execution attempt.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
	RunCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status is final. A Run is never mutated
// after its terminal status is first observed.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunError || s == RunCancelled
}

// RunID identifies one agent execution attempt.
type RunID string

// Run is one agent execution attempt: an append-only message stream plus
// run-level metadata published by the runtime as the stream progresses.
type Run struct {
	StartTime    time.Time
	EndTime      *time.Time
	ID           RunID
	SessionID    string // resumption token, may arrive mid-stream
	Model        string
	Status       RunStatus
	Messages     []Message
	Usage        Usage
	TotalCostUSD float64
}

// Clone returns a copy with its own message slice, safe to hand across
// goroutine boundaries. Messages themselves are immutable.
func (r *Run) Clone() Run {
	cp := *r
	cp.Messages = make([]Message, len(r.Messages))
	copy(cp.Messages, r.Messages)
	if r.EndTime != nil {
		t := *r.EndTime
		cp.EndTime = &t
	}
	return cp
}

// AssistantText concatenates the text of all assistant-kind messages in
// stream order.
func (r *Run) AssistantText() string {
	var out string
	for _, m := range r.Messages {
		if m.Kind != KindAssistant {
			continue
		}
		if t := m.Text(); t != "" {
			if out != "" {
				out += "\n\n"
			}
			out += t
		}
	}
	return out
}

// ErrorText returns the content of the first error-kind message, if any.
func (r *Run) ErrorText() string {
	for _, m := range r.Messages {
		if m.Kind == KindError && m.Content != "" {
			return m.Content
		}
	}
	return ""
}
