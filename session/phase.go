package session

// Phase is the conversation state-machine position. Exactly one phase is
// active per conversation at any time.
type Phase string

const (
	PhaseNotStarted       Phase = "not_started"
	PhaseAgentRunning     Phase = "agent_running"
	PhaseAwaitingFeedback Phase = "awaiting_feedback"
	PhaseCompleted        Phase = "completed"
	PhaseError            Phase = "error"
)

// legacyPhases maps phase labels from older persisted formats forward so
// they remain loadable.
var legacyPhases = map[string]Phase{
	"agent_running":     PhaseAwaitingFeedback,
	"summary":           PhaseAwaitingFeedback,
	"follow_up":         PhaseAwaitingFeedback,
	"gate_check":        PhaseAwaitingFeedback,
	"awaiting_feedback": PhaseAwaitingFeedback,
	"completed":         PhaseCompleted,
	"not_started":       PhaseNotStarted,
}

// NormalizePhase maps a stored phase label to its current Phase. A run
// that was mid-flight at persistence time is, on reload, known to no
// longer be running, so agent_running degrades to awaiting_feedback.
// Labels outside the table (including "error") degrade to
// awaiting_feedback when transcript content exists, else not_started.
func NormalizePhase(stored string, hasTranscript bool) Phase {
	if p, ok := legacyPhases[stored]; ok {
		return p
	}
	if hasTranscript {
		return PhaseAwaitingFeedback
	}
	return PhaseNotStarted
}
