package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/protocol"
	"github.com/parleyhq/parley/runstate"
	"github.com/parleyhq/parley/seqgate"
)

// resumeReminder is prepended to prompts of resumed sessions so the agent
// retains critical invariants across process and context boundaries.
const resumeReminder = `Reminder: this resumes an earlier working session for the current step.
Before reporting the step as finished you must write your decision artifact to %q; completion is gated on that file existing.

`

// ControllerConfig describes one conversation's fixed parameters.
type ControllerConfig struct {
	// ContextID identifies the surrounding workflow context; StepID the
	// workflow step this conversation belongs to.
	ContextID string
	StepID    string

	Model        string
	WorkingDir   string
	AllowedTools []string
	MaxTurns     int
	PhaseLabel   string
	AgentPersona string

	// Artifact candidate locations, checked in order by CompleteStep:
	// an override path, then the default path, then the durable artifact
	// store under ArtifactRelPath.
	ArtifactOverridePath string
	ArtifactDefaultPath  string
	ArtifactRelPath      string
}

// Controller drives one conversation session. It is single-threaded and
// cooperative: all methods must be called from the same goroutine (the
// event loop); external calls are issued and reacted to, never awaited.
type Controller struct {
	cfg       ControllerConfig
	runtime   Runtime
	runs      *runstate.Registry
	store     *Store
	artifacts ArtifactStore
	notifier  Notifier

	conv      Conversation
	phase     Phase
	activeRun protocol.RunID
	runStart  time.Time
	processed seqgate.Once[protocol.RunID]
}

// NewController wires a controller. The run registry is passed in
// explicitly; there is no package-level registry. A nil notifier logs
// notifications instead of surfacing them.
func NewController(cfg ControllerConfig, rt Runtime, runs *runstate.Registry, store *Store, artifacts ArtifactStore, notifier Notifier) *Controller {
	if notifier == nil {
		notifier = NotifierFunc(func(n Notification) {
			logging.Infof("notification (level %d): %s", n.Level, n.Message)
		})
	}
	return &Controller{
		cfg:       cfg,
		runtime:   rt,
		runs:      runs,
		store:     store,
		artifacts: artifacts,
		notifier:  notifier,
		phase:     PhaseNotStarted,
		conv:      Conversation{Phase: string(PhaseNotStarted)},
	}
}

// SetNotifier replaces the notification sink. Call before the event loop
// starts; a nil notifier reverts to logging.
func (c *Controller) SetNotifier(n Notifier) {
	if n == nil {
		n = NotifierFunc(func(n Notification) {
			logging.Infof("notification (level %d): %s", n.Level, n.Message)
		})
	}
	c.notifier = n
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// Transcript returns the current transcript entries in append order.
func (c *Controller) Transcript() []TranscriptEntry {
	out := make([]TranscriptEntry, len(c.conv.Messages))
	copy(out, c.conv.Messages)
	return out
}

// Round returns the conversation round counter.
func (c *Controller) Round() int { return c.conv.Round }

// ActiveRun returns the in-flight run ID and its start time, if any.
func (c *Controller) ActiveRun() (protocol.RunID, time.Time, bool) {
	if c.activeRun == "" {
		return "", time.Time{}, false
	}
	return c.activeRun, c.runStart, true
}

// conversationID derives the persistence key for this conversation.
func (c *Controller) conversationID() string {
	return c.cfg.ContextID + "-" + c.cfg.StepID
}

// Start issues an agent run for the given prompt and enters agent_running.
// When the conversation carries a resumption token, the run resumes the
// runtime session and the prompt gains a context-reminder preamble. A
// start failure reverts the phase to its pre-start value, surfaces an
// error notification, and is not retried.
func (c *Controller) Start(ctx context.Context, prompt string) error {
	if c.phase == PhaseAgentRunning {
		return ErrRunInFlight
	}

	req := StartRequest{
		Prompt:          prompt,
		Model:           c.cfg.Model,
		WorkingDir:      c.cfg.WorkingDir,
		AllowedTools:    c.cfg.AllowedTools,
		MaxTurns:        c.cfg.MaxTurns,
		ResumeSessionID: c.conv.SessionID,
		ContextID:       c.cfg.ContextID,
		PhaseLabel:      c.cfg.PhaseLabel,
		AgentPersona:    c.cfg.AgentPersona,
	}
	if req.ResumeSessionID != "" {
		req.Prompt = fmt.Sprintf(resumeReminder, c.artifactTarget()) + prompt
	}

	prev := c.phase
	c.phase = PhaseAgentRunning

	runID, err := c.runtime.Start(ctx, req)
	if err != nil {
		c.phase = prev
		c.notifier.Notify(Notification{Level: NotifyError, Message: fmt.Sprintf("Failed to start agent: %v", err)})
		return fmt.Errorf("start run: %w", err)
	}

	c.activeRun = runID
	c.runStart = time.Now()
	c.conv.Round++
	c.conv.Messages = append(c.conv.Messages, TranscriptEntry{Role: RoleUser, Content: prompt})
	c.persist()
	return nil
}

// Cancel issues a best-effort cancel for the in-flight run. The run may
// already have finished; that is not an error.
func (c *Controller) Cancel(ctx context.Context) {
	if c.activeRun == "" {
		return
	}
	if err := c.runtime.Cancel(ctx, c.activeRun); err != nil {
		logging.Warnf("cancel run %s: %v", c.activeRun, err)
	}
}

// OnRunObserved reacts to the subscribed run's current state. It is
// idempotent per run ID: each terminal run is processed exactly once even
// when the same terminal status is observed repeatedly.
func (c *Controller) OnRunObserved(run protocol.Run) {
	if !run.Status.IsTerminal() {
		return
	}
	if !c.processed.First(run.ID) {
		// Duplicate terminal event; already handled.
		return
	}

	if run.SessionID != "" {
		c.conv.SessionID = run.SessionID
	}
	if c.activeRun == run.ID {
		c.activeRun = ""
	}

	switch run.Status {
	case protocol.RunCompleted:
		if text := run.AssistantText(); text != "" {
			c.conv.Messages = append(c.conv.Messages, TranscriptEntry{
				Role:    RoleAgent,
				Content: text,
				RunID:   string(run.ID),
			})
		}
		c.phase = PhaseAwaitingFeedback
		c.persist()

	case protocol.RunError:
		content := run.ErrorText()
		if content == "" {
			content = "the agent run failed"
		}
		// Whether prior transcript content exists decides the fallback
		// phase, judged before the synthesized entry is appended.
		hadContent := len(c.conv.Messages) > 0
		c.conv.Messages = append(c.conv.Messages, TranscriptEntry{
			Role:    RoleAgent,
			Content: "Error: " + content,
			RunID:   string(run.ID),
		})
		if hadContent {
			c.phase = PhaseAwaitingFeedback
		} else {
			c.phase = PhaseNotStarted
		}
		c.persist()
		c.notifier.Notify(Notification{Level: NotifyError, Message: "Agent run failed: " + content})

	case protocol.RunCancelled:
		// User-initiated; no transcript entry and no failure notice.
		if len(c.conv.Messages) > 0 {
			c.phase = PhaseAwaitingFeedback
		} else {
			c.phase = PhaseNotStarted
		}
		c.persist()
	}
}

// HandleUpdate reacts to a run-registry change notification by reading
// the current run state back and observing it. The registry is shared
// across sessions, so notifications for runs other than this
// conversation's active run are ignored. The controller never polls the
// registry.
func (c *Controller) HandleUpdate(u runstate.Update) {
	if c.activeRun == "" || u.RunID != c.activeRun {
		return
	}
	if run, ok := c.runs.Get(u.RunID); ok {
		c.OnRunObserved(run)
	}
}

// CompleteStep transitions the conversation to completed, but only after
// verifying the required step artifact exists. An agent turn reporting
// success does not guarantee its required side effect actually occurred,
// so the artifact is checked in a fixed fallback order: the override
// path, the default path, then the durable artifact store. The first
// non-empty hit satisfies the check.
func (c *Controller) CompleteStep() error {
	if c.phase == PhaseAgentRunning {
		return ErrRunInFlight
	}

	if _, ok := c.findArtifact(); !ok {
		msg := fmt.Sprintf(
			"No step artifact found at %s. Ask the agent to write its decision artifact explicitly, then complete the step again.",
			c.artifactTarget())
		c.notifier.Notify(Notification{Level: NotifyError, Message: msg})
		return fmt.Errorf("%w: %s", ErrArtifactMissing, c.artifactTarget())
	}

	c.phase = PhaseCompleted
	c.persist()
	return nil
}

// findArtifact walks the candidate locations in order and returns the
// first non-empty content found.
func (c *Controller) findArtifact() (string, bool) {
	for _, path := range []string{c.cfg.ArtifactOverridePath, c.cfg.ArtifactDefaultPath} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err == nil && len(strings.TrimSpace(string(data))) > 0 {
			return string(data), true
		}
	}
	if c.artifacts != nil && c.cfg.ArtifactRelPath != "" {
		if content, ok := c.artifacts.ReadArtifact(c.cfg.ContextID, c.cfg.ArtifactRelPath); ok {
			return content, true
		}
	}
	return "", false
}

// artifactTarget names the location the remediation message points at.
func (c *Controller) artifactTarget() string {
	switch {
	case c.cfg.ArtifactOverridePath != "":
		return c.cfg.ArtifactOverridePath
	case c.cfg.ArtifactDefaultPath != "":
		return c.cfg.ArtifactDefaultPath
	default:
		return c.cfg.ArtifactRelPath
	}
}

// Resume loads the persisted conversation for this controller, if one
// exists. A failed load is treated as no prior session.
func (c *Controller) Resume() {
	if c.store == nil {
		return
	}
	stored, err := c.store.Load(c.conversationID())
	if err != nil {
		logging.Warnf("load conversation %s: %v", c.conversationID(), err)
		return
	}
	if stored == nil {
		return
	}
	c.ResumeFrom(stored)
}

// ResumeFrom restores controller state from a persisted record,
// normalizing legacy phase labels forward. agent_running is never
// restored: a run mid-flight at persistence time is no longer running.
func (c *Controller) ResumeFrom(stored *Conversation) {
	c.conv = *stored
	c.phase = NormalizePhase(stored.Phase, len(stored.Messages) > 0)
	c.conv.Phase = string(c.phase)
	c.activeRun = ""
}

// persist saves the conversation best-effort. Persistence failures are
// logged and swallowed; they never block a phase transition.
func (c *Controller) persist() {
	c.conv.Phase = string(c.phase)
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.conversationID(), &c.conv); err != nil {
		logging.Warnf("persist conversation %s: %v", c.conversationID(), err)
	}
}
