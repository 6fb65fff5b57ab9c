package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/protocol"
	"github.com/parleyhq/parley/runstate"
)

// fakeRuntime records start requests and hands out sequential run IDs.
type fakeRuntime struct {
	starts    []StartRequest
	cancels   []protocol.RunID
	startErr  error
	nextRunID int
}

func (f *fakeRuntime) Start(_ context.Context, req StartRequest) (protocol.RunID, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.starts = append(f.starts, req)
	f.nextRunID++
	return protocol.RunID(fmt.Sprintf("run-%d", f.nextRunID)), nil
}

func (f *fakeRuntime) Cancel(_ context.Context, id protocol.RunID) error {
	f.cancels = append(f.cancels, id)
	return nil
}

// captureNotifier collects notifications.
type captureNotifier struct {
	notes []Notification
}

func (n *captureNotifier) Notify(note Notification) { n.notes = append(n.notes, note) }

func newTestController(t *testing.T, cfg ControllerConfig) (*Controller, *fakeRuntime, *captureNotifier, *Store) {
	t.Helper()
	if cfg.ContextID == "" {
		cfg.ContextID = "ctx1"
	}
	if cfg.StepID == "" {
		cfg.StepID = "step1"
	}
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rt := &fakeRuntime{}
	notifier := &captureNotifier{}
	ctrl := NewController(cfg, rt, runstate.NewRegistry(), store, nil, notifier)
	return ctrl, rt, notifier, store
}

func completedRun(id protocol.RunID, text string) protocol.Run {
	run := protocol.Run{ID: id, Status: protocol.RunCompleted}
	if text != "" {
		run.Messages = []protocol.Message{{Kind: protocol.KindAssistant, Content: text}}
	}
	return run
}

func TestStartTransitionsToRunning(t *testing.T) {
	ctrl, rt, _, _ := newTestController(t, ControllerConfig{Model: "sonnet"})

	require.NoError(t, ctrl.Start(context.Background(), "do the thing"))
	assert.Equal(t, PhaseAgentRunning, ctrl.Phase())
	assert.Equal(t, 1, ctrl.Round())

	require.Len(t, rt.starts, 1)
	assert.Equal(t, "do the thing", rt.starts[0].Prompt)
	assert.Empty(t, rt.starts[0].ResumeSessionID)

	entries := ctrl.Transcript()
	require.Len(t, entries, 1)
	assert.Equal(t, RoleUser, entries[0].Role)
}

func TestStartWhileRunningRejected(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, ControllerConfig{})
	require.NoError(t, ctrl.Start(context.Background(), "first"))

	err := ctrl.Start(context.Background(), "second")
	assert.ErrorIs(t, err, ErrRunInFlight)
}

func TestStartFailureRevertsPhase(t *testing.T) {
	ctrl, rt, notifier, _ := newTestController(t, ControllerConfig{})
	rt.startErr = errors.New("runtime unavailable")

	err := ctrl.Start(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, PhaseNotStarted, ctrl.Phase(), "phase reverts to pre-start value")
	assert.Empty(t, ctrl.Transcript(), "no transcript entry on failed start")

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, NotifyError, notifier.notes[0].Level)
}

func TestResumedStartCarriesSessionIDAndReminder(t *testing.T) {
	ctrl, rt, _, _ := newTestController(t, ControllerConfig{ArtifactDefaultPath: "/tmp/decision.md"})

	require.NoError(t, ctrl.Start(context.Background(), "first"))
	run := completedRun("run-1", "done with pass one")
	run.SessionID = "sess-abc"
	ctrl.OnRunObserved(run)
	require.Equal(t, PhaseAwaitingFeedback, ctrl.Phase())

	require.NoError(t, ctrl.Start(context.Background(), "keep going"))
	require.Len(t, rt.starts, 2)
	assert.Equal(t, "sess-abc", rt.starts[1].ResumeSessionID)
	assert.Contains(t, rt.starts[1].Prompt, "decision artifact")
	assert.Contains(t, rt.starts[1].Prompt, "keep going")
}

func TestOnRunObservedCompletedAppendsOneEntry(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, ControllerConfig{})
	require.NoError(t, ctrl.Start(context.Background(), "go"))

	run := protocol.Run{
		ID:     "run-1",
		Status: protocol.RunCompleted,
		Messages: []protocol.Message{
			{Kind: protocol.KindSystem, Content: "init"},
			{Kind: protocol.KindAssistant, Content: "part one"},
			{Kind: protocol.KindAssistant, Content: "part two"},
			{Kind: protocol.KindResult, Content: "ok"},
		},
	}
	ctrl.OnRunObserved(run)

	entries := ctrl.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, RoleAgent, entries[1].Role)
	assert.Equal(t, "part one\n\npart two", entries[1].Content)
	assert.Equal(t, "run-1", entries[1].RunID)
	assert.Equal(t, PhaseAwaitingFeedback, ctrl.Phase())
}

func TestOnRunObservedIsIdempotentPerRunID(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, ControllerConfig{})
	require.NoError(t, ctrl.Start(context.Background(), "go"))

	run := completedRun("run-1", "answer")
	ctrl.OnRunObserved(run)
	ctrl.OnRunObserved(run)
	ctrl.OnRunObserved(run)

	entries := ctrl.Transcript()
	require.Len(t, entries, 2, "exactly one agent entry despite duplicate terminal events")
}

func TestOnRunObservedEmptyOutputSkipsEntry(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, ControllerConfig{})
	require.NoError(t, ctrl.Start(context.Background(), "go"))

	ctrl.OnRunObserved(completedRun("run-1", ""))

	entries := ctrl.Transcript()
	require.Len(t, entries, 1, "only the user entry remains")
	assert.Equal(t, PhaseAwaitingFeedback, ctrl.Phase())
}

func TestOnRunObservedErrorSynthesizesEntry(t *testing.T) {
	ctrl, _, notifier, _ := newTestController(t, ControllerConfig{})
	require.NoError(t, ctrl.Start(context.Background(), "go"))

	run := protocol.Run{
		ID:     "run-1",
		Status: protocol.RunError,
		Messages: []protocol.Message{
			{Kind: protocol.KindError, Content: "tool crashed"},
		},
	}
	ctrl.OnRunObserved(run)

	entries := ctrl.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, "Error: tool crashed", entries[1].Content)
	assert.Equal(t, PhaseAwaitingFeedback, ctrl.Phase())

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, NotifyError, notifier.notes[0].Level)
}

func TestOnRunObservedErrorWithoutContentUsesGenericMessage(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, ControllerConfig{})
	require.NoError(t, ctrl.Start(context.Background(), "go"))

	ctrl.OnRunObserved(protocol.Run{ID: "run-1", Status: protocol.RunError})

	entries := ctrl.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, "Error: the agent run failed", entries[1].Content)
}

func TestOnRunObservedRunningIsIgnored(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, ControllerConfig{})
	require.NoError(t, ctrl.Start(context.Background(), "go"))

	ctrl.OnRunObserved(protocol.Run{ID: "run-1", Status: protocol.RunRunning})
	assert.Equal(t, PhaseAgentRunning, ctrl.Phase())

	// The same run's eventual terminal status must still be processed.
	ctrl.OnRunObserved(completedRun("run-1", "late answer"))
	assert.Equal(t, PhaseAwaitingFeedback, ctrl.Phase())
}

func TestCompleteStepBlockedWithoutArtifact(t *testing.T) {
	ctrl, _, notifier, store := newTestController(t, ControllerConfig{
		ArtifactOverridePath: filepath.Join(t.TempDir(), "missing-a.md"),
		ArtifactDefaultPath:  filepath.Join(t.TempDir(), "missing-b.md"),
		ArtifactRelPath:      "decision.md",
	})
	require.NoError(t, ctrl.Start(context.Background(), "go"))
	ctrl.OnRunObserved(completedRun("run-1", "claims success"))
	require.Equal(t, PhaseAwaitingFeedback, ctrl.Phase())

	err := ctrl.CompleteStep()
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.Equal(t, PhaseAwaitingFeedback, ctrl.Phase(), "phase unchanged")

	// The persisted record must not show completed.
	stored, loadErr := store.Load("ctx1-step1")
	require.NoError(t, loadErr)
	require.NotNil(t, stored)
	assert.NotEqual(t, string(PhaseCompleted), stored.Phase)

	last := notifier.notes[len(notifier.notes)-1]
	assert.Contains(t, last.Message, "artifact")
}

func TestCompleteStepOverridePathWins(t *testing.T) {
	override := filepath.Join(t.TempDir(), "override.md")
	require.NoError(t, os.WriteFile(override, []byte("decision: ship it"), 0644))

	ctrl, _, _, _ := newTestController(t, ControllerConfig{ArtifactOverridePath: override})
	require.NoError(t, ctrl.Start(context.Background(), "go"))
	ctrl.OnRunObserved(completedRun("run-1", "done"))

	require.NoError(t, ctrl.CompleteStep())
	assert.Equal(t, PhaseCompleted, ctrl.Phase())
}

func TestCompleteStepFallsBackToDefaultPath(t *testing.T) {
	def := filepath.Join(t.TempDir(), "default.md")
	require.NoError(t, os.WriteFile(def, []byte("content"), 0644))

	ctrl, _, _, _ := newTestController(t, ControllerConfig{
		ArtifactOverridePath: filepath.Join(t.TempDir(), "absent.md"),
		ArtifactDefaultPath:  def,
	})
	require.NoError(t, ctrl.Start(context.Background(), "go"))
	ctrl.OnRunObserved(completedRun("run-1", "done"))

	require.NoError(t, ctrl.CompleteStep())
	assert.Equal(t, PhaseCompleted, ctrl.Phase())
}

func TestCompleteStepFallsBackToArtifactStore(t *testing.T) {
	artifacts := NewFSArtifactStore(t.TempDir())
	require.NoError(t, artifacts.SaveArtifact("ctx1", "step1", "decision.md", "stored decision"))

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctrl := NewController(ControllerConfig{
		ContextID:       "ctx1",
		StepID:          "step1",
		ArtifactRelPath: "decision.md",
	}, &fakeRuntime{}, runstate.NewRegistry(), store, artifacts, &captureNotifier{})

	require.NoError(t, ctrl.Start(context.Background(), "go"))
	ctrl.OnRunObserved(completedRun("run-1", "done"))

	require.NoError(t, ctrl.CompleteStep())
	assert.Equal(t, PhaseCompleted, ctrl.Phase())
}

func TestCompleteStepWhileRunningRejected(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, ControllerConfig{})
	require.NoError(t, ctrl.Start(context.Background(), "go"))

	err := ctrl.CompleteStep()
	assert.ErrorIs(t, err, ErrRunInFlight)
}

func TestCancelIsBestEffort(t *testing.T) {
	ctrl, rt, _, _ := newTestController(t, ControllerConfig{})

	ctrl.Cancel(context.Background())
	assert.Empty(t, rt.cancels, "no active run, nothing to cancel")

	require.NoError(t, ctrl.Start(context.Background(), "go"))
	ctrl.Cancel(context.Background())
	require.Len(t, rt.cancels, 1)
}

func TestHandleUpdateReadsRegistry(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	registry := runstate.NewRegistry()
	ctrl := NewController(ControllerConfig{ContextID: "c", StepID: "s"},
		&fakeRuntime{}, registry, store, nil, &captureNotifier{})

	require.NoError(t, ctrl.Start(context.Background(), "go"))

	registry.Put(protocol.Run{ID: "run-1", Status: protocol.RunRunning})
	registry.Append("run-1", protocol.Message{Kind: protocol.KindAssistant, Content: "result text"})
	registry.SetStatus("run-1", protocol.RunCompleted)

	ctrl.HandleUpdate(runstate.Update{RunID: "run-1"})

	assert.Equal(t, PhaseAwaitingFeedback, ctrl.Phase())
	entries := ctrl.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, "result text", entries[1].Content)
}

func TestHandleUpdateIgnoresOtherSessionsRuns(t *testing.T) {
	// Two conversations share one registry; each controller must react
	// only to its own active run.
	registry := runstate.NewRegistry()
	rt := &fakeRuntime{}
	ctrlA := NewController(ControllerConfig{ContextID: "c", StepID: "a"},
		rt, registry, nil, nil, &captureNotifier{})
	ctrlB := NewController(ControllerConfig{ContextID: "c", StepID: "b"},
		rt, registry, nil, nil, &captureNotifier{})

	require.NoError(t, ctrlA.Start(context.Background(), "task a"))
	require.NoError(t, ctrlB.Start(context.Background(), "task b"))
	idA, _, ok := ctrlA.ActiveRun()
	require.True(t, ok)

	registry.Put(protocol.Run{ID: idA, Status: protocol.RunRunning})
	registry.Append(idA, protocol.Message{Kind: protocol.KindAssistant, Content: "a's output"})
	registry.SetStatus(idA, protocol.RunCompleted)

	update := runstate.Update{RunID: idA}
	ctrlA.HandleUpdate(update)
	ctrlB.HandleUpdate(update)

	assert.Equal(t, PhaseAwaitingFeedback, ctrlA.Phase())
	require.Len(t, ctrlA.Transcript(), 2)
	assert.Equal(t, "a's output", ctrlA.Transcript()[1].Content)

	assert.Equal(t, PhaseAgentRunning, ctrlB.Phase(), "b's run is still in flight")
	require.Len(t, ctrlB.Transcript(), 1)
	assert.Equal(t, "task b", ctrlB.Transcript()[0].Content)

	// After b's own run settles, a stale notification for a's run is
	// still a no-op.
	idB, _, ok := ctrlB.ActiveRun()
	require.True(t, ok)
	registry.Put(protocol.Run{ID: idB, Status: protocol.RunRunning})
	registry.SetStatus(idB, protocol.RunCompleted)
	ctrlB.HandleUpdate(runstate.Update{RunID: idB})
	ctrlB.HandleUpdate(update)
	require.Len(t, ctrlB.Transcript(), 1)
}

func TestPersistenceFailureDoesNotBlockTransition(t *testing.T) {
	// A controller without a store still transitions phases.
	ctrl := NewController(ControllerConfig{ContextID: "c", StepID: "s"},
		&fakeRuntime{}, runstate.NewRegistry(), nil, nil, &captureNotifier{})

	require.NoError(t, ctrl.Start(context.Background(), "go"))
	ctrl.OnRunObserved(completedRun("run-1", "text"))
	assert.Equal(t, PhaseAwaitingFeedback, ctrl.Phase())
}
