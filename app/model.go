// Package app provides the conversation TUI: a transcript pane driven by
// the classification pipeline and an input line driving the session
// controller.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parleyhq/parley/protocol"
	"github.com/parleyhq/parley/runstate"
	"github.com/parleyhq/parley/session"
	"github.com/parleyhq/parley/transcript"
)

// Options configures the TUI.
type Options struct {
	// AutoPrompt, when set, is sent as the first prompt on startup
	// (used by `parley view` to kick off a replay).
	AutoPrompt string
	// StallAfter is how long a silent run may go before the footer
	// offers retry-or-cancel. No automatic action is ever taken.
	StallAfter time.Duration
}

// Model is the root bubbletea model.
type Model struct {
	ctrl       *session.Controller
	runs       *runstate.Registry
	updates    <-chan runstate.Update
	notices    chan session.Notification
	classifier transcript.Classifier

	viewport viewport.Model
	input    textarea.Model

	width  int
	height int
	ready  bool

	// lastActivity is when the live run last produced a message.
	lastActivity time.Time
	stallAfter   time.Duration
	notice       *session.Notification
	autoPrompt   string

	// lastPrompt is the most recently started prompt; pendingRetry marks
	// a stall retry in flight: cancel first, resend lastPrompt once the
	// cancelled run's terminal state is observed.
	lastPrompt   string
	pendingRetry bool

	ctx context.Context
}

// runUpdateMsg carries one run-registry notification into the update loop.
type runUpdateMsg runstate.Update

// noticeMsg carries a controller notification into the update loop.
type noticeMsg session.Notification

// tickMsg drives the elapsed-time indicator while a run is live.
type tickMsg time.Time

// New builds the TUI model. The notices channel returned alongside must
// be installed as the controller's notifier before the program starts.
func New(ctx context.Context, ctrl *session.Controller, runs *runstate.Registry, opts Options) (*Model, chan session.Notification) {
	input := textarea.New()
	input.Placeholder = "Message the agent (enter to send, esc to quit)"
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	if opts.StallAfter <= 0 {
		opts.StallAfter = 90 * time.Second
	}

	notices := make(chan session.Notification, 8)
	return &Model{
		ctrl:       ctrl,
		runs:       runs,
		updates:    runs.Subscribe(),
		notices:    notices,
		input:      input,
		stallAfter: opts.StallAfter,
		autoPrompt: opts.AutoPrompt,
		ctx:        ctx,
	}, notices
}

// Notifier returns a session.Notifier that feeds this model's notice
// channel without blocking the controller.
func Notifier(notices chan session.Notification) session.Notifier {
	return session.NotifierFunc(func(n session.Notification) {
		select {
		case notices <- n:
		default:
		}
	})
}

// Init starts the update pumps.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForUpdate(), m.waitForNotice(), tick()}
	if m.autoPrompt != "" {
		prompt := m.autoPrompt
		m.autoPrompt = ""
		cmds = append(cmds, func() tea.Msg { return sendPromptMsg(prompt) })
	}
	return tea.Batch(cmds...)
}

// sendPromptMsg asks the update loop to start a run with the prompt.
type sendPromptMsg string

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return nil
		}
		return runUpdateMsg(u)
	}
}

func (m *Model) waitForNotice() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-m.notices
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// liveRun returns the active run's current snapshot, if one is in flight.
func (m *Model) liveRun() (protocol.Run, bool) {
	id, _, ok := m.ctrl.ActiveRun()
	if !ok {
		return protocol.Run{}, false
	}
	return m.runs.Get(id)
}

// stalled reports whether the live run has been silent beyond the stall
// threshold.
func (m *Model) stalled() bool {
	_, started, ok := m.ctrl.ActiveRun()
	if !ok {
		return false
	}
	last := m.lastActivity
	if last.IsZero() {
		last = started
	}
	return time.Since(last) > m.stallAfter
}
