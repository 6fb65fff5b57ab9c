package app

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parleyhq/parley/protocol"
	"github.com/parleyhq/parley/runstate"
	"github.com/parleyhq/parley/session"
)

// Update handles all TUI messages. Controller methods are only ever
// called from here, preserving the single-threaded contract.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		inputHeight := m.input.Height() + 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight-2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight - 2
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" {
				return m, nil
			}
			if m.ctrl.Phase() == session.PhaseAgentRunning {
				// Input surface is disabled while a run is live.
				return m, nil
			}
			m.input.Reset()
			return m, m.startRun(prompt)
		case "ctrl+d":
			if err := m.ctrl.CompleteStep(); err == nil {
				m.notice = &session.Notification{Level: session.NotifyInfo, Message: "Step completed."}
			}
			return m, nil
		case "ctrl+x":
			// Explicit cancel; also the "cancel" half of the stall prompt.
			m.pendingRetry = false
			m.ctrl.Cancel(m.ctx)
			return m, nil
		case "ctrl+r":
			// The "retry" half of the stall prompt: cancel, then resend
			// the last user prompt once the cancelled run settles.
			if m.stalled() && m.lastPrompt != "" {
				m.pendingRetry = true
				m.ctrl.Cancel(m.ctx)
			}
			return m, nil
		}

	case sendPromptMsg:
		return m, m.startRun(string(msg))

	case runUpdateMsg:
		id, _, active := m.ctrl.ActiveRun()
		mine := active && msg.RunID == id
		if mine {
			m.lastActivity = time.Now()
		}
		m.ctrl.HandleUpdate(runstate.Update(msg))
		if mine {
			if run, ok := m.runs.Get(msg.RunID); ok && run.Status.IsTerminal() {
				retry := m.pendingRetry && run.Status == protocol.RunCancelled
				m.pendingRetry = false
				if retry {
					m.startRun(m.lastPrompt)
				}
			}
		}
		m.refreshTranscript()
		return m, m.waitForUpdate()

	case noticeMsg:
		n := session.Notification(msg)
		m.notice = &n
		return m, m.waitForNotice()

	case tickMsg:
		// Only the footer's elapsed-time indicator depends on the clock.
		return m, tick()
	}

	var cmd tea.Cmd
	if m.ctrl.Phase() != session.PhaseAgentRunning {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) startRun(prompt string) tea.Cmd {
	m.notice = nil
	if err := m.ctrl.Start(m.ctx, prompt); err != nil {
		// The controller already notified; nothing else to do here.
		return nil
	}
	m.lastPrompt = prompt
	m.lastActivity = time.Now()
	m.refreshTranscript()
	return nil
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
