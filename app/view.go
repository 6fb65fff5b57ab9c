package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/parleyhq/parley/protocol"
	"github.com/parleyhq/parley/session"
	"github.com/parleyhq/parley/transcript"
)

var (
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	resultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	turnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stallStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("202")).Bold(true)
)

// View renders the transcript pane, input line, and footer.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.ctrl.Phase() == session.PhaseAgentRunning {
		b.WriteString(footerStyle.Render("… agent is working (input disabled)"))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

// renderTranscript paints persisted entries followed by the live run's
// classified stream.
func (m *Model) renderTranscript() string {
	var sections []string

	for _, entry := range m.ctrl.Transcript() {
		switch entry.Role {
		case session.RoleUser:
			sections = append(sections, userStyle.Render("> "+entry.Content))
		case session.RoleAgent:
			sections = append(sections, m.markdown(entry.Content))
		}
	}

	if run, ok := m.liveRun(); ok {
		if live := m.renderRun(run); live != "" {
			sections = append(sections, live)
		}
	}

	return strings.Join(sections, "\n\n")
}

// renderRun walks the display plan for one run's messages. Spacing
// decisions map to blank lines; hidden rows and tool-run followers are
// skipped, with collapsed runs summarized on their leader row.
func (m *Model) renderRun(run protocol.Run) string {
	plan := transcript.BuildPlan(m.classifier, run.Messages)

	var b strings.Builder
	for _, i := range plan.VisibleIndices() {
		entry := plan.Entries[i]
		msg := run.Messages[i]

		switch entry.Spacing {
		case transcript.SpacingGroupStart:
			b.WriteString("\n\n")
		case transcript.SpacingContinuation:
			b.WriteString("\n")
		}

		if entry.TurnStart {
			b.WriteString(turnStyle.Render(fmt.Sprintf("── turn %d ", entry.Turn)))
			b.WriteString("\n")
		}

		if members, grouped := plan.ToolRuns.Members[i]; grouped {
			b.WriteString(m.renderToolRun(run, members))
			continue
		}

		switch entry.Category {
		case transcript.CategoryAgentResponse:
			b.WriteString(agentStyle.Render(m.markdown(msg.Text())))
		case transcript.CategoryQuestion:
			b.WriteString(questionStyle.Render("? " + msg.Text()))
		case transcript.CategoryToolCall:
			b.WriteString(toolStyle.Render("⚙ " + toolSummary(msg, m.contentWidth())))
		case transcript.CategoryError:
			b.WriteString(errorStyle.Render("✗ " + msg.Content))
		case transcript.CategoryResult:
			b.WriteString(resultStyle.Render(resultSummary(msg, run)))
		case transcript.CategoryConfig:
			b.WriteString(toolStyle.Render("· " + msg.Content))
		}
	}
	return b.String()
}

// renderToolRun shows a collapsed run of consecutive tool calls as one
// row named after its tools.
func (m *Model) renderToolRun(run protocol.Run, members []int) string {
	names := make([]string, 0, len(members))
	seen := map[string]bool{}
	for _, idx := range members {
		for _, block := range run.Messages[idx].Blocks {
			if tu, ok := block.(protocol.ToolUseBlock); ok && !seen[tu.Name] {
				seen[tu.Name] = true
				names = append(names, tu.Name)
			}
		}
	}
	sort.Strings(names)
	label := fmt.Sprintf("⚙ %d tool calls (%s)", len(members), strings.Join(names, ", "))
	return toolStyle.Render(runewidth.Truncate(label, m.contentWidth(), "…"))
}

func (m *Model) footer() string {
	if m.notice != nil {
		style := noticeStyle
		if m.notice.Level == session.NotifyError {
			style = errorStyle
		}
		return style.Render(m.notice.Message)
	}

	if _, started, ok := m.ctrl.ActiveRun(); ok {
		elapsed := time.Since(started).Round(time.Second)
		if m.stalled() {
			return stallStyle.Render(fmt.Sprintf(
				"⚠ no activity for a while (elapsed %s). ctrl+r retry · ctrl+x cancel", elapsed))
		}
		return footerStyle.Render(fmt.Sprintf("running · %s elapsed · ctrl+x cancel", elapsed))
	}

	return footerStyle.Render(fmt.Sprintf(
		"phase: %s · round %d · enter send · ctrl+d complete step · esc quit",
		m.ctrl.Phase(), m.ctrl.Round()))
}

func (m *Model) contentWidth() int {
	if m.width <= 4 {
		return 76
	}
	return m.width - 4
}

// markdown renders agent text through glamour, falling back to the raw
// text when rendering fails.
func (m *Model) markdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.contentWidth()),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// toolSummary renders one tool call as "Name(primary-arg)", truncated to
// the pane width.
func toolSummary(msg protocol.Message, width int) string {
	for _, block := range msg.Blocks {
		tu, ok := block.(protocol.ToolUseBlock)
		if !ok {
			continue
		}
		arg := primaryInput(tu.Input)
		label := tu.Name
		if arg != "" {
			label = fmt.Sprintf("%s(%s)", tu.Name, arg)
		}
		return runewidth.Truncate(label, width, "…")
	}
	return "tool call"
}

// primaryInput picks the most recognizable argument of a tool input.
func primaryInput(input map[string]interface{}) string {
	for _, key := range []string{"file_path", "path", "command", "pattern", "url", "query"} {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func resultSummary(msg protocol.Message, run protocol.Run) string {
	if run.TotalCostUSD > 0 {
		return fmt.Sprintf("turn complete · $%.4f", run.TotalCostUSD)
	}
	if msg.Content != "" {
		return "turn complete · " + msg.Content
	}
	return "turn complete"
}
