// Package transcript turns a raw agent message stream into display
// decisions: a semantic category per message, turn numbering, visual
// spacing, and collapsed tool-call runs. Everything here is pure and
// deterministic; no package function performs I/O.
package transcript

import (
	"strings"

	"github.com/parleyhq/parley/protocol"
)

// Category is the semantic classification of a single message. It is
// derived, never stored: a pure function of the message (plus, for
// question detection, its text content).
type Category string

const (
	CategoryAgentResponse Category = "agent_response"
	CategoryToolCall      Category = "tool_call"
	CategoryQuestion      Category = "question"
	CategoryResult        Category = "result"
	CategoryError         Category = "error"
	CategoryConfig        Category = "config"
	CategoryStatus        Category = "status"
)

// IsAssistantFamily reports whether the category belongs to the agent's
// side of the conversation for grouping purposes.
func (c Category) IsAssistantFamily() bool {
	return c == CategoryAgentResponse || c == CategoryToolCall || c == CategoryQuestion
}

// ResponseShape is a structured response form recognized by an external
// parser (e.g. the agent emitting a follow-up question or a gate check).
type ResponseShape string

const (
	ShapeFollowUp  ResponseShape = "follow_up"
	ShapeGateCheck ResponseShape = "gate_check"
)

// ShapeParser recognizes structured response shapes in agent text. Parse
// returns ok=false when the text has no recognizable shape; the classifier
// then falls back to its trailing-question heuristic.
type ShapeParser interface {
	Parse(text string) (ResponseShape, bool)
}

// Classifier assigns categories to messages. The zero value classifies
// without a shape parser, relying on the heuristic alone.
type Classifier struct {
	Shapes ShapeParser
}

// Classify returns the category for one message.
func (c Classifier) Classify(msg protocol.Message) Category {
	switch msg.Kind {
	case protocol.KindConfig:
		return CategoryConfig
	case protocol.KindSystem:
		return CategoryStatus
	case protocol.KindError:
		return CategoryError
	case protocol.KindResult:
		return CategoryResult
	case protocol.KindAssistant:
		if msg.HasToolUse() {
			return CategoryToolCall
		}
		if text := msg.Text(); text != "" {
			if c.isQuestion(text) {
				return CategoryQuestion
			}
		}
		return CategoryAgentResponse
	default:
		// Unknown kinds never display.
		return CategoryStatus
	}
}

// isQuestion asks the shape parser first; a definite follow_up or
// gate_check wins. Parser absence or a negative answer both fall through
// to the heuristic rather than suppressing question classification.
func (c Classifier) isQuestion(text string) bool {
	if c.Shapes != nil {
		if shape, ok := c.Shapes.Parse(text); ok {
			return shape == ShapeFollowUp || shape == ShapeGateCheck
		}
	}
	return EndsWithQuestion(text)
}

// interrogatives is the closed token list for the trailing-question
// heuristic. English-only; behavior for other languages is undefined and
// deliberately not extended here.
var interrogatives = map[string]struct{}{
	"should": {}, "would": {}, "could": {}, "do": {}, "does": {}, "did": {},
	"can": {}, "will": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"have": {}, "has": {}, "had": {}, "shall": {}, "may": {}, "might": {},
	"what": {}, "where": {}, "when": {}, "how": {}, "why": {}, "which": {},
	"who": {},
}

// EndsWithQuestion applies the trailing-question heuristic: the last
// non-empty line, trimmed, must end with '?', be longer than 5 runes, and
// contain at least one interrogative token.
func EndsWithQuestion(text string) bool {
	line := lastNonEmptyLine(text)
	if line == "" {
		return false
	}
	if !strings.HasSuffix(line, "?") {
		return false
	}
	if len([]rune(line)) <= 5 {
		return false
	}
	for _, word := range strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if _, ok := interrogatives[word]; ok {
			return true
		}
	}
	return false
}

func lastNonEmptyLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
