package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parleyhq/parley/protocol"
)

func assistantText(text string) protocol.Message {
	return protocol.Message{
		Kind:   protocol.KindAssistant,
		Blocks: protocol.ContentBlocks{protocol.TextBlock{Text: text}},
	}
}

func assistantTool() protocol.Message {
	return protocol.Message{
		Kind: protocol.KindAssistant,
		Blocks: protocol.ContentBlocks{
			protocol.ToolUseBlock{ID: "tu_1", Name: "Read", Input: map[string]interface{}{"file_path": "a.go"}},
		},
	}
}

func TestClassifyByKind(t *testing.T) {
	var c Classifier

	tests := []struct {
		name string
		msg  protocol.Message
		want Category
	}{
		{"config", protocol.Message{Kind: protocol.KindConfig}, CategoryConfig},
		{"system", protocol.Message{Kind: protocol.KindSystem, Content: "init"}, CategoryStatus},
		{"error", protocol.Message{Kind: protocol.KindError, Content: "boom"}, CategoryError},
		{"result", protocol.Message{Kind: protocol.KindResult, Content: "done"}, CategoryResult},
		{"assistant text", assistantText("I updated the file."), CategoryAgentResponse},
		{"assistant tool", assistantTool(), CategoryToolCall},
		{"unknown kind", protocol.Message{Kind: "stream_event"}, CategoryStatus},
		{"empty assistant", protocol.Message{Kind: protocol.KindAssistant}, CategoryAgentResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.msg))
		})
	}
}

func TestClassifyToolUseDominatesText(t *testing.T) {
	// A tool-use block wins even when the message also carries question text.
	var c Classifier
	msg := protocol.Message{
		Kind: protocol.KindAssistant,
		Blocks: protocol.ContentBlocks{
			protocol.TextBlock{Text: "Should I continue with the refactor?"},
			protocol.ToolUseBlock{ID: "tu_2", Name: "Bash"},
		},
	}
	assert.Equal(t, CategoryToolCall, c.Classify(msg))
}

func TestClassifyDeterministic(t *testing.T) {
	var c Classifier
	msg := assistantText("Should I delete the legacy adapter?")
	first := c.Classify(msg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(msg))
	}
	assert.Equal(t, CategoryQuestion, first)
}

func TestTrailingQuestionHeuristic(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"interrogative question", "Should I proceed with the migration?", true},
		{"multiline, question last", "Done with step one.\n\nWhich branch should I target?", true},
		{"question mid-text only", "Is this right? I went ahead anyway.", false},
		{"no interrogative token", "Fixed it, ok?", false},
		{"too short", "Why?", false},
		{"no question mark", "I could do that", false},
		{"trailing blank lines", "What changed here?\n\n  \n", true},
		{"case insensitive", "WOULD you like a summary?", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EndsWithQuestion(tt.text))
		})
	}
}

// fixedShapeParser always recognizes the given shape.
type fixedShapeParser struct {
	shape ResponseShape
	ok    bool
}

func (p fixedShapeParser) Parse(string) (ResponseShape, bool) { return p.shape, p.ok }

func TestClassifyShapeParserWins(t *testing.T) {
	c := Classifier{Shapes: fixedShapeParser{shape: ShapeFollowUp, ok: true}}
	assert.Equal(t, CategoryQuestion, c.Classify(assistantText("no question mark here")))

	c = Classifier{Shapes: fixedShapeParser{shape: ShapeGateCheck, ok: true}}
	assert.Equal(t, CategoryQuestion, c.Classify(assistantText("gate body")))
}

func TestClassifyShapeParserFallsThrough(t *testing.T) {
	// Parser with no definite answer: heuristic decides.
	c := Classifier{Shapes: fixedShapeParser{ok: false}}
	assert.Equal(t, CategoryQuestion, c.Classify(assistantText("Should we ship it today?")))
	assert.Equal(t, CategoryAgentResponse, c.Classify(assistantText("Shipped.")))
}
