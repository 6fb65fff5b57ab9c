// Package protocol defines the wire vocabulary for agent event streams.
// Every wire format is normalized into Message values at the stream
// boundary; downstream code never re-inspects raw JSON.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind discriminates between stream event kinds.
type MessageKind string

const (
	KindAssistant MessageKind = "assistant"
	KindSystem    MessageKind = "system"
	KindError     MessageKind = "error"
	KindResult    MessageKind = "result"
	KindConfig    MessageKind = "config"
)

// Message is one normalized event from the agent stream. Messages are
// immutable once appended to a Run.
type Message struct {
	Timestamp time.Time
	Kind      MessageKind
	Content   string
	Blocks    ContentBlocks
}

// HasToolUse reports whether the message payload carries at least one
// tool invocation block.
func (m Message) HasToolUse() bool {
	for _, b := range m.Blocks {
		if _, ok := b.(ToolUseBlock); ok {
			return true
		}
	}
	return false
}

// Text returns the message's displayable text: the Content field if set,
// otherwise the concatenation of its text blocks.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var out string
	for _, b := range m.Blocks {
		if tb, ok := b.(TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}

// envelope is the outer shape of one NDJSON stream line.
type envelope struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Result    string          `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Message   *innerMessage   `json:"message,omitempty"`
	Usage     *Usage          `json:"usage,omitempty"`
	CostUSD   float64         `json:"total_cost_usd,omitempty"`
	Model     string          `json:"model,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// innerMessage is the nested message body of assistant envelopes.
type innerMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// DecodeLine normalizes one NDJSON stream line into a Message. The content
// payload is decoded into typed blocks exactly once, here.
func DecodeLine(line []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Message{}, fmt.Errorf("decode stream line: %w", err)
	}

	msg := Message{Timestamp: time.Now(), Kind: MessageKind(env.Type)}

	switch env.Type {
	case "assistant":
		if env.Message != nil {
			content, blocks, err := decodeContent(env.Message.Content)
			if err != nil {
				return Message{}, fmt.Errorf("decode assistant content: %w", err)
			}
			msg.Content = content
			msg.Blocks = blocks
		}
	case "result":
		msg.Content = env.Result
	case "error":
		if env.Error != "" {
			msg.Content = env.Error
		} else {
			msg.Content = env.Result
		}
	}
	return msg, nil
}

// decodeContent handles the content field being either a plain string or an
// array of content blocks.
func decodeContent(raw json.RawMessage) (string, ContentBlocks, error) {
	if len(raw) == 0 {
		return "", nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", nil, err
		}
		return s, nil, nil
	}
	var blocks ContentBlocks
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil, err
	}
	return "", blocks, nil
}

// Usage tracks token usage for a run.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage sample.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ResultInfo carries the extra fields of a result envelope that belong on
// the Run rather than on the Message.
type ResultInfo struct {
	SessionID    string
	Model        string
	Usage        Usage
	TotalCostUSD float64
	IsError      bool
}

// DecodeResultInfo extracts run-level metadata from a stream line, if any.
// Lines that carry no metadata return the zero value.
func DecodeResultInfo(line []byte) ResultInfo {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return ResultInfo{}
	}
	info := ResultInfo{
		SessionID:    env.SessionID,
		Model:        env.Model,
		TotalCostUSD: env.CostUSD,
		IsError:      env.IsError,
	}
	if env.Usage != nil {
		info.Usage = *env.Usage
	}
	return info
}
