package protocol

import (
	"encoding/json"
	"fmt"
)

// ContentBlock is one element of an assistant message payload. The concrete
// type is determined once, during unmarshalling.
type ContentBlock interface {
	BlockType() string
}

// TextBlock is narrative text from the agent.
type TextBlock struct {
	Text string `json:"text"`
}

// BlockType returns the wire type tag.
func (TextBlock) BlockType() string { return "text" }

// ThinkingBlock is extended reasoning text.
type ThinkingBlock struct {
	Thinking string `json:"thinking"`
}

// BlockType returns the wire type tag.
func (ThinkingBlock) BlockType() string { return "thinking" }

// ToolUseBlock is a tool invocation request.
type ToolUseBlock struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// BlockType returns the wire type tag.
func (ToolUseBlock) BlockType() string { return "tool_use" }

// UnknownBlock preserves blocks with unrecognized type tags so the stream
// stays lossless across CLI versions.
type UnknownBlock struct {
	Type string
	Raw  json.RawMessage
}

// BlockType returns the wire type tag.
func (b UnknownBlock) BlockType() string { return b.Type }

// ContentBlocks is an ordered list of content blocks.
type ContentBlocks []ContentBlock

// UnmarshalJSON decodes a JSON array of tagged blocks into concrete types.
func (cb *ContentBlocks) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("content blocks: %w", err)
	}

	blocks := make(ContentBlocks, 0, len(raws))
	for i, raw := range raws {
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			return fmt.Errorf("content block %d: %w", i, err)
		}

		switch tag.Type {
		case "text":
			var b TextBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("text block %d: %w", i, err)
			}
			blocks = append(blocks, b)
		case "thinking":
			var b ThinkingBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("thinking block %d: %w", i, err)
			}
			blocks = append(blocks, b)
		case "tool_use":
			var b ToolUseBlock
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("tool_use block %d: %w", i, err)
			}
			blocks = append(blocks, b)
		default:
			blocks = append(blocks, UnknownBlock{Type: tag.Type, Raw: raw})
		}
	}

	*cb = blocks
	return nil
}

// MarshalJSON re-encodes blocks with their wire type tags.
func (cb ContentBlocks) MarshalJSON() ([]byte, error) {
	out := make([]map[string]interface{}, 0, len(cb))
	for _, b := range cb {
		m := map[string]interface{}{"type": b.BlockType()}
		switch blk := b.(type) {
		case TextBlock:
			m["text"] = blk.Text
		case ThinkingBlock:
			m["thinking"] = blk.Thinking
		case ToolUseBlock:
			m["id"] = blk.ID
			m["name"] = blk.Name
			m["input"] = blk.Input
		case UnknownBlock:
			return nil, fmt.Errorf("cannot re-encode unknown block type %q", blk.Type)
		}
		out = append(out, m)
	}
	return json.Marshal(out)
}
