package transcript

import "github.com/parleyhq/parley/protocol"

// TurnNumbers assigns a turn number to every message index in a single
// linear pass: the number at index i is the count of assistant-kind
// messages in [0..i], zero before the first one. Re-scanning the prefix
// per index would be quadratic; this runs once.
func TurnNumbers(msgs []protocol.Message) []int {
	turns := make([]int, len(msgs))
	count := 0
	for i, m := range msgs {
		if m.Kind == protocol.KindAssistant {
			count++
		}
		turns[i] = count
	}
	return turns
}

// TurnMarkers reports, per index, whether a new turn begins there for
// display purposes. A turn is the span of agent activity between result
// messages: the marker sits on the first assistant-kind message of the
// stream and on the first assistant-kind message after each result. Rows
// inside a turn stay unmarked so alternating text and tool calls read as
// one block.
func TurnMarkers(msgs []protocol.Message) []bool {
	markers := make([]bool, len(msgs))
	turnOpen := false
	for i, m := range msgs {
		switch m.Kind {
		case protocol.KindAssistant:
			if !turnOpen {
				markers[i] = true
				turnOpen = true
			}
		case protocol.KindResult:
			turnOpen = false
		}
	}
	return markers
}
