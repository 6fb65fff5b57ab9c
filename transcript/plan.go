package transcript

import "github.com/parleyhq/parley/protocol"

// Entry is the display decision for one message index: the minimal
// structure the rendering layer needs to paint the transcript. No visual
// properties are defined here.
type Entry struct {
	Category Category
	Spacing  Spacing
	// Turn is the turn number at this index (count of assistant-kind
	// messages so far).
	Turn int
	// TurnStart is set on the first row of a new numbered turn.
	TurnStart bool
	// ToolRunLeader is the leader index when this entry belongs to a
	// collapsed tool-call run; -1 otherwise.
	ToolRunLeader int
	// Hidden marks rows that occupy a position but never display
	// (status rows, and non-leader members of tool-call runs).
	Hidden bool
}

// Plan is the full per-index display structure for one run's messages.
type Plan struct {
	Entries  []Entry
	ToolRuns ToolCallRuns
}

// BuildPlan runs the whole pipeline over a message stream: classify,
// index turns, group tool-call runs, and compute spacing.
func BuildPlan(c Classifier, msgs []protocol.Message) Plan {
	categories := make([]Category, len(msgs))
	for i, m := range msgs {
		categories[i] = c.Classify(m)
	}

	turns := TurnNumbers(msgs)
	markers := TurnMarkers(msgs)
	spacing := ComputeSpacing(categories, markers)
	toolRuns := GroupToolCalls(categories)

	entries := make([]Entry, len(msgs))
	for i := range msgs {
		leader := -1
		if l, ok := toolRuns.LeaderOf(i); ok {
			leader = l
		}
		entries[i] = Entry{
			Category:      categories[i],
			Spacing:       spacing[i],
			Turn:          turns[i],
			TurnStart:     markers[i],
			ToolRunLeader: leader,
			Hidden:        categories[i] == CategoryStatus || toolRuns.IsFollower(i),
		}
	}

	return Plan{Entries: entries, ToolRuns: toolRuns}
}

// VisibleIndices returns the message indices the renderer should iterate,
// skipping hidden rows.
func (p Plan) VisibleIndices() []int {
	out := make([]int, 0, len(p.Entries))
	for i, e := range p.Entries {
		if !e.Hidden {
			out = append(out, i)
		}
	}
	return out
}
