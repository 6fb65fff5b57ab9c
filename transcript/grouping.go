package transcript

// Spacing is the per-message visual spacing decision.
type Spacing string

const (
	SpacingNone         Spacing = "none"
	SpacingGroupStart   Spacing = "group-start"
	SpacingContinuation Spacing = "continuation"
)

// ComputeSpacing decides, for each message, whether it starts a new visual
// group or continues the previous one. markers flags positions where a new
// numbered turn begins; it may be nil when no turn information exists.
//
// Within one agent turn, alternating narrative text and tool calls should
// read as one visual block; switching speaker family or starting a new
// numbered turn always resets spacing. Status rows are invisible: they get
// SpacingNone and leave the previous-visible state untouched.
func ComputeSpacing(categories []Category, markers []bool) []Spacing {
	out := make([]Spacing, len(categories))

	var prev Category
	seenVisible := false
	for i, cat := range categories {
		if cat == CategoryStatus {
			out[i] = SpacingNone
			continue
		}

		switch {
		case !seenVisible:
			out[i] = SpacingNone
		case markerAt(markers, i):
			out[i] = SpacingGroupStart
		case !prev.IsAssistantFamily() || !cat.IsAssistantFamily():
			out[i] = SpacingGroupStart
		default:
			out[i] = SpacingContinuation
		}

		prev = cat
		seenVisible = true
	}
	return out
}

func markerAt(markers []bool, i int) bool {
	return i < len(markers) && markers[i]
}
