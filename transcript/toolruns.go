package transcript

// ToolCallRuns holds maximal consecutive sequences of tool_call messages,
// collapsed for display as a single named run. Runs of length 0 or 1 are
// never registered; an isolated tool call renders on its own.
type ToolCallRuns struct {
	// Members maps a run's leader index (its first member) to the ordered
	// member indices, leader included.
	Members map[int][]int
	// Leader maps every member index back to its run's leader index.
	Leader map[int]int
}

// GroupToolCalls scans the classified stream once and registers every
// maximal run of two or more consecutive tool_call indices.
func GroupToolCalls(categories []Category) ToolCallRuns {
	runs := ToolCallRuns{
		Members: make(map[int][]int),
		Leader:  make(map[int]int),
	}

	var buf []int
	flush := func() {
		if len(buf) >= 2 {
			leader := buf[0]
			members := make([]int, len(buf))
			copy(members, buf)
			runs.Members[leader] = members
			for _, idx := range members {
				runs.Leader[idx] = leader
			}
		}
		buf = buf[:0]
	}

	for i, cat := range categories {
		if cat == CategoryToolCall {
			buf = append(buf, i)
			continue
		}
		flush()
	}
	flush()

	return runs
}

// LeaderOf returns the leader index for a member, and whether the index
// belongs to any run.
func (r ToolCallRuns) LeaderOf(i int) (int, bool) {
	leader, ok := r.Leader[i]
	return leader, ok
}

// IsFollower reports whether index i is a non-leader member of a run.
// Followers are skipped during display iteration.
func (r ToolCallRuns) IsFollower(i int) bool {
	leader, ok := r.Leader[i]
	return ok && leader != i
}
