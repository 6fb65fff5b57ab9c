package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/parleyhq/parley/protocol"
	"github.com/parleyhq/parley/runstate"
	"github.com/parleyhq/parley/session"
)

// Runtime implements session.Runtime by streaming a recorded session into
// the run registry. Each Start call replays the recording as one run.
type Runtime struct {
	rec  *Recording
	runs *runstate.Registry
	// Delay between replayed messages; zero replays instantly.
	Delay time.Duration

	cancels map[protocol.RunID]context.CancelFunc
}

var _ session.Runtime = (*Runtime)(nil)

// NewRuntime creates a replay runtime that publishes into runs.
func NewRuntime(rec *Recording, runs *runstate.Registry) *Runtime {
	return &Runtime{
		rec:     rec,
		runs:    runs,
		cancels: make(map[protocol.RunID]context.CancelFunc),
	}
}

// Start registers a running run and feeds the recording into it from a
// background goroutine, mirroring how a live runtime publishes updates.
func (r *Runtime) Start(ctx context.Context, req session.StartRequest) (protocol.RunID, error) {
	if r.rec == nil {
		return "", fmt.Errorf("no recording loaded")
	}

	id := protocol.RunID("replay-" + ulid.Make().String())
	runCtx, cancel := context.WithCancel(ctx)
	r.cancels[id] = cancel

	model := r.rec.Model
	if model == "" {
		model = req.Model
	}
	r.runs.Put(protocol.Run{
		ID:        id,
		Status:    protocol.RunRunning,
		Model:     model,
		StartTime: time.Now(),
	})

	go r.feed(runCtx, id)
	return id, nil
}

// Cancel stops an in-flight replay. Cancelling a finished replay is a
// no-op, matching the best-effort contract.
func (r *Runtime) Cancel(_ context.Context, id protocol.RunID) error {
	if cancel, ok := r.cancels[id]; ok {
		cancel()
	}
	return nil
}

func (r *Runtime) feed(ctx context.Context, id protocol.RunID) {
	for _, msg := range r.rec.Messages {
		if r.Delay > 0 {
			select {
			case <-time.After(r.Delay):
			case <-ctx.Done():
				r.finish(id, protocol.RunCancelled)
				return
			}
		} else if ctx.Err() != nil {
			r.finish(id, protocol.RunCancelled)
			return
		}
		r.runs.Append(id, msg)
	}

	r.runs.Patch(id, func(run *protocol.Run) {
		run.SessionID = r.rec.SessionID
		run.Usage = r.rec.Usage
		run.TotalCostUSD = r.rec.TotalCostUSD
	})
	r.finish(id, r.rec.FinalStatus())
}

func (r *Runtime) finish(id protocol.RunID, status protocol.RunStatus) {
	now := time.Now()
	r.runs.Patch(id, func(run *protocol.Run) { run.EndTime = &now })
	r.runs.SetStatus(id, status)
}
