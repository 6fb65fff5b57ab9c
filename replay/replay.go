// Package replay parses recorded agent streams (NDJSON, one envelope per
// line) and replays them through the run registry, so the full pipeline
// can be exercised without a live runtime.
package replay

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/protocol"
)

// maxLineSize bounds one NDJSON line; tool results can be large.
const maxLineSize = 10 * 1024 * 1024

// Recording is one parsed agent stream recording.
type Recording struct {
	Messages []protocol.Message
	// SessionID, Model, Usage and cost come from whichever envelopes
	// carried them, last write wins (matching live mid-stream patching).
	SessionID    string
	Model        string
	Usage        protocol.Usage
	TotalCostUSD float64
	IsError      bool
}

// Load reads and decodes a recording file. Undecodable lines are skipped
// with a warning; a recording with zero decodable lines is an error.
func Load(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	rec := &Recording{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		msg, err := protocol.DecodeLine([]byte(line))
		if err != nil {
			logging.Warnf("replay: skipping line %d of %s: %v", lineNo, path, err)
			continue
		}
		rec.Messages = append(rec.Messages, msg)

		info := protocol.DecodeResultInfo([]byte(line))
		if info.SessionID != "" {
			rec.SessionID = info.SessionID
		}
		if info.Model != "" {
			rec.Model = info.Model
		}
		if info.Usage != (protocol.Usage{}) {
			rec.Usage = info.Usage
		}
		if info.TotalCostUSD != 0 {
			rec.TotalCostUSD = info.TotalCostUSD
		}
		if msg.Kind == protocol.KindResult && info.IsError {
			rec.IsError = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan recording: %w", err)
	}
	if len(rec.Messages) == 0 {
		return nil, fmt.Errorf("recording %s has no decodable lines", path)
	}
	return rec, nil
}

// FinalStatus returns the terminal status the recording implies.
func (r *Recording) FinalStatus() protocol.RunStatus {
	if r.IsError {
		return protocol.RunError
	}
	for _, m := range r.Messages {
		if m.Kind == protocol.KindError {
			return protocol.RunError
		}
	}
	return protocol.RunCompleted
}
