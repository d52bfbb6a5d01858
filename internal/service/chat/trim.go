package chat

import (
	"github.com/pkg/errors"

	"github.com/zhouzirui/tavern-relay/internal/model/chat"
)

const (
	DefaultTrimThreshold = 12
	DefaultTrimWindow    = 10
)

// TrimPolicy is a sliding window over a session's history. Once a session
// holds more than Threshold turns, only the system turn and the Window most
// recent turns survive. Dropped turns are gone for good.
type TrimPolicy struct {
	Threshold int
	Window    int
}

// DefaultTrimPolicy keeps the last ten turns once a session passes twelve.
func DefaultTrimPolicy() TrimPolicy {
	return TrimPolicy{Threshold: DefaultTrimThreshold, Window: DefaultTrimWindow}
}

// Validate rejects windows that could not hold a single turn or that would
// never shrink the history.
func (p TrimPolicy) Validate() error {
	if p.Window < 1 {
		return errors.Errorf("trim window must be at least 1, got %d", p.Window)
	}
	if p.Window >= p.Threshold {
		return errors.Errorf("trim window %d must be smaller than threshold %d", p.Window, p.Threshold)
	}
	return nil
}

// Apply returns turns unchanged while they fit under the threshold, and
// otherwise a new slice made of turns[0] followed by the last Window turns.
// turns[0] must be the system turn. A window larger than the history keeps
// everything.
func (p TrimPolicy) Apply(turns []chat.Turn) []chat.Turn {
	if len(turns) <= p.Threshold || len(turns) == 0 {
		return turns
	}

	window := p.Window
	if window > len(turns)-1 {
		window = len(turns) - 1
	}
	if window < 0 {
		window = 0
	}

	trimmed := make([]chat.Turn, 0, window+1)
	trimmed = append(trimmed, turns[0])
	trimmed = append(trimmed, turns[len(turns)-window:]...)
	return trimmed
}
