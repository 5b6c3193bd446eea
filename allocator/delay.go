package allocator

import (
	"context"
	"time"
)

// DelayOutcome reports how a backoff sleep ended.
type DelayOutcome int

const (
	DelayCompleted DelayOutcome = iota
	DelayInterrupted
)

// Sleep waits for d or until ctx is cancelled, whichever comes first.
// Cancellation is reported as a value, not an error, so the loop can wind
// down quietly on an operator interrupt.
func Sleep(ctx context.Context, d time.Duration) DelayOutcome {
	if d <= 0 {
		if ctx.Err() != nil {
			return DelayInterrupted
		}
		return DelayCompleted
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return DelayInterrupted
	case <-t.C:
		return DelayCompleted
	}
}
