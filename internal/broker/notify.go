package broker

import (
	"context"
	"time"
)

// Notifier coalesces "something changed" events from the gateway's push feed
// into a single-slot signal. One logical task consumes it at a time; a
// broadcast while no waiter is parked is retained so the next wait returns
// immediately rather than stalling a full sub-timeout.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Broadcast marks that gateway state changed. Never blocks.
func (n *Notifier) Broadcast() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until a broadcast, the timeout, or ctx cancellation, whichever
// comes first. The bounded timeout keeps waiters live when the push feed is
// delayed or coalesced, and lets them observe shutdown promptly.
func (n *Notifier) Wait(ctx context.Context, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-n.ch:
	}
}
