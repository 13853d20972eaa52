package transport

import (
	"context"

	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
)

// Transport names, also used as the Source of every notification they emit
const (
	NamePoll   = "poll"
	NameStream = "stream"
	NameNATS   = "nats"
)

// Adapter turns one way of talking to the gate server into a sequence of
// normalized notifications. Run blocks until ctx is cancelled. Transport
// failures after startup are absorbed; only startup failures are returned.
type Adapter interface {
	Name() string
	Run(ctx context.Context, out chan<- events.Notification) error
}

// emit sends n unless ctx is done first. It reports whether n was sent.
func emit(ctx context.Context, out chan<- events.Notification, n events.Notification) bool {
	select {
	case out <- n:
		return true
	case <-ctx.Done():
		return false
	}
}
