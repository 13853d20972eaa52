package machine

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
)

// Run is the machine's event loop. Notifications and timer expiries are
// handled one at a time on the calling goroutine until ctx is cancelled or in
// is closed. Pending timers are dropped on return.
func (m *Machine) Run(ctx context.Context, in <-chan events.Notification) error {
	log.Info().Msg("gate state machine started")
	defer func() {
		m.timers.Clear()
		log.Info().Msg("gate state machine stopped")
	}()

	for {
		var (
			t    clockwork.Timer
			wake <-chan time.Time
		)
		if next, ok := m.timers.Next(); ok {
			t = m.clock.NewTimer(next.Sub(m.clock.Now()))
			wake = t.Chan()
		}

		select {
		case <-ctx.Done():
			stopTimer(t)
			return nil
		case n, ok := <-in:
			stopTimer(t)
			if !ok {
				return nil
			}
			if err := m.Dispatch(n); err != nil {
				log.Debug().Err(err).Msg("notification rejected")
			}
		case <-wake:
			m.RunDue()
		}
	}
}

// stopTimer stops t and drains its channel if it already fired
func stopTimer(t clockwork.Timer) {
	if t == nil {
		return
	}
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
