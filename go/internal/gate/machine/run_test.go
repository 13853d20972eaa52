package machine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
	"github.com/zachsouder/outpost-gate/go/internal/gate/presentation"
)

func TestMachine_Run_DrivesFullCycle(t *testing.T) {
	model := presentation.NewModel()
	m := New(model, Options{
		Timings: &Timings{
			AutoClose:        150 * time.Millisecond,
			ResetDelay:       50 * time.Millisecond,
			ParticleCount:    3,
			ParticleStagger:  5 * time.Millisecond,
			ParticleLifetime: 20 * time.Millisecond,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan events.Notification)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, in) }()

	in <- events.Connected("test", time.Now())
	in <- events.GateOpen("test", "ada", "7", time.Now())

	require.Eventually(t, func() bool {
		return model.Snapshot().GateOpen
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "WELCOME, ADA!", model.Snapshot().WelcomeText)

	require.Eventually(t, func() bool {
		s := model.Snapshot()
		return m.Snapshot().Phase == PhaseClosed &&
			s.WelcomeText == presentation.IdleWelcomeText &&
			len(s.Particles) == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, presentation.StatusReady, model.Snapshot().StatusText)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMachine_Run_ExplicitCloseBeatsTimer(t *testing.T) {
	model := presentation.NewModel()
	m := New(model, Options{
		Timings: &Timings{
			AutoClose:        time.Hour,
			ResetDelay:       20 * time.Millisecond,
			ParticleCount:    0,
			ParticleStagger:  time.Millisecond,
			ParticleLifetime: time.Millisecond,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan events.Notification)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, in) }()

	in <- events.Connected("test", time.Now())
	in <- events.GateOpen("test", "grace", "", time.Now())
	in <- events.GateClose("test", time.Now())

	require.Eventually(t, func() bool {
		return m.Snapshot().Phase == PhaseClosed
	}, time.Second, 5*time.Millisecond)

	// Closing the input ends the loop
	close(in)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after input closed")
	}
}
