package machine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
	"github.com/zachsouder/outpost-gate/go/internal/gate/presentation"
	"github.com/zachsouder/outpost-gate/go/internal/gate/timer"
)

var (
	// ErrMissingSubject rejects a GateOpen that names nobody
	ErrMissingSubject = errors.New("gate open without subject")
	// ErrUnknownKind rejects notifications the machine has no transition for
	ErrUnknownKind = errors.New("unknown notification kind")
)

// Timer names, used for logging and for counting live timers
const (
	timerAutoClose      = "auto-close"
	timerReset          = "reset"
	timerParticle       = "particle"
	timerParticleExpire = "particle-expire"
)

// Timings holds every delay the machine arms
type Timings struct {
	AutoClose        time.Duration
	ResetDelay       time.Duration
	ParticleCount    int
	ParticleStagger  time.Duration
	ParticleLifetime time.Duration
}

// DefaultTimings returns the production gate timings
func DefaultTimings() Timings {
	return Timings{
		AutoClose:        8000 * time.Millisecond,
		ResetDelay:       1200 * time.Millisecond,
		ParticleCount:    12,
		ParticleStagger:  100 * time.Millisecond,
		ParticleLifetime: 800 * time.Millisecond,
	}
}

// Options configures a Machine. Zero values fall back to defaults.
type Options struct {
	Clock   clockwork.Clock
	Timings *Timings
	Rand    *rand.Rand
	// Anchor is the gate centre particles scatter around
	Anchor presentation.Point
	// Spread is the width of the square particles land in, centred on Anchor
	Spread float64
}

// Machine is the gate state machine. Dispatch and RunDue must be called from
// a single goroutine (Run does this); Snapshot may be called from anywhere.
type Machine struct {
	clock   clockwork.Clock
	timers  *timer.Queue
	sink    presentation.Sink
	timings Timings
	rng     *rand.Rand
	anchor  presentation.Point
	spread  float64

	session      Session
	status       ConnectionStatus
	reconnecting bool // a Disconnected arrived and no Connected since

	snapMu sync.RWMutex
	snap   Snapshot
}

// New creates a machine in the Closed phase that drives sink
func New(sink presentation.Sink, opts Options) *Machine {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timings := DefaultTimings()
	if opts.Timings != nil {
		timings = *opts.Timings
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(clock.Now().UnixNano()), 0))
	}
	spread := opts.Spread
	if spread <= 0 {
		spread = 200
	}

	m := &Machine{
		clock:   clock,
		timers:  timer.New(clock),
		sink:    sink,
		timings: timings,
		rng:     rng,
		anchor:  opts.Anchor,
		spread:  spread,
	}
	m.publish()
	return m
}

// Dispatch applies one notification. Rejected notifications leave state,
// timers and presentation untouched and return an error describing why.
func (m *Machine) Dispatch(n events.Notification) error {
	defer m.publish()

	switch n.Kind {
	case events.KindGateOpen:
		subject := strings.TrimSpace(n.Subject)
		if subject == "" {
			log.Warn().Str("source", n.Source).Msg("rejecting gate open without subject")
			return ErrMissingSubject
		}
		m.open(subject, strings.TrimSpace(n.Dock), n.Source)
	case events.KindGateClose:
		m.close("server")
	case events.KindConnected:
		m.connected(n)
	case events.KindDisconnected:
		m.disconnected(n)
	case events.KindKeepalive:
		m.touch(n)
	default:
		log.Warn().Str("kind", string(n.Kind)).Str("source", n.Source).Msg("ignoring unknown notification")
		return fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	return nil
}

// RunDue fires every timer that is due now and returns how many ran
func (m *Machine) RunDue() int {
	defer m.publish()
	return m.timers.RunDue(m.clock.Now())
}

// Snapshot returns the state as of the last Dispatch or RunDue
func (m *Machine) Snapshot() Snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snap
}

// open handles both a fresh open and a re-open: the newest arrival always
// restarts the cycle.
func (m *Machine) open(subject, dock, source string) {
	previous := m.session.Phase
	m.session.cancelTimers()

	m.session.Phase = PhaseOpen
	m.session.Subject = subject
	m.session.Dock = dock
	m.session.CycleID = uuid.New()
	m.session.OpenedAt = m.clock.Now()

	log.Info().
		Str("cycle_id", m.session.CycleID.String()).
		Str("subject", subject).
		Str("dock", dock).
		Str("source", source).
		Str("previous_phase", previous.String()).
		Msg("gate opening")

	m.sink.SetWelcome(presentation.WelcomeText(subject), true)
	if dock != "" {
		m.sink.SetDock(presentation.DockText(dock), true)
	} else {
		m.sink.SetDock("", false)
	}
	m.sink.SetIndicator(presentation.Indicator{Connected: m.status.Connected, Active: true})
	m.sink.SetStatusText(presentation.StatusGranted)
	m.spawnParticles()
	m.sink.SetGateOpen(true)

	m.session.autoClose = m.timers.Schedule(timerAutoClose, m.timings.AutoClose, m.autoClose)
}

// autoClose runs when the dwell time expires without an explicit close
func (m *Machine) autoClose() {
	m.session.autoClose = nil
	m.close("auto_close")
}

// close starts the closing animation. Only an open gate can close.
func (m *Machine) close(reason string) {
	if m.session.Phase != PhaseOpen {
		log.Debug().
			Str("reason", reason).
			Str("phase", m.session.Phase.String()).
			Msg("close ignored, gate not open")
		return
	}

	m.session.autoClose.Cancel()
	m.session.autoClose = nil
	m.session.Phase = PhaseClosing

	log.Info().
		Str("cycle_id", m.session.CycleID.String()).
		Str("reason", reason).
		Dur("open_for", m.clock.Since(m.session.OpenedAt)).
		Msg("gate closing")

	m.sink.SetGateOpen(false)
	m.session.reset = m.timers.Schedule(timerReset, m.timings.ResetDelay, m.reset)
}

// reset returns the display to idle once the closing animation has played
func (m *Machine) reset() {
	m.session.reset = nil
	if m.session.Phase != PhaseClosing {
		return
	}

	log.Debug().Str("cycle_id", m.session.CycleID.String()).Msg("gate reset")

	m.session = Session{Phase: PhaseClosed}

	m.sink.SetWelcome(presentation.IdleWelcomeText, false)
	m.sink.SetDock("", false)
	m.sink.SetIndicator(presentation.Indicator{Connected: m.status.Connected})
	m.sink.SetStatusText(m.statusText())
}

func (m *Machine) connected(n events.Notification) {
	wasConnected := m.status.Connected
	m.status.Connected = true
	m.reconnecting = false
	m.status.LastMessage = string(n.Kind)
	m.status.LastMessageAt = m.receivedAt(n)

	if !wasConnected {
		log.Info().Str("source", n.Source).Msg("transport connected")
	}
	m.sink.SetIndicator(presentation.Indicator{Connected: true, Active: m.session.Phase != PhaseClosed})
	m.sink.SetStatusText(m.statusText())
}

func (m *Machine) disconnected(n events.Notification) {
	m.status.LastMessage = string(n.Kind)
	m.status.LastMessageAt = m.receivedAt(n)
	if m.reconnecting {
		return
	}
	m.status.Connected = false
	m.reconnecting = true

	log.Warn().Str("source", n.Source).Msg("transport disconnected, waiting for reconnect")
	m.sink.SetIndicator(presentation.Indicator{Connected: false, Active: m.session.Phase != PhaseClosed})
	m.sink.SetStatusText(presentation.StatusReconnecting)
}

func (m *Machine) touch(n events.Notification) {
	m.status.LastMessage = string(n.Kind)
	m.status.LastMessageAt = m.receivedAt(n)
	log.Trace().Str("source", n.Source).Msg("keepalive")
}

// statusText is the resting status line for the current phase and connection
func (m *Machine) statusText() string {
	switch {
	case m.reconnecting:
		return presentation.StatusReconnecting
	case !m.status.Connected:
		return presentation.StatusConnecting
	case m.session.Phase == PhaseClosed:
		return presentation.StatusReady
	default:
		return presentation.StatusGranted
	}
}

func (m *Machine) receivedAt(n events.Notification) time.Time {
	if n.ReceivedAt.IsZero() {
		return m.clock.Now()
	}
	return n.ReceivedAt
}

func (m *Machine) publish() {
	s := Snapshot{
		Phase:      m.session.Phase,
		Subject:    m.session.Subject,
		Dock:       m.session.Dock,
		Connection: m.status,
	}
	if m.session.Phase != PhaseClosed {
		s.CycleID = m.session.CycleID.String()
		openedAt := m.session.OpenedAt
		s.OpenedAt = &openedAt
	}

	m.snapMu.Lock()
	m.snap = s
	m.snapMu.Unlock()
}
