package machine

import (
	"time"

	"github.com/google/uuid"

	"github.com/zachsouder/outpost-gate/go/internal/gate/timer"
)

// Phase is where the gate is in its open/close cycle
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpen
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpen:
		return "open"
	case PhaseClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Session is the live state of one open cycle. Only the machine mutates it.
type Session struct {
	Phase    Phase
	Subject  string
	Dock     string
	CycleID  uuid.UUID
	OpenedAt time.Time

	autoClose *timer.Handle
	reset     *timer.Handle
}

// cancelTimers drops both lifecycle timers. Particle timers are cosmetic and
// are left to finish.
func (s *Session) cancelTimers() {
	s.autoClose.Cancel()
	s.autoClose = nil
	s.reset.Cancel()
	s.reset = nil
}

// ConnectionStatus is the derived, presentation-facing transport state
type ConnectionStatus struct {
	Connected     bool      `json:"connected"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Snapshot is a read-only copy of the machine state, safe to share across goroutines
type Snapshot struct {
	Phase      Phase            `json:"phase"`
	Subject    string           `json:"subject,omitempty"`
	Dock       string           `json:"dock,omitempty"`
	CycleID    string           `json:"cycle_id,omitempty"`
	OpenedAt   *time.Time       `json:"opened_at,omitempty"`
	Connection ConnectionStatus `json:"connection"`
}
