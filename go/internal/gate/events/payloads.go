package events

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Wire payloads shared between the transports and their tests

var (
	// ErrMissingName is returned when an open payload carries no visitor name
	ErrMissingName = errors.New("gate open payload has no name")
	// ErrUnknownType is returned for envelope types the kiosk does not understand
	ErrUnknownType = errors.New("unknown event type")
)

// StatusSnapshot is the body of GET /api/gate/status
type StatusSnapshot struct {
	IsOpen    bool   `json:"is_open"`
	Name      string `json:"name"`
	Dock      string `json:"dock"`
	Timestamp int64  `json:"timestamp"`
}

// Notification converts an open snapshot into a GateOpen notification.
// Closed snapshots carry no event and produce ok == false.
func (s StatusSnapshot) Notification(source string, at time.Time) (n Notification, ok bool, err error) {
	if !s.IsOpen {
		return Notification{}, false, nil
	}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Notification{}, false, fmt.Errorf("snapshot %d: %w", s.Timestamp, ErrMissingName)
	}
	n = GateOpen(source, name, strings.TrimSpace(s.Dock), at)
	n.Timestamp = s.Timestamp
	return n, true, nil
}

// Envelope is the JSON message the gate server broadcasts to its subscribers
type Envelope struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Dock string `json:"dock,omitempty"`
}

// Notification converts a broadcast envelope into a notification
func (e Envelope) Notification(source string, at time.Time) (Notification, error) {
	kind, ok := ParseKind(e.Type)
	if !ok {
		return Notification{}, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}

	switch kind {
	case KindGateOpen:
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return Notification{}, ErrMissingName
		}
		return GateOpen(source, name, strings.TrimSpace(e.Dock), at), nil
	case KindGateClose:
		return GateClose(source, at), nil
	case KindKeepalive:
		return Keepalive(source, at), nil
	default:
		return Connected(source, at), nil
	}
}
