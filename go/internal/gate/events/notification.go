package events

import (
	"time"
)

// Kind is the normalized type of a gate notification, independent of transport
type Kind string

const (
	KindConnected Kind = "connected"
	KindGateOpen  Kind = "gate_open"
	KindGateClose Kind = "gate_close"
	KindKeepalive Kind = "keepalive"

	// KindDisconnected is raised by a transport when it loses its connection.
	// Servers never send it.
	KindDisconnected Kind = "disconnected"
)

// ParseKind maps a wire event name to a Kind. Only names a server may send are accepted.
func ParseKind(name string) (Kind, bool) {
	switch Kind(name) {
	case KindConnected, KindGateOpen, KindGateClose, KindKeepalive:
		return Kind(name), true
	default:
		return "", false
	}
}

// Notification is a single normalized event delivered to the gate state machine.
// Subject is only set for GateOpen. Timestamp and Dock are only set by the poller.
type Notification struct {
	Kind       Kind      `json:"kind"`
	Subject    string    `json:"subject,omitempty"`
	Dock       string    `json:"dock,omitempty"`
	Timestamp  int64     `json:"timestamp,omitempty"`
	Source     string    `json:"source,omitempty"` // transport name, for logging
	ReceivedAt time.Time `json:"received_at"`
}

// Connected builds a connected notification
func Connected(source string, at time.Time) Notification {
	return Notification{Kind: KindConnected, Source: source, ReceivedAt: at}
}

// Disconnected builds a disconnected notification
func Disconnected(source string, at time.Time) Notification {
	return Notification{Kind: KindDisconnected, Source: source, ReceivedAt: at}
}

// Keepalive builds a keepalive notification
func Keepalive(source string, at time.Time) Notification {
	return Notification{Kind: KindKeepalive, Source: source, ReceivedAt: at}
}

// GateOpen builds a gate open notification for subject, with an optional dock
func GateOpen(source, subject, dock string, at time.Time) Notification {
	return Notification{Kind: KindGateOpen, Subject: subject, Dock: dock, Source: source, ReceivedAt: at}
}

// GateClose builds an explicit gate close notification
func GateClose(source string, at time.Time) Notification {
	return Notification{Kind: KindGateClose, Source: source, ReceivedAt: at}
}
