package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, name := range []string{"connected", "gate_open", "gate_close", "keepalive"} {
		kind, ok := ParseKind(name)
		assert.True(t, ok, name)
		assert.Equal(t, Kind(name), kind)
	}

	// Disconnected is raised locally and never accepted from the wire
	for _, name := range []string{"disconnected", "message", "", "GATE_OPEN"} {
		_, ok := ParseKind(name)
		assert.False(t, ok, name)
	}
}

func TestStatusSnapshot_Notification(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var open StatusSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"is_open":true,"name":" Ada ","dock":" 4 ","timestamp":100}`), &open))

	n, ok, err := open.Notification("poll", at)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Notification{
		Kind:       KindGateOpen,
		Subject:    "Ada",
		Dock:       "4",
		Timestamp:  100,
		Source:     "poll",
		ReceivedAt: at,
	}, n)

	_, ok, err = StatusSnapshot{IsOpen: false, Name: "Ada", Timestamp: 200}.Notification("poll", at)
	require.NoError(t, err)
	assert.False(t, ok, "closed snapshots carry no event")

	_, ok, err = StatusSnapshot{IsOpen: true, Timestamp: 300}.Notification("poll", at)
	assert.ErrorIs(t, err, ErrMissingName)
	assert.False(t, ok)
}

func TestEnvelope_Notification(t *testing.T) {
	at := time.Now()

	tests := []struct {
		name     string
		envelope Envelope
		want     Kind
		subject  string
		dock     string
		err      error
	}{
		{name: "open", envelope: Envelope{Type: "gate_open", Name: "Grace", Dock: "2"}, want: KindGateOpen, subject: "Grace", dock: "2"},
		{name: "open without dock", envelope: Envelope{Type: "gate_open", Name: "Grace"}, want: KindGateOpen, subject: "Grace"},
		{name: "close", envelope: Envelope{Type: "gate_close"}, want: KindGateClose},
		{name: "keepalive", envelope: Envelope{Type: "keepalive"}, want: KindKeepalive},
		{name: "connected", envelope: Envelope{Type: "connected"}, want: KindConnected},
		{name: "blank name", envelope: Envelope{Type: "gate_open", Name: "   "}, err: ErrMissingName},
		{name: "unknown type", envelope: Envelope{Type: "gate_explode"}, err: ErrUnknownType},
		{name: "disconnected from wire", envelope: Envelope{Type: "disconnected"}, err: ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.envelope.Notification("nats", at)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Kind)
			assert.Equal(t, tt.subject, n.Subject)
			assert.Equal(t, tt.dock, n.Dock)
			assert.Equal(t, "nats", n.Source)
			assert.Equal(t, at, n.ReceivedAt)
		})
	}
}
