package transport

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
)

// startTestNATS starts an embedded NATS server
func startTestNATS(t *testing.T) *natsserver.Server {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second), "embedded NATS not ready")
	return srv
}

func publisher(t *testing.T, url string) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestNATSSubscriber_ForwardsEnvelopes(t *testing.T) {
	srv := startTestNATS(t)
	pub := publisher(t, srv.ClientURL())

	cfg := DefaultNATSConfig()
	cfg.URL = srv.ClientURL()
	sub := NewNATSSubscriber(cfg, clockwork.NewRealClock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan events.Notification, 8)
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx, out) }()

	// Connected is only sent once the subscription is registered
	n := receive(t, out)
	assert.Equal(t, events.KindConnected, n.Kind)
	assert.Equal(t, NameNATS, n.Source)

	for _, msg := range []string{
		`{"type":"gate_open","name":"Ada","dock":"3"}`,
		`not json`,
		`{"type":"reboot"}`,
		`{"type":"gate_open"}`,
		`{"type":"keepalive"}`,
		`{"type":"gate_close"}`,
	} {
		require.NoError(t, pub.Publish("gate.events", []byte(msg)))
	}
	require.NoError(t, pub.Flush())

	n = receive(t, out)
	assert.Equal(t, events.KindGateOpen, n.Kind)
	assert.Equal(t, "Ada", n.Subject)
	assert.Equal(t, "3", n.Dock)

	assert.Equal(t, events.KindKeepalive, receive(t, out).Kind)
	assert.Equal(t, events.KindGateClose, receive(t, out).Kind)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestNATSSubscriber_ReportsDisconnect(t *testing.T) {
	srv := startTestNATS(t)

	cfg := DefaultNATSConfig()
	cfg.URL = srv.ClientURL()
	cfg.ReconnectWait = 10 * time.Millisecond
	sub := NewNATSSubscriber(cfg, clockwork.NewRealClock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan events.Notification, 8)
	go sub.Run(ctx, out)

	assert.Equal(t, events.KindConnected, receive(t, out).Kind)

	srv.Shutdown()
	assert.Equal(t, events.KindDisconnected, receive(t, out).Kind)
}

func TestNATSSubscriber_DialFailure(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	sub := NewNATSSubscriber(cfg, nil)

	err := sub.Run(context.Background(), make(chan events.Notification, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to NATS")
}

func TestNewNATSSubscriber_Defaults(t *testing.T) {
	sub := NewNATSSubscriber(NATSConfig{}, nil)
	assert.Equal(t, nats.DefaultURL, sub.config.URL)
	assert.Equal(t, "gate.events", sub.config.Subject)
	assert.Equal(t, "outpost-kiosk", sub.config.ClientName)
	assert.Equal(t, 64, sub.config.BufferSize)
	assert.Equal(t, NameNATS, sub.Name())
}
