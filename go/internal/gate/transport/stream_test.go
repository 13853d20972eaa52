package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
)

// newEventServer serves each connection with the handler for its index,
// reusing the last handler once they run out.
func newEventServer(t *testing.T, handlers ...func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EventsEndpoint, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		i := int(conns.Add(1)) - 1
		if i >= len(handlers) {
			i = len(handlers) - 1
		}
		handlers[i](w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func writeEvents(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, line := range lines {
		fmt.Fprint(w, line)
	}
	w.(http.Flusher).Flush()
}

func holdOpen(r *http.Request) {
	<-r.Context().Done()
}

func startStream(t *testing.T, s *Stream) (chan events.Notification, context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	out := make(chan events.Notification, 16)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()
	return out, cancel, done
}

func stopStream(t *testing.T, cancel context.CancelFunc, done chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestStream_DeliversNamedEvents(t *testing.T) {
	srv, _ := newEventServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w,
			": welcome\n\n",
			"event: connected\ndata: \n\n",
			"event: gate_open\ndata: Ada\n\n",
			"event: something_else\ndata: x\n\n",
			"event: gate_open\ndata: \n\n",
			"event: keepalive\ndata: \n\n",
			"event: gate_close\ndata: \n\n",
		)
		holdOpen(r)
	})

	s := NewStream(srv.URL, clockwork.NewRealClock(), DefaultStreamConfig())
	out, cancel, done := startStream(t, s)

	var kinds []events.Kind
	var subject string
	for len(kinds) < 5 {
		n := receive(t, out)
		assert.Equal(t, NameStream, n.Source)
		if n.Kind == events.KindGateOpen {
			subject = n.Subject
		}
		kinds = append(kinds, n.Kind)
	}

	// The first Connected is raised on open, the second is the server's event
	assert.Equal(t, []events.Kind{
		events.KindConnected,
		events.KindConnected,
		events.KindGateOpen,
		events.KindKeepalive,
		events.KindGateClose,
	}, kinds)
	assert.Equal(t, "Ada", subject)

	stopStream(t, cancel, done)
}

func TestStream_ReconnectsWithLastEventID(t *testing.T) {
	srv, conns := newEventServer(t,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Last-Event-ID"))
			writeEvents(w, "id: 41\nevent: gate_open\ndata: Ada\n\n")
		},
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "41", r.Header.Get("Last-Event-ID"))
			writeEvents(w, "id: 42\nevent: gate_close\ndata: \n\n")
			holdOpen(r)
		},
	)

	s := NewStream(srv.URL, clockwork.NewRealClock(), StreamConfig{Retry: 10 * time.Millisecond})
	out, cancel, done := startStream(t, s)

	want := []events.Kind{
		events.KindConnected,
		events.KindGateOpen,
		events.KindDisconnected,
		events.KindConnected,
		events.KindGateClose,
	}
	for _, kind := range want {
		assert.Equal(t, kind, receive(t, out).Kind)
	}
	assert.Equal(t, int32(2), conns.Load())

	stopStream(t, cancel, done)
}

func TestStream_HonorsServerRetry(t *testing.T) {
	srv, conns := newEventServer(t,
		func(w http.ResponseWriter, r *http.Request) {
			writeEvents(w, "retry: 25\n\n")
		},
		func(w http.ResponseWriter, r *http.Request) {
			writeEvents(w)
			holdOpen(r)
		},
	)

	s := NewStream(srv.URL, clockwork.NewRealClock(), StreamConfig{Retry: 5 * time.Millisecond})
	out, cancel, done := startStream(t, s)

	assert.Equal(t, events.KindConnected, receive(t, out).Kind)
	assert.Equal(t, events.KindDisconnected, receive(t, out).Kind)
	assert.Equal(t, events.KindConnected, receive(t, out).Kind)
	assert.Equal(t, int32(2), conns.Load())

	stopStream(t, cancel, done)
	assert.Equal(t, 25*time.Millisecond, s.RetryDelay())
}

func TestStream_RetriesRefusedConnections(t *testing.T) {
	srv, conns := newEventServer(t,
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("not a stream"))
		},
		func(w http.ResponseWriter, r *http.Request) {
			writeEvents(w, "event: gate_open\ndata: Grace\n\n")
			holdOpen(r)
		},
	)

	s := NewStream(srv.URL, clockwork.NewRealClock(), StreamConfig{Retry: 5 * time.Millisecond})
	out, cancel, done := startStream(t, s)

	assert.Equal(t, events.KindDisconnected, receive(t, out).Kind)
	assert.Equal(t, events.KindDisconnected, receive(t, out).Kind)
	assert.Equal(t, events.KindConnected, receive(t, out).Kind)
	n := receive(t, out)
	assert.Equal(t, events.KindGateOpen, n.Kind)
	assert.Equal(t, "Grace", n.Subject)
	assert.Equal(t, int32(3), conns.Load())

	stopStream(t, cancel, done)
}

func TestStream_WaitsRetryDelayOnFakeClock(t *testing.T) {
	srv, conns := newEventServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	clock := clockwork.NewFakeClock()
	s := NewStream(srv.URL, clock, DefaultStreamConfig())
	out, cancel, done := startStream(t, s)

	assert.Equal(t, events.KindDisconnected, receive(t, out).Kind)
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	assert.Equal(t, int32(1), conns.Load(), "no reconnect before the retry delay")

	clock.Advance(DefaultStreamRetry)
	assert.Equal(t, events.KindDisconnected, receive(t, out).Kind)
	assert.Equal(t, int32(2), conns.Load())

	stopStream(t, cancel, done)
}
