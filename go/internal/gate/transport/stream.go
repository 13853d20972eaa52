package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/zachsouder/outpost-gate/go/clients"
	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
)

const (
	// EventsEndpoint is the server-sent event stream of gate notifications
	EventsEndpoint = "/api/gate/events"
	// DefaultStreamRetry is the reconnect delay until the server sends its own
	DefaultStreamRetry = 3 * time.Second
)

// ErrNotEventStream is returned when the server answers with another content type
var ErrNotEventStream = errors.New("response is not an event stream")

// StreamConfig configures a Stream
type StreamConfig struct {
	Endpoint string
	Retry    time.Duration
}

// DefaultStreamConfig returns the production stream configuration
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Endpoint: EventsEndpoint,
		Retry:    DefaultStreamRetry,
	}
}

// Stream holds one long-lived event stream open and reopens it after every
// failure, resuming from the last event ID.
type Stream struct {
	client   *clients.BaseClient
	clock    clockwork.Clock
	endpoint string
	retry    time.Duration
	lastID   string
}

// NewStream creates a stream adapter against the gate server at baseURL
func NewStream(baseURL string, clock clockwork.Clock, config StreamConfig) *Stream {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.Endpoint == "" {
		config.Endpoint = EventsEndpoint
	}
	if config.Retry <= 0 {
		config.Retry = DefaultStreamRetry
	}

	return &Stream{
		client:   clients.NewStreamClient(baseURL),
		clock:    clock,
		endpoint: config.Endpoint,
		retry:    config.Retry,
	}
}

func (s *Stream) Name() string { return NameStream }

// RetryDelay returns the delay used before the next reconnect
func (s *Stream) RetryDelay() time.Duration { return s.retry }

// Run consumes the stream until ctx is cancelled. Every lost or refused
// connection emits Disconnected; every successful one emits Connected.
func (s *Stream) Run(ctx context.Context, out chan<- events.Notification) error {
	log.Info().
		Str("endpoint", s.client.URL(s.endpoint)).
		Msg("starting gate event stream")

	for {
		err := s.consume(ctx, out)
		if ctx.Err() != nil {
			log.Info().Msg("gate event stream shutting down")
			return nil
		}

		log.Warn().
			Err(err).
			Dur("retry", s.retry).
			Str("last_event_id", s.lastID).
			Msg("gate event stream lost, reconnecting")

		if !emit(ctx, out, events.Disconnected(NameStream, s.clock.Now())) {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.retry):
		}
	}
}

// consume opens the stream once and reads it until it ends
func (s *Stream) consume(ctx context.Context, out chan<- events.Notification) error {
	headers := map[string]string{
		"Accept":        "text/event-stream",
		"Cache-Control": "no-cache",
	}
	if s.lastID != "" {
		headers["Last-Event-ID"] = s.lastID
	}

	resp, err := s.client.Open(ctx, http.MethodGet, s.endpoint, nil, headers)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "text/event-stream" {
		return fmt.Errorf("%w: %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}

	log.Info().Msg("gate event stream connected")
	if !emit(ctx, out, events.Connected(NameStream, s.clock.Now())) {
		return ctx.Err()
	}

	reader := NewSSEReader(resp.Body, s.lastID)
	for {
		ev, err := reader.Next()
		s.lastID = reader.LastEventID()
		if retry := reader.Retry(); retry > 0 {
			s.retry = retry
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return fmt.Errorf("read event stream: %w", err)
		}

		n, err := events.Envelope{Type: ev.Name, Name: ev.Data}.Notification(NameStream, s.clock.Now())
		if err != nil {
			log.Warn().
				Err(err).
				Str("event", ev.Name).
				Str("id", ev.ID).
				Msg("ignoring stream event")
			continue
		}
		if !emit(ctx, out, n) {
			return ctx.Err()
		}
	}
}
