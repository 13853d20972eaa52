package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
)

// NATSConfig holds configuration for the NATS subscriber
type NATSConfig struct {
	URL           string
	Subject       string
	ClientName    string
	MaxReconnects int
	ReconnectWait time.Duration
	BufferSize    int // pending messages held between the client and Run
}

// DefaultNATSConfig returns default NATS subscriber configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "gate.events",
		ClientName:    "outpost-kiosk",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		BufferSize:    64,
	}
}

// NATSSubscriber receives gate broadcast envelopes from a core NATS subject
type NATSSubscriber struct {
	config NATSConfig
	clock  clockwork.Clock
}

// NewNATSSubscriber creates a subscriber. It does not dial until Run.
func NewNATSSubscriber(config NATSConfig, clock clockwork.Clock) *NATSSubscriber {
	defaults := DefaultNATSConfig()
	if config.URL == "" {
		config.URL = defaults.URL
	}
	if config.Subject == "" {
		config.Subject = defaults.Subject
	}
	if config.ClientName == "" {
		config.ClientName = defaults.ClientName
	}
	if config.ReconnectWait <= 0 {
		config.ReconnectWait = defaults.ReconnectWait
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NATSSubscriber{config: config, clock: clock}
}

func (s *NATSSubscriber) Name() string { return NameNATS }

// Run dials NATS and forwards envelopes until ctx is cancelled. A failed
// initial dial is returned; later outages are handled by client reconnection.
func (s *NATSSubscriber) Run(ctx context.Context, out chan<- events.Notification) error {
	opts := []nats.Option{
		nats.Name(s.config.ClientName),
		nats.MaxReconnects(s.config.MaxReconnects),
		nats.ReconnectWait(s.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("NATS disconnected")
			emit(ctx, out, events.Disconnected(NameNATS, s.clock.Now()))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			emit(ctx, out, events.Connected(NameNATS, s.clock.Now()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(s.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, s.config.BufferSize)
	sub, err := nc.ChanSubscribe(s.config.Subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.config.Subject, err)
	}
	defer sub.Unsubscribe()

	if err := nc.Flush(); err != nil {
		return fmt.Errorf("flush subscription: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject", s.config.Subject).
		Msg("NATS gate subscriber started")

	if !emit(ctx, out, events.Connected(NameNATS, s.clock.Now())) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("NATS gate subscriber shutting down")
			return nil
		case msg := <-msgs:
			n, err := s.decode(msg)
			if err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject).
					Msg("failed to process message")
				continue
			}
			if !emit(ctx, out, n) {
				return nil
			}
		}
	}
}

func (s *NATSSubscriber) decode(msg *nats.Msg) (events.Notification, error) {
	var envelope events.Envelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return events.Notification{}, fmt.Errorf("unmarshal gate envelope: %w", err)
	}
	return envelope.Notification(NameNATS, s.clock.Now())
}
