package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/zachsouder/outpost-gate/go/internal/gate/config"
	"github.com/zachsouder/outpost-gate/go/internal/gate/display"
	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
	"github.com/zachsouder/outpost-gate/go/internal/gate/machine"
	"github.com/zachsouder/outpost-gate/go/internal/gate/presentation"
	"github.com/zachsouder/outpost-gate/go/internal/gate/transport"
)

// notificationBuffer is how many notifications a transport may run ahead of the machine
const notificationBuffer = 64

// Options overrides parts of the kiosk wiring
type Options struct {
	Clock clockwork.Clock
	// Adapter replaces the transport selected by the config
	Adapter transport.Adapter
	// Sinks receive every presentation command in addition to the built-in ones
	Sinks []presentation.Sink
}

// Service wires a transport, the gate state machine, its presentation sinks
// and the display server, and runs them under one context
type Service struct {
	config  *config.Config
	clock   clockwork.Clock
	adapter transport.Adapter
	machine *machine.Machine
	model   *presentation.Model
	display *display.Service
}

// NewService builds the kiosk from cfg. Nothing is dialed or bound until Run.
func NewService(cfg *config.Config, opts Options) (*Service, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	adapter := opts.Adapter
	if adapter == nil {
		var err error
		if adapter, err = NewAdapter(cfg, clock); err != nil {
			return nil, err
		}
	}

	model := presentation.NewModel()
	sinks := presentation.Fanout{model, presentation.NewLogSink()}

	var displaySvc *display.Service
	if cfg.Display.Enabled {
		displayConfig := display.DefaultConfig()
		displayConfig.ListenAddr = cfg.Display.ListenAddr
		displayConfig.AllowedOrigins = cfg.Display.AllowedOrigins
		displaySvc = display.NewService(displayConfig, model, nil, clock)
		sinks = append(sinks, displaySvc.Sink())
	}
	sinks = append(sinks, opts.Sinks...)

	timings := Timings(cfg)
	m := machine.New(sinks, machine.Options{
		Clock:   clock,
		Timings: &timings,
		Anchor:  presentation.Point{X: cfg.Gate.AnchorX, Y: cfg.Gate.AnchorY},
		Spread:  cfg.Gate.Spread,
	})
	if displaySvc != nil {
		displaySvc.SetGateState(m)
	}

	return &Service{
		config:  cfg,
		clock:   clock,
		adapter: adapter,
		machine: m,
		model:   model,
		display: displaySvc,
	}, nil
}

// NewAdapter creates the transport named by cfg.Transport.Kind
func NewAdapter(cfg *config.Config, clock clockwork.Clock) (transport.Adapter, error) {
	switch cfg.Transport.Kind {
	case config.TransportPoll:
		return transport.NewPoller(cfg.Server.BaseURL, clock, transport.PollerConfig{
			Interval:       cfg.Transport.PollInterval,
			Endpoint:       transport.StatusEndpoint,
			RequestTimeout: cfg.Transport.RequestTimeout,
		}), nil
	case config.TransportStream:
		return transport.NewStream(cfg.Server.BaseURL, clock, transport.StreamConfig{
			Endpoint: transport.EventsEndpoint,
			Retry:    cfg.Transport.StreamRetry,
		}), nil
	case config.TransportNATS:
		natsConfig := transport.DefaultNATSConfig()
		natsConfig.URL = cfg.NATS.URL
		natsConfig.Subject = cfg.NATS.Subject
		natsConfig.MaxReconnects = cfg.NATS.MaxReconnects
		natsConfig.ReconnectWait = cfg.NATS.ReconnectWait
		return transport.NewNATSSubscriber(natsConfig, clock), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", config.ErrInvalidConfig, cfg.Transport.Kind)
	}
}

// Timings maps the gate section of cfg onto machine timings
func Timings(cfg *config.Config) machine.Timings {
	return machine.Timings{
		AutoClose:        cfg.Gate.AutoClose,
		ResetDelay:       cfg.Gate.ResetDelay,
		ParticleCount:    cfg.Gate.ParticleCount,
		ParticleStagger:  cfg.Gate.ParticleStagger,
		ParticleLifetime: cfg.Gate.ParticleLifetime,
	}
}

// Machine returns the gate state machine
func (s *Service) Machine() *machine.Machine { return s.machine }

// Model returns the live display model
func (s *Service) Model() *presentation.Model { return s.model }

// Display returns the display service, or nil when it is disabled
func (s *Service) Display() *display.Service { return s.display }

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Component errors are returned joined.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Str("transport", s.adapter.Name()).
		Bool("display", s.display != nil).
		Msg("starting outpost kiosk")

	notifications := make(chan events.Notification, notificationBuffer)
	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("component", name).Msg("component failed")
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	run("machine", func(ctx context.Context) error {
		return s.machine.Run(ctx, notifications)
	})
	run("transport", func(ctx context.Context) error {
		return s.adapter.Run(ctx, notifications)
	})
	if s.display != nil {
		run("display", s.display.Start)
	}

	<-ctx.Done()
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}

	log.Info().Msg("outpost kiosk stopped")
	return errors.Join(errs...)
}
