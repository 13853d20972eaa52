package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/zachsouder/outpost-gate/go/clients"
	"github.com/zachsouder/outpost-gate/go/internal/gate/events"
)

const (
	// StatusEndpoint is the gate status snapshot the poller reads
	StatusEndpoint = "/api/gate/status"
	// DefaultPollInterval is the fixed polling cadence
	DefaultPollInterval = 1000 * time.Millisecond
)

// ErrMalformedSnapshot is returned when the status body is not a snapshot
var ErrMalformedSnapshot = errors.New("malformed status snapshot")

// PollerConfig configures a Poller
type PollerConfig struct {
	Interval time.Duration
	Endpoint string
	// RequestTimeout bounds one poll. Zero keeps the client default.
	RequestTimeout time.Duration
}

// DefaultPollerConfig returns the production polling configuration
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval: DefaultPollInterval,
		Endpoint: StatusEndpoint,
	}
}

// Poller reads the status snapshot on a fixed cadence and emits GateOpen
// for every snapshot newer than the last one it honored.
type Poller struct {
	client   *clients.BaseClient
	clock    clockwork.Clock
	config   PollerConfig
	lastSeen int64
}

// NewPoller creates a poller against the gate server at baseURL
func NewPoller(baseURL string, clock clockwork.Clock, config PollerConfig) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Endpoint == "" {
		config.Endpoint = StatusEndpoint
	}

	client := clients.NewBaseClient(baseURL)
	client.SetHeader("Accept", "application/json")
	if config.RequestTimeout > 0 {
		client.SetTimeout(config.RequestTimeout)
	}

	return &Poller{
		client: client,
		clock:  clock,
		config: config,
	}
}

func (p *Poller) Name() string { return NamePoll }

// LastSeen returns the timestamp of the last honored snapshot
func (p *Poller) LastSeen() int64 { return p.lastSeen }

// Run emits Connected, then polls once per interval until ctx is cancelled.
// Poll failures are logged and the cadence is kept.
func (p *Poller) Run(ctx context.Context, out chan<- events.Notification) error {
	log.Info().
		Str("endpoint", p.client.URL(p.config.Endpoint)).
		Dur("interval", p.config.Interval).
		Msg("starting gate status poller")

	// There is no connection to lose, so the poller is connected from the start
	if !emit(ctx, out, events.Connected(NamePoll, p.clock.Now())) {
		return nil
	}

	ticker := p.clock.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gate status poller shutting down")
			return nil
		case <-ticker.Chan():
			n, ok, err := p.Poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("gate status poll failed")
				continue
			}
			if ok && !emit(ctx, out, n) {
				return nil
			}
		}
	}
}

// Poll performs a single status request. It returns ok == true with a
// GateOpen notification only for an open snapshot newer than LastSeen, which
// it then advances.
func (p *Poller) Poll(ctx context.Context) (events.Notification, bool, error) {
	body, err := p.client.Get(ctx, p.config.Endpoint)
	if err != nil {
		return events.Notification{}, false, fmt.Errorf("get gate status: %w", err)
	}

	var snapshot events.StatusSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return events.Notification{}, false, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}

	if !snapshot.IsOpen || snapshot.Timestamp <= p.lastSeen {
		return events.Notification{}, false, nil
	}

	n, ok, err := snapshot.Notification(NamePoll, p.clock.Now())
	if err != nil {
		return events.Notification{}, false, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	if !ok {
		return events.Notification{}, false, nil
	}

	p.lastSeen = snapshot.Timestamp
	log.Debug().
		Int64("timestamp", snapshot.Timestamp).
		Str("subject", n.Subject).
		Str("dock", n.Dock).
		Msg("new gate open snapshot")
	return n, true, nil
}
