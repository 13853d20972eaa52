package display

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the display service
type Config struct {
	ListenAddr       string
	AllowedOrigins   []string
	ShutdownTimeout  time.Duration
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the display service
func DefaultConfig() Config {
	return Config{
		ListenAddr:       ":8090",
		AllowedOrigins:   []string{"*"},
		ShutdownTimeout:  5 * time.Second,
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// Service serves gate displays over HTTP and WebSocket
type Service struct {
	config            Config
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	broadcaster       *Broadcaster

	mu       sync.Mutex
	listener net.Listener
}

// NewService creates a new display service. display is the state sent to
// newly connected clients; gate may be nil.
func NewService(config Config, display StateProvider, gate GateStateProvider, clock clockwork.Clock) *Service {
	if len(config.AllowedOrigins) > 0 && !slices.Contains(config.AllowedOrigins, "*") {
		allowed := config.AllowedOrigins
		config.ConnectionConfig.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig, display, clock)

	return &Service{
		config:            config,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(display, gate, connectionManager),
		broadcaster:       NewBroadcaster(connectionManager),
	}
}

// SetGateState sets the machine snapshot served by /api/display/state.
// Call it before Start.
func (s *Service) SetGateState(gate GateStateProvider) {
	s.stateHandler.gate = gate
}

// Sink returns the presentation sink that pushes commands to displays
func (s *Service) Sink() *Broadcaster {
	return s.broadcaster
}

// RegisterRoutes registers the display HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
}

// Handler returns every display route wrapped with CORS
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// GetStats returns statistics about connected displays
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}

// Addr returns the bound listen address once Start has begun listening
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until ctx is cancelled. A listen failure is
// returned immediately.
func (s *Service) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("display service listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve displays: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("display service shutting down")
	s.connectionManager.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown display server: %w", err)
	}
	return nil
}
