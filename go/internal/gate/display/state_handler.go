package display

import (
	"net/http"

	"github.com/zachsouder/outpost-gate/go/internal/gate/machine"
	"github.com/zachsouder/outpost-gate/go/internal/gate/presentation"
)

// GateStateProvider exposes the state machine's published snapshot
type GateStateProvider interface {
	Snapshot() machine.Snapshot
}

// StateResponse is the body of GET /api/display/state
type StateResponse struct {
	Display     presentation.State `json:"display"`
	Gate        *machine.Snapshot  `json:"gate,omitempty"`
	Connections int                `json:"connections"`
}

// StateHandler handles HTTP requests for display state
type StateHandler struct {
	display StateProvider
	gate    GateStateProvider
	cm      *ConnectionManager
}

// NewStateHandler creates a new state handler. gate may be nil.
func NewStateHandler(display StateProvider, gate GateStateProvider, cm *ConnectionManager) *StateHandler {
	return &StateHandler{display: display, gate: gate, cm: cm}
}

// HandleDisplayState returns the current display and gate state
func (h *StateHandler) HandleDisplayState(w http.ResponseWriter, r *http.Request) {
	resp := StateResponse{
		Display:     presentation.IdleState(),
		Connections: h.cm.GetConnectionStats().TotalConnections,
	}
	if h.display != nil {
		resp.Display = h.display.Snapshot()
	}
	if h.gate != nil {
		snapshot := h.gate.Snapshot()
		resp.Gate = &snapshot
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth reports liveness
func (h *StateHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// RegisterStateRoutes registers the state routes with an HTTP mux
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/display/state", h.HandleDisplayState)
	mux.HandleFunc("GET /health", h.HandleHealth)
}
