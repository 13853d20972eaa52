package presentation

import (
	"sync"
)

// State is everything a display needs to draw the gate scene
type State struct {
	WelcomeText   string     `json:"welcome_text"`
	WelcomeActive bool       `json:"welcome_active"`
	DockText      string     `json:"dock_text"`
	DockActive    bool       `json:"dock_active"`
	Indicator     Indicator  `json:"indicator"`
	StatusText    string     `json:"status_text"`
	GateOpen      bool       `json:"gate_open"`
	Particles     []Particle `json:"particles"`
}

// IdleState is what a display shows before any event arrives
func IdleState() State {
	return State{
		WelcomeText: IdleWelcomeText,
		StatusText:  StatusConnecting,
		Particles:   []Particle{},
	}
}

// Model is a Sink that keeps the current display state. It is safe for
// concurrent use: the machine writes while display handlers read.
type Model struct {
	mu        sync.RWMutex
	state     State
	particles map[string]Particle
	order     []string
}

// NewModel creates a model in the idle state
func NewModel() *Model {
	return &Model{
		state:     IdleState(),
		particles: make(map[string]Particle),
	}
}

func (m *Model) SetWelcome(text string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.WelcomeText = text
	m.state.WelcomeActive = active
}

func (m *Model) SetDock(text string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.DockText = text
	m.state.DockActive = active
}

func (m *Model) SetIndicator(ind Indicator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Indicator = ind
}

func (m *Model) SetStatusText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.StatusText = text
}

func (m *Model) SetGateOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.GateOpen = open
}

func (m *Model) SpawnParticle(p Particle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.particles[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	m.particles[p.ID] = p
}

func (m *Model) RemoveParticle(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.particles[id]; !exists {
		return
	}
	delete(m.particles, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns a copy of the current state with particles in spawn order
func (m *Model) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.state
	s.Particles = make([]Particle, 0, len(m.order))
	for _, id := range m.order {
		s.Particles = append(s.Particles, m.particles[id])
	}
	return s
}
