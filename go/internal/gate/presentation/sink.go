package presentation

// Sink receives display commands from the gate state machine.
// Commands are fire-and-forget; implementations must not block the caller.
type Sink interface {
	SetWelcome(text string, active bool)
	SetDock(text string, active bool)
	SetIndicator(ind Indicator)
	SetStatusText(text string)
	SetGateOpen(open bool)
	SpawnParticle(p Particle)
	RemoveParticle(id string)
}

// Point is a screen position relative to the gate scene
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Indicator is the connection status light
type Indicator struct {
	Connected bool `json:"connected"`
	Active    bool `json:"active"`
}

// Particle is one cosmetic sparkle near the gate
type Particle struct {
	ID    string  `json:"id"`
	Color string  `json:"color"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}
