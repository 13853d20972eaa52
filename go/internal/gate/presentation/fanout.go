package presentation

// Fanout forwards every command to each sink in order
type Fanout []Sink

func (f Fanout) SetWelcome(text string, active bool) {
	for _, s := range f {
		s.SetWelcome(text, active)
	}
}

func (f Fanout) SetDock(text string, active bool) {
	for _, s := range f {
		s.SetDock(text, active)
	}
}

func (f Fanout) SetIndicator(ind Indicator) {
	for _, s := range f {
		s.SetIndicator(ind)
	}
}

func (f Fanout) SetStatusText(text string) {
	for _, s := range f {
		s.SetStatusText(text)
	}
}

func (f Fanout) SetGateOpen(open bool) {
	for _, s := range f {
		s.SetGateOpen(open)
	}
}

func (f Fanout) SpawnParticle(p Particle) {
	for _, s := range f {
		s.SpawnParticle(p)
	}
}

func (f Fanout) RemoveParticle(id string) {
	for _, s := range f {
		s.RemoveParticle(id)
	}
}
