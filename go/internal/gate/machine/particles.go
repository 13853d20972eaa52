package machine

import (
	"time"

	"github.com/google/uuid"

	"github.com/zachsouder/outpost-gate/go/internal/gate/presentation"
)

// spawnParticles schedules the sparkle burst for an open. Each particle
// appears one stagger after the previous and is removed after its lifetime.
func (m *Machine) spawnParticles() {
	for i := 0; i < m.timings.ParticleCount; i++ {
		delay := time.Duration(i) * m.timings.ParticleStagger
		m.timers.Schedule(timerParticle, delay, func() {
			m.spawnParticle(i)
		})
	}
}

func (m *Machine) spawnParticle(i int) {
	colors := presentation.ParticleColors
	p := presentation.Particle{
		ID:    uuid.NewString(),
		Color: colors[i%len(colors)],
		X:     m.anchor.X + (m.rng.Float64()-0.5)*m.spread,
		Y:     m.anchor.Y + (m.rng.Float64()-0.5)*m.spread,
	}
	m.sink.SpawnParticle(p)

	m.timers.Schedule(timerParticleExpire, m.timings.ParticleLifetime, func() {
		m.sink.RemoveParticle(p.ID)
	})
}
