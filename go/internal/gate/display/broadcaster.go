package display

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/zachsouder/outpost-gate/go/internal/gate/presentation"
)

// Broadcaster is a presentation.Sink that pushes every command to the
// connected displays
type Broadcaster struct {
	cm    *ConnectionManager
	clock clockwork.Clock
}

// NewBroadcaster creates a sink that broadcasts through cm
func NewBroadcaster(cm *ConnectionManager) *Broadcaster {
	return &Broadcaster{cm: cm, clock: cm.clock}
}

func (b *Broadcaster) SetWelcome(text string, active bool) {
	b.send(CommandSetWelcome, BannerPayload{Text: text, Active: active})
}

func (b *Broadcaster) SetDock(text string, active bool) {
	b.send(CommandSetDock, BannerPayload{Text: text, Active: active})
}

func (b *Broadcaster) SetIndicator(ind presentation.Indicator) {
	b.send(CommandSetIndicator, ind)
}

func (b *Broadcaster) SetStatusText(text string) {
	b.send(CommandSetStatusText, StatusTextPayload{Text: text})
}

func (b *Broadcaster) SetGateOpen(open bool) {
	b.send(CommandSetGateOpen, GatePayload{Open: open})
}

func (b *Broadcaster) SpawnParticle(p presentation.Particle) {
	b.send(CommandSpawnParticle, p)
}

func (b *Broadcaster) RemoveParticle(id string) {
	b.send(CommandRemoveParticle, RemoveParticlePayload{ID: id})
}

func (b *Broadcaster) send(t CommandType, payload any) {
	cmd, err := NewCommand(t, payload, b.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("command", string(t)).Msg("failed to build display command")
		return
	}
	b.cm.Broadcast(cmd)
}
