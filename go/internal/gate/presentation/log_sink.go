package presentation

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogSink writes each command as a structured log line. Particle traffic is
// logged at trace level since a single open produces two dozen commands.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging through the global zerolog logger
func NewLogSink() *LogSink {
	return &LogSink{logger: log.With().Str("component", "presentation").Logger()}
}

// NewLogSinkWith creates a sink logging through logger
func NewLogSinkWith(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) SetWelcome(text string, active bool) {
	l.logger.Info().Str("text", text).Bool("active", active).Msg("welcome banner")
}

func (l *LogSink) SetDock(text string, active bool) {
	l.logger.Info().Str("text", text).Bool("active", active).Msg("dock instructions")
}

func (l *LogSink) SetIndicator(ind Indicator) {
	l.logger.Debug().Bool("connected", ind.Connected).Bool("active", ind.Active).Msg("status indicator")
}

func (l *LogSink) SetStatusText(text string) {
	l.logger.Info().Str("text", text).Msg("status text")
}

func (l *LogSink) SetGateOpen(open bool) {
	l.logger.Info().Bool("open", open).Msg("gate")
}

func (l *LogSink) SpawnParticle(p Particle) {
	l.logger.Trace().
		Str("particle_id", p.ID).
		Str("color", p.Color).
		Float64("x", p.X).
		Float64("y", p.Y).
		Msg("particle spawned")
}

func (l *LogSink) RemoveParticle(id string) {
	l.logger.Trace().Str("particle_id", id).Msg("particle removed")
}
