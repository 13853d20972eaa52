package display

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zachsouder/outpost-gate/go/internal/gate/presentation"
)

// Command is the message pushed to display clients
type Command struct {
	Type      CommandType     `json:"type"`      // Command type
	Data      json.RawMessage `json:"data"`      // Command-specific payload
	Timestamp time.Time       `json:"timestamp"` // Command creation time
}

// CommandType represents the type of display command
type CommandType string

const (
	CommandStateSync      CommandType = "state_sync"
	CommandSetWelcome     CommandType = "set_welcome"
	CommandSetDock        CommandType = "set_dock"
	CommandSetIndicator   CommandType = "set_indicator"
	CommandSetStatusText  CommandType = "set_status_text"
	CommandSetGateOpen    CommandType = "set_gate_open"
	CommandSpawnParticle  CommandType = "spawn_particle"
	CommandRemoveParticle CommandType = "remove_particle"
)

// BannerPayload is sent with set_welcome and set_dock
type BannerPayload struct {
	Text   string `json:"text"`
	Active bool   `json:"active"`
}

// StatusTextPayload is sent with set_status_text
type StatusTextPayload struct {
	Text string `json:"text"`
}

// GatePayload is sent with set_gate_open
type GatePayload struct {
	Open bool `json:"open"`
}

// RemoveParticlePayload is sent with remove_particle
type RemoveParticlePayload struct {
	ID string `json:"id"`
}

// NewCommand marshals payload into a command of the given type
func NewCommand(t CommandType, payload any, at time.Time) (*Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Command{Type: t, Data: data, Timestamp: at}, nil
}

// StateSync builds the first message every display receives
func StateSync(state presentation.State, at time.Time) (*Command, error) {
	return NewCommand(CommandStateSync, state, at)
}

// ParsePayload parses command data into the matching payload struct
func ParsePayload(cmd *Command) (any, error) {
	var target any
	switch cmd.Type {
	case CommandStateSync:
		target = &presentation.State{}
	case CommandSetWelcome, CommandSetDock:
		target = &BannerPayload{}
	case CommandSetIndicator:
		target = &presentation.Indicator{}
	case CommandSetStatusText:
		target = &StatusTextPayload{}
	case CommandSetGateOpen:
		target = &GatePayload{}
	case CommandSpawnParticle:
		target = &presentation.Particle{}
	case CommandRemoveParticle:
		target = &RemoveParticlePayload{}
	default:
		return nil, fmt.Errorf("unknown command type: %s", cmd.Type)
	}

	if err := json.Unmarshal(cmd.Data, target); err != nil {
		return nil, err
	}
	return target, nil
}
