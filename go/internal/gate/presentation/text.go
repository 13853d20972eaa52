package presentation

import (
	"fmt"
	"strings"
)

// Display copy
const (
	IdleWelcomeText = "OUTPOST ACCESS"

	StatusConnecting   = "Connecting..."
	StatusReady        = "Ready for authorization"
	StatusGranted      = "Access granted!"
	StatusReconnecting = "Reconnecting..."
)

// ParticleColors are cycled through in spawn order
var ParticleColors = []string{"#FFE66D", "#00D4FF", "#FF6B35"}

// WelcomeText renders the banner headline for a visitor
func WelcomeText(subject string) string {
	return fmt.Sprintf("WELCOME, %s!", strings.ToUpper(subject))
}

// DockText renders the dock instruction line
func DockText(dock string) string {
	return fmt.Sprintf("Please proceed to Dock Door %s", dock)
}
