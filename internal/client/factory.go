package client

import (
	"fmt"

	"github.com/scoreapp/score/internal/config"
)

const (
	ModeSimulated = "simulated"
	ModeHTTP      = "http"
)

// NewTransport returns the transport selected by cfg.Mode.
func NewTransport(cfg *config.TransportConfig) (Transport, error) {
	switch cfg.Mode {
	case ModeSimulated, "":
		return NewSimulatedTransport(), nil
	case ModeHTTP:
		return NewHTTPTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown transport mode %q", cfg.Mode)
	}
}
