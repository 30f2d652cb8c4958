package server

import (
	"github.com/nexis84/Eve-Market-Bot/ratelimit"
)

// HealthChecker reports chat connectivity.
type HealthChecker interface {
	Connected() bool
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	health   HealthChecker
	limiters []*ratelimit.Limiter
	hub      string
	version  string
}

// Options configures the handlers. Only Health is required.
type Options struct {
	Health   HealthChecker
	Limiters []*ratelimit.Limiter
	Hub      string
	Version  string
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(opts Options) *Handlers {
	return &Handlers{
		health:   opts.Health,
		limiters: opts.Limiters,
		hub:      opts.Hub,
		version:  opts.Version,
	}
}

func (h *Handlers) connected() bool {
	return h.health != nil && h.health.Connected()
}
