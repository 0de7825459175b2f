package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/core/usecases"
)

// Pinger is a backing service that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionRegistry
	Routes   *usecases.RouteService
	Entities *usecases.EntityService
	Renderer ports.Renderer
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger

	// RequestTimeout bounds each REST call; zero uses 15s.
	RequestTimeout time.Duration
	// RateLimit is requests per minute per IP; zero disables limiting.
	RateLimit int
	// Source names the data source in readiness output (postgres or sqlite).
	Source string
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout <= 0 {
		return 15 * time.Second
	}
	return d.RequestTimeout
}
