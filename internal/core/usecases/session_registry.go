package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/pkg/metrics"
)

// SessionRegistry holds open viewer sessions by id.
type SessionRegistry struct {
	entities  *EntityService
	routes    *RouteService
	publisher ports.EventPublisher
	opts      ViewerOptions
	idle      time.Duration

	mu       sync.Mutex
	sessions map[string]*ViewerService
}

// NewSessionRegistry creates a registry. Sessions idle for longer than idle
// are dropped by Sweep; zero keeps them until closed.
func NewSessionRegistry(entities *EntityService, routes *RouteService, publisher ports.EventPublisher,
	opts ViewerOptions, idle time.Duration) *SessionRegistry {
	return &SessionRegistry{
		entities:  entities,
		routes:    routes,
		publisher: publisher,
		opts:      opts,
		idle:      idle,
		sessions:  make(map[string]*ViewerService),
	}
}

// Create opens a session and renders its first frame.
func (r *SessionRegistry) Create(ctx context.Context, initial domain.NavigationState) (*ViewerService, *domain.Frame, error) {
	id := uuid.NewString()
	s := NewViewerService(id, r.entities, r.routes, r.publisher, r.opts, initial)
	frame, err := s.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	slog.Info("viewer session opened", "session", id, "view", frame.View)
	return s, frame, nil
}

// Get returns an open session.
func (r *SessionRegistry) Get(id string) (*ViewerService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}
	return s, nil
}

// Handle runs cmd on session id. A Quit removes the session.
func (r *SessionRegistry) Handle(ctx context.Context, id string, cmd domain.Command) (*domain.Frame, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	frame, err := s.Handle(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if frame.Closed {
		r.remove(id)
	}
	return frame, nil
}

// Close quits session id.
func (r *SessionRegistry) Close(id string) (*domain.Frame, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	frame := s.Close()
	r.remove(id)
	return frame, nil
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle since before now minus the idle timeout and
// returns how many were dropped.
func (r *SessionRegistry) Sweep(now time.Time) int {
	if r.idle <= 0 {
		return 0
	}
	r.mu.Lock()
	var expired []*ViewerService
	for id, s := range r.sessions {
		if now.Sub(s.IdleSince()) > r.idle {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
		slog.Info("viewer session expired", "session", s.ID())
	}
	metrics.ActiveSessions.Set(float64(n))
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Shutdown closes every session.
func (r *SessionRegistry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*ViewerService)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	metrics.ActiveSessions.Set(0)
}

func (r *SessionRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}
