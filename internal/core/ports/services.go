package ports

import (
	"context"
	"io"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// EventPublisher publishes viewer events to a message broker.
type EventPublisher interface {
	PublishNotice(ctx context.Context, sessionID, notice string) error
	PublishFrame(ctx context.Context, sessionID string, frame *domain.Frame) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Renderer paints a frame and writes the encoded image to w.
type Renderer interface {
	Render(ctx context.Context, frame *domain.Frame, w io.Writer) error
}
