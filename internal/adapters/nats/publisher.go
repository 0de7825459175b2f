package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// Subject roots; the session id is appended.
const (
	NoticeSubject = "kabina.viewer.notice."
	FrameSubject  = "kabina.viewer.frame."
	streamName    = "KABINA_VIEWER"
)

// Notice is the payload of a notice event.
type Notice struct {
	Session string    `json:"session"`
	Notice  string    `json:"notice"`
	At      time.Time `json:"at"`
}

// FrameAudit summarises a frame; the draw commands are not published.
type FrameAudit struct {
	Session       string          `json:"session"`
	Seq           uint64          `json:"seq"`
	View          domain.ViewKind `json:"view"`
	RouteIndex    int             `json:"route_index"`
	RouteID       int64           `json:"route_id,omitempty"`
	Magnification int             `json:"magnification"`
	Commands      int             `json:"commands"`
	Stale         bool            `json:"stale"`
	Closed        bool            `json:"closed,omitempty"`
	RenderedAt    time.Time       `json:"rendered_at"`
}

// NewFrameAudit builds the audit record of frame.
func NewFrameAudit(sessionID string, f *domain.Frame) FrameAudit {
	return FrameAudit{
		Session:       sessionID,
		Seq:           f.Seq,
		View:          f.View,
		RouteIndex:    f.RouteIndex,
		RouteID:       f.RouteID,
		Magnification: f.Magnification,
		Commands:      len(f.Commands),
		Stale:         f.Stale,
		Closed:        f.Closed,
		RenderedAt:    f.RenderedAt,
	}
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the viewer stream exists.
func NewPublisher(url string, maxAge time.Duration) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("kabinaview"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{NoticeSubject + ">", FrameSubject + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAge,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishNotice publishes an operator notice for a session.
func (p *Publisher) PublishNotice(ctx context.Context, sessionID, notice string) error {
	data, err := json.Marshal(Notice{Session: sessionID, Notice: notice, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(NoticeSubject+sessionID, data, nats.Context(ctx))
	return err
}

// PublishFrame publishes the audit record of a committed frame.
func (p *Publisher) PublishFrame(ctx context.Context, sessionID string, frame *domain.Frame) error {
	data, err := json.Marshal(NewFrameAudit(sessionID, frame))
	if err != nil {
		return err
	}
	_, err = p.js.Publish(FrameSubject+sessionID, data, nats.Context(ctx))
	return err
}

// Conn exposes the connection for health checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
