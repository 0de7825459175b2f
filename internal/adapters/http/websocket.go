package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/pkg/metrics"
)

// WebSocketHandler returns a handler that drives one viewer session over a
// WebSocket. Every client message is a CommandRequest, for example
// {"key":"ArrowUp","shift":true} or {"code":43}; every reply is the resulting
// frame. Nothing is pushed unprompted.
//
// ?session= attaches to an existing session, otherwise a new one is opened
// and its first frame sent. ?format=proto sends frames as binary
// google.protobuf.Struct messages instead of JSON text.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		remoteAddr := c.RemoteAddr().String()
		binary := c.Query("format") == "proto"

		var mu sync.Mutex
		write := func(v any) error {
			msgType, data, err := encodeMessage(v, binary)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(msgType, data)
		}
		writeError := func(msg string) {
			_ = write(map[string]string{"error": msg})
		}

		id := c.Query("session")
		if id == "" {
			s, frame, err := deps.Sessions.Create(ctx, domain.NavigationState{Viewport: domain.FullExtent()})
			if err != nil {
				writeError(err.Error())
				return
			}
			id = s.ID()
			if err := write(SessionResponse{SessionID: id, State: s.State(), Frame: frame}); err != nil {
				return
			}
		}
		s, err := deps.Sessions.Get(id)
		if err != nil {
			writeError(err.Error())
			return
		}
		slog.Info("ws client connected", "remote", remoteAddr, "session", id, "proto", binary)

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()
		defer close(done)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var req CommandRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				writeError("invalid JSON")
				continue
			}
			cmd, err := req.Resolve(s.State().View == domain.ViewRoute)
			if err != nil {
				writeError(err.Error())
				continue
			}

			frame, err := deps.Sessions.Handle(ctx, id, cmd)
			if err != nil {
				writeError(err.Error())
				if isNotFound(err) {
					break
				}
				continue
			}
			if err := write(SessionResponse{SessionID: id, State: s.State(), Frame: frame}); err != nil {
				break
			}
			if frame.Closed {
				break
			}
		}

		slog.Info("ws client disconnected", "remote", remoteAddr, "session", id)
	}
}

// encodeMessage renders v as JSON text, or as a binary protobuf Struct
// holding the same fields.
func encodeMessage(v any, binary bool) (int, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, nil, err
	}
	if !binary {
		return websocket.TextMessage, data, nil
	}
	st, err := FrameStruct(data)
	if err != nil {
		return 0, nil, err
	}
	out, err := proto.Marshal(st)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal struct: %w", err)
	}
	return websocket.BinaryMessage, out, nil
}

// FrameStruct converts a JSON object into a protobuf Struct.
func FrameStruct(data []byte) (*structpb.Struct, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return st, nil
}
