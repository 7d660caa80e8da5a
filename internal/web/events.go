package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/hearscribe/internal/observe"
)

const writeTimeout = 10 * time.Second

// clientFrame is what the browser may send. Only "ping" is understood.
type clientFrame struct {
	Type string `json:"type"`
}

// pongFrame answers a client ping.
type pongFrame struct {
	Type string `json:"type"`
}

// handleEvents upgrades to a WebSocket and forwards session events until
// either side goes away. The first frame is always a state snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("web: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	pings := make(chan struct{}, 1)
	go func() {
		defer cancel()
		for {
			var msg clientFrame
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			if msg.Type != "ping" {
				continue
			}
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}()

	for {
		var out any
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			out = ev
		case <-pings:
			out = pongFrame{Type: "pong"}
		}
		if err := write(ctx, conn, out); err != nil {
			if !errors.Is(err, context.Canceled) {
				observe.Logger(r.Context()).Debug("web: websocket write failed", "err", err)
			}
			return
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
