package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"footballeyeq/internal/application/workspace"
)

const (
	eventBuffer  = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// EventSnapshot is the first message of every stream.
const EventSnapshot = "snapshot"

// handleEvents handles GET /api/events
// It streams every workspace event as a JSON text message, starting with a snapshot.
// A client that falls eventBuffer events behind is disconnected.
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspaceFor(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		slog.Warn("events_event", "event", "upgrade_failed", "error", err)
		return
	}
	defer conn.Close()
	uid := ws.Identity().UserID
	slog.Debug("events_event", "event", "connected", "user_id", uid)

	events := make(chan workspace.Event, eventBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	unsub := ws.Subscribe(func(e workspace.Event) {
		select {
		case events <- e:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer unsub()

	// The reader only services pongs and notices the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(e workspace.Event) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(e)
	}
	closeWith := func(code int, reason string) {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	}

	if err := send(workspace.Event{Kind: EventSnapshot, Data: ws.Snapshot()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			slog.Debug("events_event", "event", "disconnected", "user_id", uid)
			return
		case <-overflow:
			slog.Warn("events_event", "event", "slow_consumer", "user_id", uid)
			closeWith(websocket.ClosePolicyViolation, "too slow")
			return
		case e := <-events:
			if err := send(e); err != nil {
				return
			}
			if e.Kind == workspace.EventClosed {
				closeWith(websocket.CloseNormalClosure, "signed out")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
