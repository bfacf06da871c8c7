package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kallax-audio/audiocore/internal/dispatcher"
	"github.com/kallax-audio/audiocore/internal/events"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	maxMsgSize   = 4096
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(_ *http.Request) bool { return true },
}

// submitter is the subset of *dispatcher.Dispatcher the bridge needs,
// narrowed so a test can substitute a fake without wiring a full
// dispatcher.
type submitter interface {
	Submit(cmd dispatcher.Command)
}

// Handler upgrades the request to a WebSocket connection: incoming text
// frames are decoded into commands and submitted to disp; every event
// published on bus afterwards is forwarded to this client in the same
// tagged-JSON shape. One goroutine pair (read/write pump) per
// connection — every client here sees the same single command stream
// and event feed, with no per-connection roles.
func Handler(disp submitter, bus *events.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("ws: upgrade failed", "err", err)
			return
		}

		sub := bus.Subscribe()
		done := make(chan struct{})
		go writePump(conn, sub, done)
		readPump(conn, disp)
		close(done)
		sub.Close()
	}
}

func readPump(conn *websocket.Conn, disp submitter) {
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := decodeCommand(raw)
		if err != nil {
			slog.Warn("ws: dropping malformed command frame", "err", err)
			continue
		}
		disp.Submit(cmd)
	}
}

func writePump(conn *websocket.Conn, sub *events.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case <-done:
			return
		case <-sub.Lagged:
			b, _ := lagged()
			if !write(conn, b) {
				return
			}
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			b, err := encodeEvent(ev)
			if err != nil {
				slog.Warn("ws: encode event failed", "err", err)
				continue
			}
			if !write(conn, b) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, b []byte) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}
