package adaptor

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ponyo877/replicator/server/domain"
)

type Adaptor struct {
	relay    Relay
	upgrader websocket.Upgrader
	cfg      domain.Config
	logger   *slog.Logger
}

func NewAdaptor(relay Relay, cfg domain.Config, logger *slog.Logger) *Adaptor {
	defaults := domain.NewConfig()
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaults.MaxMessageBytes
	}
	return &Adaptor{
		relay: relay,
		upgrader: websocket.Upgrader{
			// browsers connect from whatever page hosts the scene
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// ServeWS upgrades any path to a relay connection. The path names the room.
func (a *Adaptor) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("ws.upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	roomPath := domain.NewRoomPath(r.URL.EscapedPath())
	session, err := a.relay.Connect(roomPath, r.RemoteAddr)
	if err != nil {
		a.logger.Error("ws.connect_failed", "room", roomPath.String(), "error", err)
		conn.Close()
		return
	}
	a.logger.Debug("ws.accept", "id", session.ID, "room", roomPath.String(), "path", r.URL.Path)

	go a.writePump(conn, session)
	go a.readPump(conn, session)
}

func (a *Adaptor) readPump(conn *websocket.Conn, session *domain.Session) {
	var cause error
	defer func() {
		a.relay.Disconnect(session, cause)
		conn.Close()
	}()

	conn.SetReadLimit(a.cfg.MaxMessageBytes)
	if err := conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait)); err != nil {
		cause = err
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				a.logger.Warn("ws.read_failed", "id", session.ID, "error", err)
				cause = err
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		a.relay.HandleMessage(session, data)
	}
}

// writePump is the only writer of conn. It exits when the session's queue is
// closed or a write fails.
func (a *Adaptor) writePump(conn *websocket.Conn, session *domain.Session) {
	ticker := time.NewTicker(a.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-session.Outbound():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				a.logger.Warn("ws.write_failed", "id", session.ID, "error", err)
				a.relay.Disconnect(session, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				a.relay.Disconnect(session, err)
				return
			}
		}
	}
}
