package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"IMGateway/logger"
	"IMGateway/middleware/security"
	"IMGateway/tools/errs"
	"IMGateway/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// HandleWS upgrades an authenticated request and runs the connection
// until the client goes away.
func (s *Server) HandleWS(c *gin.Context) {
	userID := security.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed user=%s err=%v", userID, err)
		return
	}

	connID := uuid.NewString()
	rec, first, err := s.conns.Register(connID, userID, ws)
	if err != nil {
		logger.Errorf("register failed conn=%s user=%s err=%v", connID, userID, err)
		_ = ws.Close()
		return
	}
	s.conns.AttachPongHandler(ws, connID)
	logger.Infof("connected conn=%s user=%s first=%v remote=%s", connID, userID, first, rec.Remote)

	if first {
		s.presence.HandleConnect(c.Request.Context(), userID)
	}
	rec.Enqueue(BuildEvent(EventConnected, ConnectedEvent{
		ConnID:         connID,
		GatewayID:      s.conf.GatewayID,
		PingIntervalMS: s.conf.PingInterval().Milliseconds(),
	}))

	done := make(chan struct{})
	safe.SafeGo(func() { s.writePump(rec, done) })

	s.readLoop(rec)

	// Disconnect path. Typing and presence only change once the
	// registry confirms this was the user's last connection; closing one
	// device of a multi-device user must not clear an indicator that is
	// still live elsewhere. The room cache outlives the registry entry,
	// so the stop broadcasts still route.
	uid, last := s.conns.Unregister(connID)
	if last && uid != "" {
		s.typing.StopAll(uid)
		s.presence.HandleDisconnect(context.Background(), uid)
	}
	close(done)
	logger.Infof("disconnected conn=%s user=%s last=%v", connID, userID, last)
}

func (s *Server) readLoop(rec *WsConn) {
	for {
		_, raw, err := rec.Conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := ParseFrameJSON(raw)
		if err != nil {
			rec.Enqueue(BuildErrorFrame(err, s.conf.Debug))
			continue
		}
		s.dispatchFrame(frame, rec)
	}
}

// dispatchFrame runs one handler with panic isolation. A handler error
// or panic produces an error frame on the submitting connection only.
func (s *Server) dispatchFrame(frame *Frame, rec *WsConn) {
	h, ok := s.disp.Get(frame.Type)
	if !ok {
		rec.Enqueue(BuildErrorFrame(
			errs.ErrValidation.WrapMsg("unknown frame type", "type", frame.Type),
			s.conf.Debug))
		return
	}
	err := safe.Recovered(func() error {
		return h.Handle(&Context{S: s}, frame, rec)
	})
	if err != nil {
		logger.Debugf("handler error conn=%s type=%s err=%v", rec.ID, frame.Type, err)
		rec.Enqueue(BuildErrorFrame(err, s.conf.Debug))
	}
}

// writePump drains the send queue and keeps the connection alive with
// periodic pings. It is the only goroutine writing to the socket.
func (s *Server) writePump(rec *WsConn, done chan struct{}) {
	ticker := time.NewTicker(s.conf.PingInterval())
	defer func() {
		ticker.Stop()
		_ = rec.Conn.Close()
	}()
	for {
		select {
		case payload := <-rec.SendChan:
			_ = rec.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rec.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = rec.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rec.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = rec.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
