package handlers

import (
	"IMGateway/service/chat"
)

// PingHandler answers application-level pings from clients that cannot
// send websocket control frames, refreshing the liveness deadline.
type PingHandler struct{}

func (h *PingHandler) Type() string { return chat.FramePing }

func (h *PingHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	ctx.S.Conns().RefreshHeartbeat(conn.ID)
	conn.Enqueue(chat.BuildEvent(chat.EventPong, struct{}{}))
	return nil
}
