package handlers

import (
	"IMGateway/service/chat"
)

// CallHandler relays one kind of call signaling frame. One instance is
// registered per frame type.
type CallHandler struct {
	frameType string
}

func (h *CallHandler) Type() string { return h.frameType }

func (h *CallHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.CallReq
	if err := decode(f, &req); err != nil {
		return err
	}
	return ctx.S.Signal().Relay(conn.UserID, h.frameType, req.TargetUserID, req.Payload)
}
