package handlers

import (
	"IMGateway/service/chat"
)

type StatusChangeHandler struct{}

func (h *StatusChangeHandler) Type() string { return chat.FrameStatusChange }

func (h *StatusChangeHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.StatusChangeReq
	if err := decode(f, &req); err != nil {
		return err
	}
	octx, cancel := opContext()
	defer cancel()
	return ctx.S.Presence().SetStatus(octx, conn.UserID, req.Status)
}
