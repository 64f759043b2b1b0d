package handlers

import (
	"IMGateway/service/chat"
	"IMGateway/tools/errs"
)

type TypingStartHandler struct{}

func (h *TypingStartHandler) Type() string { return chat.FrameTypingStart }

func (h *TypingStartHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	roomID, err := typingRoom(ctx, f, conn)
	if err != nil {
		return err
	}
	ctx.S.Typing().Start(roomID, conn.UserID)
	return nil
}

type TypingStopHandler struct{}

func (h *TypingStopHandler) Type() string { return chat.FrameTypingStop }

func (h *TypingStopHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	roomID, err := typingRoom(ctx, f, conn)
	if err != nil {
		return err
	}
	ctx.S.Typing().Stop(roomID, conn.UserID)
	return nil
}

// typingRoom validates the payload and requires an active room
// subscription; typing indicators never leave rooms the user has not
// joined on this gateway.
func typingRoom(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) (string, error) {
	var req chat.TypingReq
	if err := decode(f, &req); err != nil {
		return "", err
	}
	if req.RoomID == "" {
		return "", errs.ErrValidation.WrapMsg("room_id is required")
	}
	if !ctx.S.Rooms().Contains(req.RoomID, conn.UserID) {
		return "", errs.ErrNotAMember.Wrap()
	}
	return req.RoomID, nil
}
