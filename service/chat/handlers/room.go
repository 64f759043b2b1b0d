package handlers

import (
	"IMGateway/service/chat"
	"IMGateway/tools/errs"
)

type JoinRoomHandler struct{}

func (h *JoinRoomHandler) Type() string { return chat.FrameJoinRoom }

func (h *JoinRoomHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.JoinRoomReq
	if err := decode(f, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return errs.ErrValidation.WrapMsg("room_id is required")
	}
	octx, cancel := opContext()
	defer cancel()
	if err := ctx.S.Rooms().Join(octx, req.RoomID, conn.UserID); err != nil {
		return err
	}
	conn.Enqueue(chat.BuildEvent(chat.EventRoomJoined, chat.RoomEvent{
		RoomID: req.RoomID,
		UserID: conn.UserID,
	}))
	return nil
}

type LeaveRoomHandler struct{}

func (h *LeaveRoomHandler) Type() string { return chat.FrameLeaveRoom }

func (h *LeaveRoomHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.JoinRoomReq
	if err := decode(f, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return errs.ErrValidation.WrapMsg("room_id is required")
	}
	// Stop typing first so the room still routes the stop broadcast.
	ctx.S.Typing().Stop(req.RoomID, conn.UserID)
	ctx.S.Rooms().Leave(req.RoomID, conn.UserID)
	conn.Enqueue(chat.BuildEvent(chat.EventRoomLeft, chat.RoomEvent{
		RoomID: req.RoomID,
		UserID: conn.UserID,
	}))
	return nil
}
