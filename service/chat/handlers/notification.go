package handlers

import (
	"IMGateway/service/chat"
	"IMGateway/tools/errs"
)

type NotificationReadHandler struct{}

func (h *NotificationReadHandler) Type() string { return chat.FrameNotificationRead }

func (h *NotificationReadHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.NotificationReadReq
	if err := decode(f, &req); err != nil {
		return err
	}
	if len(req.NotificationIDs) == 0 {
		return errs.ErrValidation.WrapMsg("notification_ids is required")
	}
	octx, cancel := opContext()
	defer cancel()
	if err := ctx.S.Store().MarkNotificationsRead(octx, conn.UserID, req.NotificationIDs); err != nil {
		return errs.ErrPersistence.WrapMsg("mark notifications read failed")
	}
	conn.Enqueue(chat.BuildEvent(chat.EventNotificationRead, chat.NotificationReadEvent{
		NotificationIDs: req.NotificationIDs,
	}))
	return nil
}
