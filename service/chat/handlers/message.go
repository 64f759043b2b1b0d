package handlers

import (
	"IMGateway/service/chat"
)

type SendMessageHandler struct{}

func (h *SendMessageHandler) Type() string { return chat.FrameSendMessage }

func (h *SendMessageHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.SendMessageReq
	if err := decode(f, &req); err != nil {
		return err
	}
	octx, cancel := opContext()
	defer cancel()
	_, err := ctx.S.Messages().Send(octx, conn.UserID, &req)
	return err
}

type EditMessageHandler struct{}

func (h *EditMessageHandler) Type() string { return chat.FrameEditMessage }

func (h *EditMessageHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.EditMessageReq
	if err := decode(f, &req); err != nil {
		return err
	}
	octx, cancel := opContext()
	defer cancel()
	_, err := ctx.S.Messages().Edit(octx, conn.UserID, req.MessageID, req.NewContent)
	return err
}

type DeleteMessageHandler struct{}

func (h *DeleteMessageHandler) Type() string { return chat.FrameDeleteMessage }

func (h *DeleteMessageHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.DeleteMessageReq
	if err := decode(f, &req); err != nil {
		return err
	}
	octx, cancel := opContext()
	defer cancel()
	return ctx.S.Messages().Delete(octx, conn.UserID, req.MessageID)
}

type ReactMessageHandler struct{}

func (h *ReactMessageHandler) Type() string { return chat.FrameReactMessage }

func (h *ReactMessageHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.ReactMessageReq
	if err := decode(f, &req); err != nil {
		return err
	}
	octx, cancel := opContext()
	defer cancel()
	_, err := ctx.S.Messages().React(octx, conn.UserID, req.MessageID, req.Emoji, req.Action)
	return err
}

type ForwardMessageHandler struct{}

func (h *ForwardMessageHandler) Type() string { return chat.FrameForwardMessage }

func (h *ForwardMessageHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	var req chat.ForwardMessageReq
	if err := decode(f, &req); err != nil {
		return err
	}
	octx, cancel := opContext()
	defer cancel()
	_, err := ctx.S.Messages().Forward(octx, conn.UserID, &req)
	return err
}
