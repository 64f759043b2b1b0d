package handlers

import (
	"context"
	"encoding/json"
	"time"

	"IMGateway/service/chat"
	"IMGateway/tools/errs"
)

const opTimeout = 5 * time.Second

// RegisterAll installs every frame handler on the server's dispatcher.
func RegisterAll(s *chat.Server) {
	d := s.Dispatcher()
	d.Register(&JoinRoomHandler{})
	d.Register(&LeaveRoomHandler{})
	d.Register(&SendMessageHandler{})
	d.Register(&EditMessageHandler{})
	d.Register(&DeleteMessageHandler{})
	d.Register(&ReactMessageHandler{})
	d.Register(&ForwardMessageHandler{})
	d.Register(&TypingStartHandler{})
	d.Register(&TypingStopHandler{})
	d.Register(&StatusChangeHandler{})
	d.Register(&CallHandler{frameType: chat.FrameCallOffer})
	d.Register(&CallHandler{frameType: chat.FrameCallAnswer})
	d.Register(&CallHandler{frameType: chat.FrameCallCandidate})
	d.Register(&CallHandler{frameType: chat.FrameCallEnd})
	d.Register(&NotificationReadHandler{})
	d.Register(&PingHandler{})
}

// decode unmarshals a frame payload into the handler's request type.
func decode(f *chat.Frame, out any) error {
	if len(f.Data) == 0 {
		return errs.ErrValidation.WrapMsg("missing frame data", "type", f.Type)
	}
	if err := json.Unmarshal(f.Data, out); err != nil {
		return errs.ErrValidation.WrapMsg("malformed frame data", "type", f.Type)
	}
	return nil
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}
