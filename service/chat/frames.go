package chat

import (
	"encoding/json"
	"time"

	"IMGateway/service/storage"
	"IMGateway/tools/errs"
)

// Inbound command types, one per logical client action.
const (
	FrameJoinRoom         = "join_room"
	FrameLeaveRoom        = "leave_room"
	FrameSendMessage      = "send_message"
	FrameEditMessage      = "edit_message"
	FrameDeleteMessage    = "delete_message"
	FrameReactMessage     = "react_message"
	FrameForwardMessage   = "forward_message"
	FrameTypingStart      = "typing_start"
	FrameTypingStop       = "typing_stop"
	FrameStatusChange     = "status_change"
	FrameCallOffer        = "call_offer"
	FrameCallAnswer       = "call_answer"
	FrameCallCandidate    = "call_candidate"
	FrameCallEnd          = "call_end"
	FrameNotificationRead = "notification_read"
	FramePing             = "ping"
)

// Outbound event types.
const (
	EventConnected        = "connected"
	EventPong             = "pong"
	EventError            = "error"
	EventRoomJoined       = "room_joined_sent"
	EventRoomLeft         = "room_left_sent"
	EventMessageSent      = "message_sent"
	EventMessageEdited    = "message_edited_broadcast"
	EventMessageDeleted   = "message_deleted_broadcast"
	EventReaction         = "message_reaction_broadcast"
	EventTypingStart      = "typing_start_broadcast"
	EventTypingStop       = "typing_stop_broadcast"
	EventPresence         = "presence_broadcast"
	EventCallOffer        = "call_offer_broadcast"
	EventCallAnswer       = "call_answer_broadcast"
	EventCallCandidate    = "call_candidate_broadcast"
	EventCallEnd          = "call_end_broadcast"
	EventNotificationRead = "notification_read_sent"
)

// Frame is the wire envelope in both directions. Data carries the
// type-specific payload.
type Frame struct {
	Type string          `json:"type"`
	Ts   int64           `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.ErrValidation.WrapMsg("malformed frame", "err", err)
	}
	if f.Type == "" {
		return nil, errs.ErrValidation.WrapMsg("missing frame type")
	}
	return f, nil
}

// ---- inbound payloads ----

type JoinRoomReq struct {
	RoomID string `json:"room_id"`
}

type SendMessageReq struct {
	RoomID     string `json:"room_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Content    string `json:"content"`
	Type       string `json:"type,omitempty"`
	ReplyTo    string `json:"reply_to,omitempty"`
}

type EditMessageReq struct {
	MessageID  string `json:"message_id"`
	NewContent string `json:"new_content"`
}

type DeleteMessageReq struct {
	MessageID string `json:"message_id"`
}

type ReactMessageReq struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	Action    string `json:"action"` // add | remove
}

type ForwardMessageReq struct {
	MessageID  string `json:"message_id"`
	RoomID     string `json:"room_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
}

type TypingReq struct {
	RoomID string `json:"room_id"`
}

type StatusChangeReq struct {
	Status string `json:"status"`
}

type CallReq struct {
	TargetUserID string          `json:"target_user_id"`
	Payload      json.RawMessage `json:"payload"`
}

type NotificationReadReq struct {
	NotificationIDs []string `json:"notification_ids"`
}

// ---- outbound payloads ----

type ConnectedEvent struct {
	ConnID         string `json:"conn_id"`
	GatewayID      string `json:"gateway_id"`
	PingIntervalMS int64  `json:"ping_interval_ms"`
}

type RoomEvent struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type EditEvent struct {
	MessageID  string `json:"message_id"`
	RoomID     string `json:"room_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	EditorID   string `json:"editor_id"`
	NewContent string `json:"new_content"`
	EditedAt   int64  `json:"edited_at"`
}

type DeleteEvent struct {
	MessageID  string `json:"message_id"`
	RoomID     string `json:"room_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	DeleterID  string `json:"deleter_id"`
}

type ReactionEvent struct {
	MessageID string         `json:"message_id"`
	UserID    string         `json:"user_id"`
	Emoji     string         `json:"emoji"`
	Action    string         `json:"action"`
	Counts    map[string]int `json:"counts"`
}

type TypingEvent struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type PresenceEvent struct {
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen,omitempty"`
}

type CallEvent struct {
	FromUserID string          `json:"from_user_id"`
	Payload    json.RawMessage `json:"payload"`
}

type NotificationReadEvent struct {
	NotificationIDs []string `json:"notification_ids"`
}

type ErrorEvent struct {
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// BuildEvent marshals an outbound frame. Marshal errors cannot happen
// for our own payload types, so the result is used directly.
func BuildEvent(eventType string, payload any) []byte {
	data, _ := json.Marshal(payload)
	raw, _ := json.Marshal(&Frame{
		Type: eventType,
		Ts:   time.Now().UnixMilli(),
		Data: data,
	})
	return raw
}

// BuildMessageEvent hydrates a persisted message into a message_sent frame.
func BuildMessageEvent(msg *storage.Message) []byte {
	return BuildEvent(EventMessageSent, msg)
}

// BuildErrorFrame converts any handler error into the wire error event.
// Business CodeErrors keep their code; everything else is reported as
// an internal error. Detail is attached only in debug mode.
func BuildErrorFrame(err error, debug bool) []byte {
	coded, ok := errs.AsCodeError(err)
	if !ok {
		fallback := errs.ErrInternal
		coded = &fallback
	}
	ev := ErrorEvent{
		Code:    coded.Code,
		Name:    errs.Name(coded.Code),
		Message: coded.Msg,
	}
	if debug {
		ev.Detail = coded.Detail
	}
	return BuildEvent(EventError, ev)
}
