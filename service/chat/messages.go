package chat

import (
	"context"
	"strings"
	"time"

	"IMGateway/logger"
	"IMGateway/service/storage"
	"IMGateway/tools/errs"
)

// Notifier pushes offline notifications for targets with no live
// connection. Implemented by the kafka producer in the dispatcher
// package; a nil notifier disables pushes.
type Notifier interface {
	NotifyOffline(ctx context.Context, userID string, msg *storage.Message)
}

// MessageService implements the message lifecycle: send, edit, delete,
// react and forward. All authorization answers come from the store;
// the room cache is only consulted for delivery targets.
type MessageService struct {
	store      storage.Store
	registry   *ConnManager
	rooms      *RoomIndex
	fanout     *Fanout
	notifier   Notifier
	editWindow time.Duration
	clock      func() time.Time
}

func NewMessageService(store storage.Store, registry *ConnManager, rooms *RoomIndex, fanout *Fanout, notifier Notifier, editWindow time.Duration) *MessageService {
	if editWindow <= 0 {
		editWindow = 5 * time.Minute
	}
	return &MessageService{
		store:      store,
		registry:   registry,
		rooms:      rooms,
		fanout:     fanout,
		notifier:   notifier,
		editWindow: editWindow,
		clock:      time.Now,
	}
}

// Send persists a message and fans it out. Persistence failure aborts
// the whole operation: nothing is delivered that is not stored.
func (s *MessageService) Send(ctx context.Context, senderID string, req *SendMessageReq) (*storage.Message, error) {
	return s.send(ctx, senderID, req, "")
}

func (s *MessageService) send(ctx context.Context, senderID string, req *SendMessageReq, forwardOf string) (*storage.Message, error) {
	if err := s.validateSend(req); err != nil {
		return nil, err
	}
	if req.RoomID != "" {
		if err := s.authorizeRoomSend(ctx, req.RoomID, senderID); err != nil {
			return nil, err
		}
	} else {
		if err := s.authorizeDirectSend(ctx, senderID, req.ReceiverID); err != nil {
			return nil, err
		}
	}

	msg := &storage.Message{
		RoomID:     req.RoomID,
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Type:       req.Type,
		ReplyTo:    req.ReplyTo,
		ForwardOf:  forwardOf,
	}
	if msg.Type == "" {
		msg.Type = "text"
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, errs.ErrPersistence.WrapMsg("save message failed", "sender", senderID)
	}

	s.deliver(ctx, msg)
	return msg, nil
}

// Edit rewrites the content of the caller's own recent message and
// broadcasts the change to everyone who got the original.
func (s *MessageService) Edit(ctx context.Context, userID, messageID, newContent string) (*storage.Message, error) {
	if messageID == "" || strings.TrimSpace(newContent) == "" {
		return nil, errs.ErrValidation.WrapMsg("message id and new content are required")
	}
	msg, err := s.visibleMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, errs.ErrNotAuthor.Wrap()
	}
	now := s.clock()
	if now.Sub(msg.CreatedAt) > s.editWindow {
		return nil, errs.ErrEditWindowExpired.Wrap()
	}
	if err := s.store.UpdateMessageContent(ctx, messageID, newContent, now); err != nil {
		return nil, errs.ErrPersistence.WrapMsg("edit message failed", "message", messageID)
	}
	msg.Content = newContent
	msg.EditedAt = now

	payload := BuildEvent(EventMessageEdited, EditEvent{
		MessageID:  msg.ID,
		RoomID:     msg.RoomID,
		ReceiverID: msg.ReceiverID,
		EditorID:   userID,
		NewContent: newContent,
		EditedAt:   now.UnixMilli(),
	})
	s.fanout.Broadcast(s.audienceConns(msg), payload)
	return msg, nil
}

// Delete soft-deletes a message. Allowed for the author, and in rooms
// for members whose role can moderate.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) error {
	if messageID == "" {
		return errs.ErrValidation.WrapMsg("message id is required")
	}
	msg, err := s.visibleMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		if msg.Direct() {
			return errs.ErrInsufficientRole.Wrap()
		}
		m, merr := s.store.Membership(ctx, msg.RoomID, userID)
		if merr == storage.ErrNotFound {
			return errs.ErrNotAMember.Wrap()
		}
		if merr != nil {
			return errs.ErrPersistence.WrapMsg("membership lookup failed", "room", msg.RoomID)
		}
		if !m.Role.CanModerate() {
			return errs.ErrInsufficientRole.Wrap()
		}
	}
	if err := s.store.SoftDeleteMessage(ctx, messageID); err != nil {
		return errs.ErrPersistence.WrapMsg("delete message failed", "message", messageID)
	}

	payload := BuildEvent(EventMessageDeleted, DeleteEvent{
		MessageID:  msg.ID,
		RoomID:     msg.RoomID,
		ReceiverID: msg.ReceiverID,
		DeleterID:  userID,
	})
	s.fanout.Broadcast(s.audienceConns(msg), payload)
	return nil
}

// React adds or removes the caller's reaction and broadcasts the
// recomputed counts. Adding the same reaction twice is idempotent.
func (s *MessageService) React(ctx context.Context, userID, messageID, emoji, action string) (map[string]int, error) {
	if messageID == "" || emoji == "" {
		return nil, errs.ErrValidation.WrapMsg("message id and emoji are required")
	}
	if action != "add" && action != "remove" {
		return nil, errs.ErrValidation.WrapMsg("unknown reaction action", "action", action)
	}
	msg, err := s.visibleMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, msg, userID); err != nil {
		return nil, err
	}

	if action == "add" {
		err = s.store.AddReaction(ctx, messageID, userID, emoji)
	} else {
		err = s.store.RemoveReaction(ctx, messageID, userID, emoji)
	}
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("reaction update failed", "message", messageID)
	}
	counts, err := s.store.ReactionCounts(ctx, messageID)
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("reaction counts failed", "message", messageID)
	}

	payload := BuildEvent(EventReaction, ReactionEvent{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		Action:    action,
		Counts:    counts,
	})
	s.fanout.Broadcast(s.audienceConns(msg), payload)
	return counts, nil
}

// Forward re-sends an existing message into a new target, recording the
// source. The caller must be able to view the source, and the send runs
// through the same authorization as an original message.
func (s *MessageService) Forward(ctx context.Context, userID string, req *ForwardMessageReq) (*storage.Message, error) {
	if req.MessageID == "" {
		return nil, errs.ErrValidation.WrapMsg("message id is required")
	}
	src, err := s.visibleMessage(ctx, req.MessageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, src, userID); err != nil {
		return nil, err
	}
	return s.send(ctx, userID, &SendMessageReq{
		RoomID:     req.RoomID,
		ReceiverID: req.ReceiverID,
		Content:    src.Content,
		Type:       src.Type,
	}, src.ID)
}

func (s *MessageService) validateSend(req *SendMessageReq) error {
	hasRoom := req.RoomID != ""
	hasReceiver := req.ReceiverID != ""
	if hasRoom == hasReceiver {
		return errs.ErrValidation.WrapMsg("exactly one of room_id and receiver_id is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return errs.ErrValidation.WrapMsg("content is required")
	}
	return nil
}

func (s *MessageService) authorizeRoomSend(ctx context.Context, roomID, senderID string) error {
	m, err := s.store.Membership(ctx, roomID, senderID)
	if err == storage.ErrNotFound {
		return errs.ErrNotAMember.Wrap()
	}
	if err != nil {
		return errs.ErrPersistence.WrapMsg("membership lookup failed", "room", roomID)
	}
	if m.Muted(s.clock()) {
		return errs.ErrMuted.Wrap()
	}
	return nil
}

func (s *MessageService) authorizeDirectSend(ctx context.Context, senderID, receiverID string) error {
	blocked, err := s.store.IsBlocked(ctx, receiverID, senderID)
	if err != nil {
		return errs.ErrPersistence.WrapMsg("block lookup failed", "receiver", receiverID)
	}
	if blocked {
		return errs.ErrBlocked.Wrap()
	}
	return nil
}

// authorizeView checks that the user may see the message: a room
// member for room messages, one of the two endpoints for direct ones.
func (s *MessageService) authorizeView(ctx context.Context, msg *storage.Message, userID string) error {
	if msg.Direct() {
		if userID != msg.SenderID && userID != msg.ReceiverID {
			return errs.ErrInsufficientRole.Wrap()
		}
		return nil
	}
	_, err := s.store.Membership(ctx, msg.RoomID, userID)
	if err == storage.ErrNotFound {
		return errs.ErrNotAMember.Wrap()
	}
	if err != nil {
		return errs.ErrPersistence.WrapMsg("membership lookup failed", "room", msg.RoomID)
	}
	return nil
}

// visibleMessage loads a message, treating deleted ones as missing.
func (s *MessageService) visibleMessage(ctx context.Context, messageID string) (*storage.Message, error) {
	msg, err := s.store.Message(ctx, messageID)
	if err == storage.ErrNotFound {
		return nil, errs.ErrMessageNotFound.Wrap()
	}
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("message lookup failed", "message", messageID)
	}
	if msg.Deleted {
		return nil, errs.ErrMessageNotFound.Wrap()
	}
	return msg, nil
}

// deliver fans the stored message out to every live connection of its
// audience and hands offline targets to the notifier.
func (s *MessageService) deliver(ctx context.Context, msg *storage.Message) {
	payload := BuildMessageEvent(msg)

	if msg.Direct() {
		users := []string{msg.SenderID, msg.ReceiverID}
		s.fanout.Broadcast(s.registry.ConnectionsOfAll(users), payload)
		if !s.registry.IsOnline(msg.ReceiverID) {
			s.notifyOffline(ctx, msg.ReceiverID, msg)
		}
		return
	}

	subscribed := s.rooms.MembersOf(msg.RoomID)
	s.fanout.Broadcast(s.registry.ConnectionsOfAll(subscribed), payload)

	// The offline set comes from the persistent roster, not the cache,
	// so members who never subscribed on this gateway still get pushed.
	memberIDs, err := s.store.RoomMemberIDs(ctx, msg.RoomID)
	if err != nil {
		logger.Warnf("room roster lookup failed room=%s err=%v", msg.RoomID, err)
		return
	}
	for _, uid := range memberIDs {
		if uid == msg.SenderID || s.registry.IsOnline(uid) {
			continue
		}
		s.notifyOffline(ctx, uid, msg)
	}
}

// audienceConns returns the live connections that should see events
// about an existing message.
func (s *MessageService) audienceConns(msg *storage.Message) []*WsConn {
	if msg.Direct() {
		return s.registry.ConnectionsOfAll([]string{msg.SenderID, msg.ReceiverID})
	}
	return s.registry.ConnectionsOfAll(s.rooms.MembersOf(msg.RoomID))
}

func (s *MessageService) notifyOffline(ctx context.Context, userID string, msg *storage.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyOffline(ctx, userID, msg)
}
