// Package dispatcher bridges the gateway to the message broker: it
// publishes offline-notification payloads and consumes the membership
// event stream that keeps the gateway's room cache honest.
package dispatcher

import (
	"context"
	"encoding/json"

	"IMGateway/logger"
	"IMGateway/service/dispatcher/kafka"
	"IMGateway/service/storage"
	"IMGateway/tools/safe"
)

// OfflinePush is the payload handed to the push pipeline when a
// persisted message targets a user with no live connection.
type OfflinePush struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	RoomID    string `json:"room_id,omitempty"`
	Preview   string `json:"preview"`
	SentAt    int64  `json:"sent_at"`
}

// KafkaNotifier publishes offline pushes to a kafka topic. Delivery to
// the device is the push pipeline's problem; the gateway fires and
// forgets.
type KafkaNotifier struct {
	topic string
}

func NewKafkaNotifier(topic string) *KafkaNotifier {
	return &KafkaNotifier{topic: topic}
}

func (n *KafkaNotifier) NotifyOffline(_ context.Context, userID string, msg *storage.Message) {
	preview := msg.Content
	if len(preview) > 120 {
		preview = preview[:120]
	}
	push := OfflinePush{
		UserID:    userID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		RoomID:    msg.RoomID,
		Preview:   preview,
		SentAt:    msg.CreatedAt.UnixMilli(),
	}
	raw, err := json.Marshal(push)
	if err != nil {
		logger.Errorf("[notify] marshal push err: %v", err)
		return
	}
	safe.SafeGo(func() {
		if err := kafka.SendSync(n.topic, userID, raw); err != nil {
			logger.Errorf("[notify] push send err user=%s msg=%s: %v", userID, msg.ID, err)
		}
	})
}

// MembershipEvent mirrors a management-path change to room membership.
// The gateway only ever shrinks its cache in response; joins always go
// through the verified join path.
type MembershipEvent struct {
	Action string `json:"action"` // leave | kick | ban | room_deleted
	RoomID string `json:"room_id"`
	UserID string `json:"user_id,omitempty"`
	At     int64  `json:"at"`
}

// RoomCache is the slice of the gateway the consumer is allowed to touch.
type RoomCache interface {
	Invalidate(roomID, userID string)
	DropRoom(roomID string)
}

type membershipHandler struct {
	cache RoomCache
}

func (h *membershipHandler) Handle(_ string, _ []byte, value []byte) error {
	var ev MembershipEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		logger.Errorf("[membership] bad event: %v", err)
		return nil // poison messages are dropped, not retried
	}
	switch ev.Action {
	case "leave", "kick", "ban":
		h.cache.Invalidate(ev.RoomID, ev.UserID)
	case "room_deleted":
		h.cache.DropRoom(ev.RoomID)
	default:
		logger.Warnf("[membership] unknown action %q room=%s", ev.Action, ev.RoomID)
	}
	return nil
}

// RunMembershipConsumer consumes membership events until ctx is done.
func RunMembershipConsumer(ctx context.Context, brokers []string, groupID, topic string, cache RoomCache) error {
	h := &membershipHandler{cache: cache}
	return kafka.ConsumeGroup(ctx, brokers, groupID, []string{topic}, h.Handle)
}
