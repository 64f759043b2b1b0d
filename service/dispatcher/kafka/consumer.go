package kafka

import (
	"context"
	"time"

	"IMGateway/logger"

	"github.com/Shopify/sarama"
)

type MessageHandler func(topic string, key, value []byte) error

type groupHandler struct {
	handle MessageHandler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	logger.Info("consumer group setup")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	logger.Info("consumer group cleanup")
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handle(msg.Topic, msg.Key, msg.Value); err != nil {
			logger.Errorf("handler error topic=%s offset=%d: %v", msg.Topic, msg.Offset, err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// ConsumeGroup runs a consumer group loop until ctx is cancelled.
func ConsumeGroup(ctx context.Context, brokers []string, groupID string, topics []string, handle MessageHandler) error {
	config := sarama.NewConfig()
	config.Version = sarama.V2_1_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return err
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			logger.Errorf("consumer group error: %v", err)
		}
	}()

	h := &groupHandler{handle: handle}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := group.Consume(ctx, topics, h); err != nil {
			logger.Errorf("consume error: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
}
