package kafka

import (
	"github.com/Shopify/sarama"
)

var KafkaClient sarama.Client

func InitKafkaClient(brokers []string) error {
	config := sarama.NewConfig()
	config.Version = sarama.V2_1_0_0
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Partitioner = sarama.NewRandomPartitioner

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return err
	}
	KafkaClient = client
	return nil
}

var SyncProd sarama.SyncProducer

func InitSyncProducerFromClient() error {
	p, err := sarama.NewSyncProducerFromClient(KafkaClient)
	if err != nil {
		return err
	}
	SyncProd = p
	return nil
}

func SendSync(topic string, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	_, _, err := SyncProd.SendMessage(msg)
	return err
}
