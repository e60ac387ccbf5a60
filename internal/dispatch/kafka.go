// README: Kafka notification stream for downstream consumers (push, email).
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"rideconnect/internal/types"
)

// KafkaDispatcher publishes every notification to a topic so out-of-process
// channels (mobile push, SMS, email) can consume them.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

type kafkaEnvelope struct {
	RecipientType string `json:"recipient_type"`
	RecipientID   string `json:"recipient_id"`
	Event         Event  `json:"event"`
}

func (d *KafkaDispatcher) NotifyDriver(ctx context.Context, driverID types.ID, ev Event) error {
	return d.publish(ctx, "driver", driverID, ev)
}

func (d *KafkaDispatcher) NotifyRider(ctx context.Context, riderID types.ID, ev Event) error {
	return d.publish(ctx, "rider", riderID, ev)
}

func (d *KafkaDispatcher) publish(ctx context.Context, recipientType string, id types.ID, ev Event) error {
	value, err := json.Marshal(kafkaEnvelope{
		RecipientType: recipientType,
		RecipientID:   string(id),
		Event:         ev,
	})
	if err != nil {
		return err
	}
	return d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(id),
		Value: value,
	})
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
