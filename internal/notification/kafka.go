package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
)

// KafkaNotifier renders each event through the template engine and publishes
// it to a single Kafka topic, keyed by appointment id.
type KafkaNotifier struct {
	producer  *kafka.Producer
	topic     string
	templates *TemplateEngine
	log       *zap.Logger
}

// NewKafkaNotifier connects a producer to the given bootstrap brokers.
func NewKafkaNotifier(brokers, topic string, log *zap.Logger) (*KafkaNotifier, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaNotifier{
		producer:  producer,
		topic:     topic,
		templates: NewTemplateEngine(),
		log:       log,
	}, nil
}

// Dispatch publishes the event and waits for the broker's delivery report.
func (n *KafkaNotifier) Dispatch(ctx context.Context, event Event) error {
	if subject, body, err := n.templates.Render(event.Kind, templateData(event)); err == nil {
		event.Subject = subject
		event.Body = body
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Buffered so an abandoned delivery report never blocks the producer.
	deliveryChan := make(chan kafka.Event, 1)
	err = n.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &n.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.AppointmentID),
		Value:          payload,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("produce message: %w", err)
	}

	select {
	case e := <-deliveryChan:
		msg := e.(*kafka.Message)
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", msg.TopicPartition.Error)
		}
		n.log.Debug("notification delivered",
			zap.String("topic", n.topic),
			zap.Int32("partition", msg.TopicPartition.Partition),
			zap.String("kind", string(event.Kind)),
			zap.String("appointment_id", event.AppointmentID))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes outstanding messages and releases the producer.
func (n *KafkaNotifier) Close() {
	n.producer.Flush(5000)
	n.producer.Close()
}
