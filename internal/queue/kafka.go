package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/caribe-weather/internal/protocol"
)

// Producer wraps a Kafka producer
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // Partition by key (station id)
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// PublishReadings sends one message per committed reading
func (p *Producer) PublishReadings(ctx context.Context, readings []*protocol.ReadingMessage) error {
	messages, err := readingMessages(readings)
	if err != nil {
		return err
	}
	return p.publishBatch(ctx, messages)
}

// PublishAlerts sends one message per alert
func (p *Producer) PublishAlerts(ctx context.Context, alerts []*protocol.AlertMessage) error {
	messages, err := alertMessages(alerts)
	if err != nil {
		return err
	}
	return p.publishBatch(ctx, messages)
}

func (p *Producer) publishBatch(ctx context.Context, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

func readingMessages(readings []*protocol.ReadingMessage) ([]kafka.Message, error) {
	out := make([]kafka.Message, 0, len(readings))
	for _, r := range readings {
		data, err := protocol.EncodeReadingMessage(r)
		if err != nil {
			return nil, fmt.Errorf("failed to encode reading: %w", err)
		}
		out = append(out, kafka.Message{
			Key:   []byte(strconv.Itoa(r.StationID)),
			Value: data,
			Time:  r.Timestamp,
		})
	}
	return out, nil
}

func alertMessages(alerts []*protocol.AlertMessage) ([]kafka.Message, error) {
	out := make([]kafka.Message, 0, len(alerts))
	for _, a := range alerts {
		data, err := protocol.EncodeAlertMessage(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode alert: %w", err)
		}
		out = append(out, kafka.Message{
			Key:     []byte(strconv.Itoa(a.StationID)),
			Value:   data,
			Headers: []kafka.Header{{Key: "kind", Value: []byte(a.Kind)}},
		})
	}
	return out, nil
}

// CreateTopic creates a Kafka topic with the specified number of partitions
func CreateTopic(brokers []string, topic string, numPartitions int, replicationFactor int) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}

	return nil
}
