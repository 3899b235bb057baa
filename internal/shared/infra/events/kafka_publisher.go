package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
)

// KafkaPublisher publica en el topic que indica cada llamada; un único writer
// sirve a todos los topics.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaWriter crea el writer sin topic fijo. Hash garantiza que los eventos
// de un mismo agregado caen en la misma partición.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event interface{}) error {
	msg, err := buildMessage(topic, event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.String("topic", topic), zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully", zap.String("topic", topic), zap.ByteString("key", msg.Key))
	return nil
}

// Close vacía los lotes pendientes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func buildMessage(topic string, event interface{}) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	var key []byte
	if keyer, ok := event.(sharedBus.Keyer); ok {
		key = []byte(keyer.PartitionKey())
	}

	return kafka.Message{
		Topic: strings.TrimSpace(topic),
		Key:   key,
		Value: data,
		Time:  time.Now().UTC(),
	}, nil
}

// Verificación estática
var _ sharedBus.EventBus = (*KafkaPublisher)(nil)
