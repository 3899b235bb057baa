package events

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
)

// Message es lo que recibe un suscriptor del bus en memoria.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
}

// InMemoryEventBus es el bus usado cuando Kafka está desactivado. Entrega a
// todos los suscriptores del topic; si el buffer de uno está lleno, el mensaje
// se descarta para ese suscriptor.
type InMemoryEventBus struct {
	subscribers map[string][]chan Message
	mu          sync.RWMutex
	log         *zap.Logger
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(log *zap.Logger) *InMemoryEventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryEventBus{
		subscribers: make(map[string][]chan Message),
		log:         log,
	}
}

// Publish serializa el evento y lo reparte entre los suscriptores del topic.
func (b *InMemoryEventBus) Publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := Message{Topic: topic, Payload: payload}
	if keyer, ok := event.(sharedBus.Keyer); ok {
		msg.Key = keyer.PartitionKey()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers[topic] {
		select {
		case sub <- msg:
		default:
			b.log.Warn("Subscriber buffer full, dropping message", zap.String("topic", topic))
		}
	}
	return nil
}

// Subscribe devuelve un canal que recibe los mensajes de los topics indicados.
func (b *InMemoryEventBus) Subscribe(bufferSize int, topics ...string) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, bufferSize)
	for _, topic := range topics {
		b.subscribers[topic] = append(b.subscribers[topic], ch)
	}
	return ch
}

// Consume entrega los mensajes del canal al handler hasta que se cancele ctx.
func Consume(ctx context.Context, ch <-chan Message, handler sharedBus.MessageHandler, log *zap.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("In-memory consumer stopped")
				return
			case msg := <-ch:
				handler.HandleMessage(ctx, msg.Key, msg.Payload)
			}
		}
	}()
}
