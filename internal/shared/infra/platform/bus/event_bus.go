package bus

import "context"

type Keyer interface {
	PartitionKey() string
}

// EventBus publica un evento en un topic. El formato del payload lo deciden los adapters.
type EventBus interface {
	Publish(ctx context.Context, topic string, event interface{}) error
}

// MessageHandler es cualquier consumidor de mensajes crudos (Kafka o bus en memoria).
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte)
}
