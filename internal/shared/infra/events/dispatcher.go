package events

import (
	"context"

	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
)

// Dispatcher reparte cada mensaje entre varios handlers, en orden.
type Dispatcher []sharedBus.MessageHandler

var _ sharedBus.MessageHandler = Dispatcher(nil)

func (d Dispatcher) HandleMessage(ctx context.Context, key string, payload []byte) {
	for _, h := range d {
		if h != nil {
			h.HandleMessage(ctx, key, payload)
		}
	}
}
