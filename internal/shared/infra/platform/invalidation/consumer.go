package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
	"github.com/davicafu/civicreport/internal/shared/infra/utils"
)

const (
	retryAttempts = 3
	retryDelay    = 200 * time.Millisecond
)

// Consumer aplica el plan completo por cada EntityChanged recibido del bus.
// La entrega es al menos una vez; repetir una invalidación es inocuo.
type Consumer struct {
	executor *Executor
	log      *zap.Logger
}

var _ sharedBus.MessageHandler = (*Consumer)(nil)

func NewConsumer(executor *Executor, log *zap.Logger) *Consumer {
	return &Consumer{executor: executor, log: log}
}

func (c *Consumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	env, err := utils.DecodeIntegrationEvent(payload)
	if err != nil {
		c.log.Warn("Discarding undecodable invalidation message", zap.String("key", key), zap.Error(err))
		return
	}

	utils.UnmarshalAndHandle(c.log, env.Data, func(evt sharedEvents.EntityChanged) {
		opts := FromEvent(evt)
		if err := opts.validate(); err != nil {
			c.log.Debug("Event does not affect cache", zap.String("type", env.Type), zap.Error(err))
			return
		}

		// Cada intento aplica el plan entero; solo cuenta el último.
		var deleted int64
		err := utils.Retry(ctx, retryAttempts, retryDelay, func(ctx context.Context) error {
			n, err := c.executor.Apply(ctx, opts)
			deleted = n
			return err
		})
		if err != nil {
			c.log.Error("Async invalidation gave up",
				zap.String("type", env.Type),
				zap.String("entity", opts.Entity),
				zap.String("entity_id", opts.EntityID),
				zap.Error(err))
			return
		}
		c.log.Debug("Async invalidation applied",
			zap.String("type", env.Type),
			zap.String("entity", opts.Entity),
			zap.Int64("deleted", deleted))
	})
}

// Decode extrae el EntityChanged de un mensaje; lo reutilizan otros consumidores.
func Decode(payload []byte) (sharedEvents.EntityChanged, error) {
	var evt sharedEvents.EntityChanged
	env, err := utils.DecodeIntegrationEvent(payload)
	if err != nil {
		return evt, err
	}
	if err := json.Unmarshal(env.Data, &evt); err != nil {
		return evt, err
	}
	if evt.Entity == "" {
		return evt, errors.New("event without entity")
	}
	return evt, nil
}
