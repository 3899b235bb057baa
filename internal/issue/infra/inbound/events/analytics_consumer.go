package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
	sharedUtils "github.com/davicafu/civicreport/internal/shared/infra/utils"
)

const defaultBatchSize = 100

// AnalyticsConsumer vuelca los eventos de incidencias en el registro analítico.
// Acumula filas y las inserta por lotes: al llenar el lote o en cada tick de Run.
type AnalyticsConsumer struct {
	repo      issueDomain.IssueAnalyticsRepository
	batchSize int
	log       *zap.Logger

	mu      sync.Mutex
	pending []issueDomain.IssueLogEntry
}

var _ sharedBus.MessageHandler = (*AnalyticsConsumer)(nil)

func NewAnalyticsConsumer(repo issueDomain.IssueAnalyticsRepository, batchSize int, log *zap.Logger) *AnalyticsConsumer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &AnalyticsConsumer{repo: repo, batchSize: batchSize, log: log}
}

// HandleMessage es el punto de entrada para un nuevo mensaje/evento.
func (c *AnalyticsConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	base, err := sharedUtils.DecodeIntegrationEvent(payload)
	if err != nil {
		c.log.Warn("Failed to unmarshal integration event for issue analytics", zap.String("key", key), zap.Error(err))
		return
	}
	if !strings.HasPrefix(base.Type, issueDomain.AggregateType+".") {
		return
	}

	sharedUtils.UnmarshalAndHandle(c.log, base.Data, func(evt sharedEvents.EntityChanged) {
		at := evt.OccurredAt
		if at.IsZero() {
			at = base.Timestamp
		}
		c.add(ctx, issueDomain.IssueLogEntry{
			IssueID:    evt.EntityID,
			EventType:  base.Type,
			Category:   evt.Category,
			Division:   evt.Division,
			Status:     evt.Status,
			ReporterID: evt.UserID,
			EventTime:  at,
		})
	})
}

func (c *AnalyticsConsumer) add(ctx context.Context, entry issueDomain.IssueLogEntry) {
	c.mu.Lock()
	c.pending = append(c.pending, entry)
	full := len(c.pending) >= c.batchSize
	c.mu.Unlock()

	if full {
		if err := c.Flush(ctx); err != nil {
			c.log.Warn("Failed to flush issue analytics batch", zap.Error(err))
		}
	}
}

// Flush inserta lo acumulado. Si falla, las filas vuelven al buffer para el
// siguiente intento.
func (c *AnalyticsConsumer) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := c.repo.LogBatch(ctx, batch); err != nil {
		c.mu.Lock()
		c.pending = append(batch, c.pending...)
		c.mu.Unlock()
		return err
	}
	c.log.Debug("Issue analytics batch stored", zap.Int("rows", len(batch)))
	return nil
}

// Pending devuelve cuántas filas esperan a ser insertadas.
func (c *AnalyticsConsumer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Run vacía el buffer periódicamente hasta que se cancele ctx; al salir hace
// un último intento con un contexto propio.
func (c *AnalyticsConsumer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.Flush(flushCtx); err != nil {
				c.log.Warn("Final analytics flush failed", zap.Error(err))
			}
			cancel()
			c.log.Info("Issue analytics consumer stopped")
			return
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				c.log.Warn("Failed to flush issue analytics batch", zap.Error(err))
			}
		}
	}
}
