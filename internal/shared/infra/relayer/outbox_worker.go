package relayer

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
)

// Worker publica los eventos pendientes del outbox. Cada evento sale envuelto
// en un IntegrationEvent hacia el topic que indica el registro.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventBus
	eventRegistry map[string]sharedDomainEvents.EventMetadata
	interval      time.Duration
	batchSize     int
	log           *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	registry map[string]sharedDomainEvents.EventMetadata,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		interval:      interval,
		batchSize:     batchSize,
		log:           log,
	}
}

// Start bloquea hasta que se cancele ctx.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica un lote y devuelve cuántos eventos quedaron marcados.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	events, err := w.repo.FetchPendingOutbox(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return 0
	}
	if len(events) > 0 {
		w.log.Debug("📬 Eventos pendientes", zap.Int("count", len(events)))
	}

	published := 0
	for _, evt := range events {
		if w.publishAndMark(ctx, evt) {
			published++
		}
	}
	return published
}

func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) bool {
	metadata, ok := w.eventRegistry[evt.EventType]
	if !ok {
		// Se queda pendiente: un despliegue posterior puede conocer el tipo.
		w.log.Error("Tipo de evento desconocido en registro", zap.String("event_type", evt.EventType))
		return false
	}

	// Pasar por el tipo registrado valida el payload antes de publicarlo.
	typed := reflect.New(metadata.Type).Interface()
	payloadBytes, err := json.Marshal(evt.Payload)
	if err == nil {
		err = json.Unmarshal(payloadBytes, typed)
	}
	if err != nil {
		w.log.Error("Error al decodificar payload del evento", zap.String("event_id", evt.ID.String()), zap.Error(err))
		return false
	}
	data, err := json.Marshal(typed)
	if err != nil {
		w.log.Error("Error al codificar payload del evento", zap.String("event_id", evt.ID.String()), zap.Error(err))
		return false
	}

	envelope := sharedDomainEvents.IntegrationEvent{
		Type:        evt.EventType,
		AggregateID: evt.AggregateID,
		Timestamp:   evt.CreatedAt,
		Data:        data,
	}

	if err := w.publisher.Publish(ctx, metadata.Topic, envelope); err != nil {
		w.log.Warn("⚠️ No se pudo publicar evento",
			zap.String("event_id", evt.ID.String()),
			zap.String("topic", metadata.Topic),
			zap.Error(err),
		)
		return false // No lo marcamos como procesado para que se reintente
	}

	if err := w.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
		w.log.Warn("⚠️ No se pudo marcar evento como procesado",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
		return false
	}
	w.log.Debug("✅ Evento publicado y marcado",
		zap.String("event_id", evt.ID.String()),
		zap.String("event_type", evt.EventType))
	return true
}
