package invalidation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/metrics"
)

// ErrCacheInvalidation envuelve cualquier fallo del almacén durante una
// invalidación posterior a una escritura ya confirmada.
var ErrCacheInvalidation = errors.New("cache invalidation failed")

// Mode decide qué parte del plan se ejecuta dentro de la petición.
type Mode string

const (
	// ModeSync ejecuta el plan completo antes de responder.
	ModeSync Mode = "sync"
	// ModeAsync solo borra las claves exactas; patrones y tags los aplica el
	// Consumer al recibir el evento del outbox.
	ModeAsync Mode = "async"
)

// ParseMode normaliza el modo configurado; cualquier valor desconocido es sync.
func ParseMode(s string) Mode {
	if Mode(s) == ModeAsync {
		return ModeAsync
	}
	return ModeSync
}

// Invalidator es el puerto que usan los servicios de aplicación.
type Invalidator interface {
	Invalidate(ctx context.Context, opts Options) (int64, error)
}

// Executor resuelve un plan contra la caché.
type Executor struct {
	cache   cache.Invalidator
	mode    Mode
	log     *zap.Logger
	metrics *metrics.Recorder
}

var _ Invalidator = (*Executor)(nil)

func NewExecutor(c cache.Invalidator, mode Mode, log *zap.Logger, rec *metrics.Recorder) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{cache: c, mode: ParseMode(string(mode)), log: log, metrics: rec}
}

// Mode devuelve el modo efectivo.
func (e *Executor) Mode() Mode {
	return e.mode
}

// Invalidate es la llamada del camino de escritura. En modo async deja los
// patrones y los tags para el consumidor.
func (e *Executor) Invalidate(ctx context.Context, opts Options) (int64, error) {
	plan, err := PlanFor(opts)
	if err != nil {
		return 0, err
	}
	if e.mode == ModeAsync {
		plan = Plan{Keys: plan.Keys}
	}
	return e.run(ctx, opts.Entity, plan)
}

// Apply ejecuta siempre el plan completo.
func (e *Executor) Apply(ctx context.Context, opts Options) (int64, error) {
	plan, err := PlanFor(opts)
	if err != nil {
		return 0, err
	}
	return e.run(ctx, opts.Entity, plan)
}

// run aplica el plan en orden: claves exactas, patrones y tags. Se detiene en
// el primer fallo del almacén.
func (e *Executor) run(ctx context.Context, entity string, plan Plan) (int64, error) {
	start := time.Now()
	var deleted int64

	fail := func(step string, err error) (int64, error) {
		e.metrics.ObserveInvalidation(entity, deleted, err, time.Since(start))
		e.log.Error("Cache invalidation failed",
			zap.String("entity", entity),
			zap.String("step", step),
			zap.Int64("deleted", deleted),
			zap.Error(err))
		return deleted, fmt.Errorf("%w: %s: %w", ErrCacheInvalidation, step, err)
	}

	if len(plan.Keys) > 0 {
		n, err := e.cache.DeleteKeys(ctx, plan.Keys...)
		if err != nil {
			return fail("keys", err)
		}
		deleted += n
	}

	for _, pattern := range plan.Patterns {
		n, err := e.cache.InvalidateByPattern(ctx, pattern)
		deleted += n
		if err != nil {
			return fail(pattern, err)
		}
	}

	if len(plan.Tags) > 0 {
		n, err := e.cache.InvalidateTags(ctx, plan.Tags...)
		deleted += n
		if err != nil {
			return fail("tags", err)
		}
	}

	e.metrics.ObserveInvalidation(entity, deleted, nil, time.Since(start))
	e.log.Debug("Cache invalidated",
		zap.String("entity", entity),
		zap.String("mode", string(e.mode)),
		zap.Int("operations", plan.Size()),
		zap.Int64("deleted", deleted))
	return deleted, nil
}
