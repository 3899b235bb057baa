package cache

import (
	"context"

	"go.uber.org/zap"
)

// ReadThrough intenta la caché y, en un miss, llama a fetch y guarda el resultado.
// Los fallos de la caché en este camino solo se registran: la petición nunca
// falla porque la caché no responda. No se cachean errores de fetch.
func ReadThrough[T any](ctx context.Context, c Cache, key string, ttlSecs int, log *zap.Logger, fetch func(ctx context.Context) (T, error), tags ...string) (T, bool, error) {
	return ReadThroughTagged(ctx, c, key, ttlSecs, log, fetch, func(T) []string { return tags })
}

// ReadThroughTagged es ReadThrough con tags calculados a partir del valor
// leído, para entradas cuyo índice solo se conoce tras la consulta.
func ReadThroughTagged[T any](ctx context.Context, c Cache, key string, ttlSecs int, log *zap.Logger, fetch func(ctx context.Context) (T, error), tagsOf func(T) []string) (T, bool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if c != nil {
		var cached T
		hit, err := c.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("Cache read failed, falling back to datastore", zap.String("key", key), zap.Error(err))
		} else if hit {
			return cached, true, nil
		}
	}

	val, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	if c != nil {
		var tags []string
		if tagsOf != nil {
			tags = tagsOf(val)
		}
		if err := c.Set(ctx, key, val, ttlSecs, tags...); err != nil {
			log.Warn("Cache update failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	return val, false, nil
}
