package cache

import (
	"context"
	"time"
)

// Cache define la interfaz para una caché de clave-valor genérica.
type Cache interface {
	// Get intenta poblar 'dest' (que debe ser un puntero) con el valor asociado a la 'key'.
	// Devuelve (true, nil) si hay un 'hit' y 'dest' fue rellenado.
	// Devuelve (false, nil) si es un 'miss'.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set serializa y guarda el valor con un TTL (Time To Live) en segundos.
	// Los tags permiten invalidar después todas las claves que comparten uno.
	Set(ctx context.Context, key string, val interface{}, ttlSecs int, tags ...string) error

	// Delete elimina la 'key' de la caché.
	Delete(ctx context.Context, key string) error
}

// Invalidator es la parte destructiva del cliente que usa el ejecutor de invalidación.
type Invalidator interface {
	DeleteKeys(ctx context.Context, keys ...string) (int64, error)
	InvalidateByPattern(ctx context.Context, pattern string) (int64, error)
	InvalidateTags(ctx context.Context, tags ...string) (int64, error)
}

// Store es el almacén físico (Redis, Valkey o memoria). Trabaja con claves ya
// prefijadas y valores en bytes; no conoce JSON ni namespaces.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Scan recorre el espacio de claves de forma incremental. Empieza y termina en el cursor 0.
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)
	FlushAll(ctx context.Context) error

	// AddToSet y Members mantienen los índices de tags.
	AddToSet(ctx context.Context, set string, ttl time.Duration, members ...string) error
	Members(ctx context.Context, set string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
