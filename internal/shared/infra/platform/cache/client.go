package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/civicreport/internal/shared/infra/platform/metrics"
)

const (
	DefaultPrefix    = "civic:"
	DefaultTTL       = 600 * time.Second
	DefaultScanCount = 100

	tagPrefix = "tag:"
)

// Options configura el cliente.
type Options struct {
	Prefix     string
	DefaultTTL time.Duration
	ScanCount  int64
}

// Client es la caché de la aplicación: serializa a JSON, aplica el namespace
// y ofrece las operaciones de invalidación sobre cualquier Store.
type Client struct {
	store      Store
	prefix     string
	defaultTTL time.Duration
	scanCount  int64
	log        *zap.Logger
	metrics    *metrics.Recorder
}

var (
	_ Cache       = (*Client)(nil)
	_ Invalidator = (*Client)(nil)
)

// NewClient construye el cliente. rec puede ser nil.
func NewClient(store Store, opts Options, log *zap.Logger, rec *metrics.Recorder) *Client {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.ScanCount <= 0 {
		opts.ScanCount = DefaultScanCount
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		store:      store,
		prefix:     opts.Prefix,
		defaultTTL: opts.DefaultTTL,
		scanCount:  opts.ScanCount,
		log:        log,
		metrics:    rec,
	}
}

// Key antepone el namespace. Se aplica igual a claves y a patrones.
func (c *Client) Key(key string) string {
	return c.prefix + key
}

func (c *Client) tagKey(tag string) string {
	return c.prefix + tagPrefix + tag
}

// Get devuelve (false, nil) en un miss y también cuando el valor guardado no se
// puede decodificar. Un error indica que el almacén no responde.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	start := time.Now()
	data, ok, err := c.store.Get(ctx, c.Key(key))
	if err != nil {
		c.metrics.ObserveCache("get", metrics.CacheError, time.Since(start))
		return false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if !ok {
		c.metrics.ObserveCache("get", metrics.CacheMiss, time.Since(start))
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("Corrupt cache entry, treating as miss", zap.String("key", key), zap.Error(err))
		c.metrics.ObserveCache("get", metrics.CacheCorrupt, time.Since(start))
		return false, nil
	}

	c.metrics.ObserveCache("get", metrics.CacheHit, time.Since(start))
	return true, nil
}

// Set guarda el valor con expiración (ttlSecs <= 0 usa el TTL por defecto) y lo
// añade al índice de cada tag.
func (c *Client) Set(ctx context.Context, key string, val interface{}, ttlSecs int, tags ...string) error {
	start := time.Now()
	data, err := json.Marshal(val)
	if err != nil {
		c.metrics.ObserveCache("set", metrics.CacheError, time.Since(start))
		return fmt.Errorf("cache encode %q: %w", key, err)
	}

	ttl := c.defaultTTL
	if ttlSecs > 0 {
		ttl = time.Duration(ttlSecs) * time.Second
	}

	nsKey := c.Key(key)
	if err := c.store.Set(ctx, nsKey, data, ttl); err != nil {
		c.metrics.ObserveCache("set", metrics.CacheError, time.Since(start))
		return fmt.Errorf("cache set %q: %w", key, err)
	}

	for _, tag := range tags {
		if err := c.store.AddToSet(ctx, c.tagKey(tag), ttl, nsKey); err != nil {
			c.metrics.ObserveCache("set", metrics.CacheError, time.Since(start))
			return fmt.Errorf("cache tag %q: %w", tag, err)
		}
	}

	c.metrics.ObserveCache("set", metrics.CacheStored, time.Since(start))
	return nil
}

// Delete elimina la clave; no es error que no exista.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.DeleteKeys(ctx, key)
	return err
}

// DeleteKeys borra claves exactas y devuelve cuántas existían.
func (c *Client) DeleteKeys(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	start := time.Now()
	nsKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		nsKeys = append(nsKeys, c.Key(k))
	}
	n, err := c.store.Delete(ctx, nsKeys...)
	if err != nil {
		c.metrics.ObserveCache("delete", metrics.CacheError, time.Since(start))
		return 0, fmt.Errorf("cache delete: %w", err)
	}
	c.metrics.ObserveCache("delete", metrics.CacheDeleted, time.Since(start))
	return n, nil
}

// ClearAll vacía el almacén completo, incluidas claves de otros namespaces.
// Solo para uso operativo.
func (c *Client) ClearAll(ctx context.Context) error {
	if err := c.store.FlushAll(ctx); err != nil {
		return fmt.Errorf("cache flush: %w", err)
	}
	c.log.Warn("Cache flushed")
	return nil
}

// ClearPattern borra con un único KEYS. Bloquea el almacén mientras dura; para
// el camino de escritura se usa InvalidateByPattern.
func (c *Client) ClearPattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := c.store.Keys(ctx, c.Key(pattern))
	if err != nil {
		return 0, fmt.Errorf("cache keys %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.store.Delete(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("cache delete %q: %w", pattern, err)
	}
	return n, nil
}

// InvalidateByPattern recorre el espacio de claves con SCAN desde el cursor 0
// hasta que vuelve a 0 y solo entonces borra las coincidencias por lotes.
// Borrar durante el recorrido desplaza el cursor en algunos servidores y deja claves vivas.
func (c *Client) InvalidateByPattern(ctx context.Context, pattern string) (int64, error) {
	start := time.Now()
	match := c.Key(pattern)

	var (
		cursor  uint64
		matched []string
	)
	seen := make(map[string]struct{})
	for {
		keys, next, err := c.store.Scan(ctx, cursor, match, c.scanCount)
		if err != nil {
			c.metrics.ObserveCache("scan", metrics.CacheError, time.Since(start))
			return 0, fmt.Errorf("cache scan %q: %w", pattern, err)
		}
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			matched = append(matched, k)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	var deleted int64
	batch := int(c.scanCount)
	for i := 0; i < len(matched); i += batch {
		end := i + batch
		if end > len(matched) {
			end = len(matched)
		}
		n, err := c.store.Delete(ctx, matched[i:end]...)
		if err != nil {
			c.metrics.ObserveCache("scan", metrics.CacheError, time.Since(start))
			return deleted, fmt.Errorf("cache delete %q: %w", pattern, err)
		}
		deleted += n
	}

	c.metrics.ObserveCache("scan", metrics.CacheDeleted, time.Since(start))
	c.log.Debug("Pattern invalidated", zap.String("pattern", pattern), zap.Int64("deleted", deleted))
	return deleted, nil
}

// InvalidateTags borra todas las claves registradas bajo cada tag y el propio índice.
func (c *Client) InvalidateTags(ctx context.Context, tags ...string) (int64, error) {
	var deleted int64
	for _, tag := range tags {
		set := c.tagKey(tag)
		members, err := c.store.Members(ctx, set)
		if err != nil {
			return deleted, fmt.Errorf("cache tag members %q: %w", tag, err)
		}
		if len(members) > 0 {
			n, err := c.store.Delete(ctx, members...)
			if err != nil {
				return deleted, fmt.Errorf("cache tag delete %q: %w", tag, err)
			}
			deleted += n
		}
		if _, err := c.store.Delete(ctx, set); err != nil {
			return deleted, fmt.Errorf("cache tag delete %q: %w", tag, err)
		}
	}
	return deleted, nil
}

// Ping comprueba que el almacén responde.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close libera el almacén.
func (c *Client) Close() error {
	return c.store.Close()
}
