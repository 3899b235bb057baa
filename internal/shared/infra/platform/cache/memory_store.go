package cache

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// memItem guarda el valor (o el conjunto, para índices de tags) y su expiración.
type memItem struct {
	value     []byte // Guardamos los bytes para simular la serialización, igual que Redis.
	set       map[string]struct{}
	expiresAt time.Time
}

func (i memItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryStore implementa Store con un mapa en memoria. Se usa cuando no hay
// Redis disponible y en los tests.
type MemoryStore struct {
	store    map[string]memItem
	mu       sync.RWMutex // RWMutex permite múltiples lectores o un solo escritor.
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore crea el almacén. cleanupInterval <= 0 desactiva la limpieza en
// segundo plano; las claves expiradas siguen sin verse.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		store:    make(map[string]memItem),
		stopChan: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanupLoop(cleanupInterval)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.store[key]
	if !ok || item.value == nil || item.expired(time.Now().UTC()) {
		return nil, false, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := memItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = time.Now().UTC().Add(ttl)
	}
	s.store[key] = item
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for _, k := range keys {
		if item, ok := s.store[k]; ok {
			if !item.expired(now) {
				n++
			}
			delete(s.store, k)
		}
	}
	return n, nil
}

func (s *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	var keys []string
	for k, item := range s.store {
		if !item.expired(now) && g.Match(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Scan ordena las claves por su hash y usa el hash como cursor, así que borrar
// claves entre llamadas no hace saltarse ninguna. count limita las claves
// examinadas, no las devueltas (igual que en Redis).
func (s *MemoryStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	g, err := glob.Compile(match)
	if err != nil {
		return nil, 0, err
	}
	if count <= 0 {
		count = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		key  string
		hash uint64
	}
	now := time.Now().UTC()
	entries := make([]entry, 0, len(s.store))
	for k, item := range s.store {
		if item.expired(now) {
			continue
		}
		if h := hashKey(k); h >= cursor {
			entries = append(entries, entry{key: k, hash: h})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].hash != entries[j].hash {
			return entries[i].hash < entries[j].hash
		}
		return entries[i].key < entries[j].key
	})

	var matched []string
	var next uint64
	for i, e := range entries {
		if int64(i) == count {
			next = e.hash
			break
		}
		if g.Match(e.key) {
			matched = append(matched, e.key)
		}
	}
	return matched, next, nil
}

// hashKey nunca devuelve 0: el cursor 0 está reservado para inicio y fin.
func hashKey(k string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k))
	if v := h.Sum64(); v != 0 {
		return v
	}
	return 1
}

func (s *MemoryStore) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = make(map[string]memItem)
	return nil
}

func (s *MemoryStore) AddToSet(ctx context.Context, set string, ttl time.Duration, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.store[set]
	if !ok || item.set == nil || item.expired(time.Now().UTC()) {
		item = memItem{set: make(map[string]struct{})}
	}
	for _, m := range members {
		item.set[m] = struct{}{}
	}
	if ttl > 0 {
		item.expiresAt = time.Now().UTC().Add(ttl)
	}
	s.store[set] = item
	return nil
}

func (s *MemoryStore) Members(ctx context.Context, set string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.store[set]
	if !ok || item.expired(time.Now().UTC()) {
		return nil, nil
	}
	out := make([]string, 0, len(item.set))
	for m := range item.set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close detiene la goroutine de limpieza. Deberías llamarlo al apagar la aplicación.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// Len devuelve el número de claves vivas.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	n := 0
	for _, item := range s.store {
		if !item.expired(now) {
			n++
		}
	}
	return n
}

// cleanupLoop es la goroutine que se ejecuta periódicamente para limpiar claves expiradas.
func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock() // Necesitamos un bloqueo de escritura para poder eliminar claves.
			now := time.Now().UTC()
			for key, item := range s.store {
				if item.expired(now) {
					delete(s.store, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopChan:
			return
		}
	}
}
