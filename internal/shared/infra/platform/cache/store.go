package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendValkey = "valkey"
	BackendMemory = "memory"
)

// StoreConfig elige y configura el backend del almacén.
type StoreConfig struct {
	Backend         string
	Addr            string
	Username        string
	Password        string
	DB              int
	CleanupInterval time.Duration
}

// OpenStore abre el almacén indicado y comprueba que responde.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case BackendRedis, "":
		s, err := DialRedis(ctx, cfg.Addr, cfg.Password, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("cache: redis %s: %w", cfg.Addr, err)
		}
		return s, nil
	case BackendValkey:
		s, err := NewValkeyStore(ValkeyConfig{Address: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("cache: valkey %s: %w", cfg.Addr, err)
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStore(cfg.CleanupInterval), nil
	}
	return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
}
