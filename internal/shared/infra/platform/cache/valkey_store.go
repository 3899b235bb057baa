package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyConfig configura la conexión con Valkey.
type ValkeyConfig struct {
	Address  string
	Username string
	Password string
	DB       int
}

// ValkeyStore es el almacén alternativo sobre valkey-go.
type ValkeyStore struct {
	client valkey.Client
}

var _ Store = (*ValkeyStore)(nil)

func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: valkey address required")
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: valkey ping: %w", err)
	}

	return &ValkeyStore{client: client}, nil
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	data, err := resp.AsBytes()
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(valkey.BinaryString(value))
	if ttl > 0 {
		return s.client.Do(ctx, cmd.Px(ttl).Build()).Error()
	}
	return s.client.Do(ctx, cmd.Build()).Error()
}

func (s *ValkeyStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.client.Do(ctx, s.client.B().Del().Key(keys...).Build()).AsInt64()
}

func (s *ValkeyStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Do(ctx, s.client.B().Keys().Pattern(pattern).Build()).AsStrSlice()
}

func (s *ValkeyStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	entry, err := s.client.Do(ctx, s.client.B().Scan().Cursor(cursor).Match(match).Count(count).Build()).AsScanEntry()
	if err != nil {
		return nil, 0, err
	}
	return entry.Elements, entry.Cursor, nil
}

func (s *ValkeyStore) FlushAll(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Flushall().Build()).Error()
}

func (s *ValkeyStore) AddToSet(ctx context.Context, set string, ttl time.Duration, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmds := valkey.Commands{s.client.B().Sadd().Key(set).Member(members...).Build()}
	if ttl > 0 {
		cmds = append(cmds, s.client.B().Pexpire().Key(set).Milliseconds(ttl.Milliseconds()).Build())
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ValkeyStore) Members(ctx context.Context, set string) ([]string, error) {
	return s.client.Do(ctx, s.client.B().Smembers().Key(set).Build()).AsStrSlice()
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
