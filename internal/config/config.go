package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix  = "CIVIC_"
	EnvFileVar = "CIVIC_CONFIG_FILE"
)

type Config struct {
	HTTP       HTTPConfig       `koanf:"http"`
	Log        LogConfig        `koanf:"log"`
	Auth       AuthConfig       `koanf:"auth"`
	Cache      CacheConfig      `koanf:"cache"`
	Mongo      MongoConfig      `koanf:"mongo"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	ClickHouse ClickHouseConfig `koanf:"clickhouse"`
	Outbox     OutboxConfig     `koanf:"outbox"`
}

type HTTPConfig struct {
	Port        string   `koanf:"port"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

// CacheConfig: backend redis, valkey o memory. InvalidationMode sync o async.
type CacheConfig struct {
	Backend          string        `koanf:"backend"`
	Addr             string        `koanf:"addr"`
	Username         string        `koanf:"username"`
	Password         string        `koanf:"password"`
	DB               int           `koanf:"db"`
	Prefix           string        `koanf:"prefix"`
	DefaultTTL       time.Duration `koanf:"default_ttl"`
	ScanCount        int64         `koanf:"scan_count"`
	CleanupInterval  time.Duration `koanf:"cleanup_interval"`
	InvalidationMode string        `koanf:"invalidation_mode"`
}

type MongoConfig struct {
	URI          string        `koanf:"uri"`
	Database     string        `koanf:"database"`
	Timeout      time.Duration `koanf:"timeout"`
	Transactions bool          `koanf:"transactions"`
}

type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	GroupID string   `koanf:"group_id"`
}

type ClickHouseConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Addr          string        `koanf:"addr"`
	Database      string        `koanf:"database"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	BatchSize     int           `koanf:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

type OutboxConfig struct {
	Interval  time.Duration `koanf:"interval"`
	BatchSize int           `koanf:"batch_size"`
}

var defaults = map[string]interface{}{
	"http.port":                 "8080",
	"http.cors_origins":         []string{"http://localhost:5173"},
	"log.level":                 "info",
	"auth.jwt_secret":           "",
	"cache.backend":             "redis",
	"cache.addr":                "localhost:6379",
	"cache.db":                  0,
	"cache.prefix":              "civic:",
	"cache.default_ttl":         "600s",
	"cache.scan_count":          100,
	"cache.cleanup_interval":    "1m",
	"cache.invalidation_mode":   "sync",
	"mongo.uri":                 "mongodb://localhost:27017",
	"mongo.database":            "civicreport",
	"mongo.timeout":             "10s",
	"mongo.transactions":        false,
	"kafka.enabled":             false,
	"kafka.brokers":             []string{"localhost:9092"},
	"kafka.group_id":            "civicreport",
	"clickhouse.enabled":        false,
	"clickhouse.addr":           "localhost:9000",
	"clickhouse.database":       "civicreport",
	"clickhouse.username":       "default",
	"clickhouse.batch_size":     100,
	"clickhouse.flush_interval": "5s",
	"outbox.interval":           "1s",
	"outbox.batch_size":         50,
}

// listKeys son las claves que en el entorno llegan separadas por comas.
var listKeys = map[string]struct{}{
	"http.cors_origins": {},
	"kafka.brokers":     {},
}

func splitList(v string) []string {
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadConfig aplica, por orden de precedencia creciente: valores por defecto,
// el YAML de CIVIC_CONFIG_FILE si existe y las variables CIVIC_*. El doble
// guion bajo separa niveles: CIVIC_CACHE__SCAN_COUNT -> cache.scan_count.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(EnvFileVar))
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	transform := func(s, v string) (string, interface{}) {
		if s == EnvFileVar {
			return "", nil
		}
		key := strings.TrimPrefix(s, EnvPrefix)
		key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
		if _, ok := listKeys[key]; ok {
			return key, splitList(v)
		}
		return key, v
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("config: http.port required"))
	}
	switch c.Cache.Backend {
	case "redis", "valkey", "memory":
	default:
		errs = append(errs, fmt.Errorf("config: unknown cache.backend %q", c.Cache.Backend))
	}
	switch c.Cache.InvalidationMode {
	case "sync", "async":
	default:
		errs = append(errs, fmt.Errorf("config: unknown cache.invalidation_mode %q", c.Cache.InvalidationMode))
	}
	if c.Cache.ScanCount <= 0 {
		errs = append(errs, errors.New("config: cache.scan_count must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("config: kafka.brokers required when kafka is enabled"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("config: outbox.batch_size must be positive"))
	}
	return errors.Join(errs...)
}
