// Package config loads the client configuration: defaults, then a YAML file
// (with ${VAR} expansion), then QC_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QC_API_BASE_URL.
const EnvPrefix = "QC_"

type Config struct {
	API      APIConfig      `yaml:"api" envPrefix:"API_"`
	Session  SessionConfig  `yaml:"session" envPrefix:"SESSION_"`
	Cache    CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
	Versions VersionsConfig `yaml:"versions" envPrefix:"VERSIONS_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Hooks    HooksConfig    `yaml:"hooks" envPrefix:"HOOKS_"`
}

type APIConfig struct {
	BaseURL   string        `yaml:"base_url" env:"BASE_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	UserAgent string        `yaml:"user_agent" env:"USER_AGENT"`
}

// SessionConfig locates the persisted login. An empty Path keeps it in memory.
type SessionConfig struct {
	Path string `yaml:"path" env:"PATH"`
	Key  string `yaml:"key" env:"KEY"`
}

type CacheConfig struct {
	Disabled  bool          `yaml:"disabled" env:"DISABLED"`
	Namespace string        `yaml:"namespace" env:"NAMESPACE"`
	Provider  string        `yaml:"provider" env:"PROVIDER"` // ristretto | bigcache | redis
	Codec     string        `yaml:"codec" env:"CODEC"`       // json | msgpack | cbor
	Capacity  int           `yaml:"capacity" env:"CAPACITY"`
	TTL       time.Duration `yaml:"ttl" env:"TTL"`
	MaxCostMB int64         `yaml:"max_cost_mb" env:"MAX_COST_MB"`
}

type VersionsConfig struct {
	Store string `yaml:"store" env:"STORE"` // local | redis
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

type LogConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"` // zap | logrus | slog
	Level   string `yaml:"level" env:"LEVEL"`
	Format  string `yaml:"format" env:"FORMAT"` // json | console
}

// HooksConfig controls engine event logging. Every N fields log one event in N;
// 0 and 1 log all of them.
type HooksConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	Async         bool   `yaml:"async" env:"ASYNC"`
	QueueSize     int    `yaml:"queue_size" env:"QUEUE_SIZE"`
	SelfHealEvery uint64 `yaml:"self_heal_every" env:"SELF_HEAL_EVERY"`
	DiscardEvery  uint64 `yaml:"discard_every" env:"DISCARD_EVERY"`
	EvictEvery    uint64 `yaml:"evict_every" env:"EVICT_EVERY"`
	RedactKeys    bool   `yaml:"redact_keys" env:"REDACT_KEYS"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:1337/api",
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{Key: "loggedInUser"},
		Cache: CacheConfig{
			Namespace: "todos",
			Provider:  "ristretto",
			Codec:     "json",
			Capacity:  1024,
			TTL:       10 * time.Minute,
			MaxCostMB: 64,
		},
		Versions: VersionsConfig{Store: "local"},
		Log: LogConfig{
			Backend: "zap",
			Level:   "info",
			Format:  "console",
		},
		Hooks: HooksConfig{
			Enabled:    true,
			Async:      true,
			QueueSize:  1024,
			EvictEvery: 100,
			RedactKeys: true,
		},
	}
}

// Load applies the file at path (optional) and the environment on top of
// Default, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	usesRedis := c.Cache.Provider == "redis" || c.Versions.Store == "redis"
	return validation.ValidateStruct(c,
		validation.Field(&c.API),
		validation.Field(&c.Cache),
		validation.Field(&c.Versions),
		validation.Field(&c.Log),
		validation.Field(&c.Hooks),
		validation.Field(&c.Redis, validation.When(usesRedis, validation.By(func(any) error {
			return validation.Validate(c.Redis.Addr, validation.Required.Error("redis.addr is required when redis is used"))
		}))),
	)
}

func (a APIConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.BaseURL, validation.Required, is.URL),
		validation.Field(&a.Timeout, validation.Min(time.Duration(0))),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Namespace, validation.Required),
		validation.Field(&c.Provider, validation.Required, validation.In("ristretto", "bigcache", "redis")),
		validation.Field(&c.Codec, validation.In("json", "msgpack", "cbor")),
		validation.Field(&c.Capacity, validation.Min(0)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxCostMB, validation.Min(int64(0))),
	)
}

func (v VersionsConfig) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.Store, validation.Required, validation.In("local", "redis")),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Backend, validation.In("zap", "logrus", "slog")),
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "console")),
	)
}

func (h HooksConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.QueueSize, validation.Min(0)),
	)
}
