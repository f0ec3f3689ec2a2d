// Package config loads demo configuration: struct defaults layered under
// CONSENTGATE_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	pkgstrings "consentgate/pkg/platform/strings"
)

// Config captures everything the demo binary needs.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Gate   GateConfig   `koanf:"gate"`
	Redis  RedisConfig  `koanf:"redis"`
	Kafka  KafkaConfig  `koanf:"kafka"`
	Debug  bool         `koanf:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// GateConfig holds consent-gate settings.
type GateConfig struct {
	ConsentTimeout time.Duration `koanf:"consent_timeout"`
	QueueLimit     int           `koanf:"queue_limit"`
	AuditBuffer    int           `koanf:"audit_buffer"`
}

// RedisConfig enables the Redis consent source when Addr is set.
type RedisConfig struct {
	Addr string `koanf:"addr"`
}

// KafkaConfig enables the Kafka audit sink when Brokers is set.
type KafkaConfig struct {
	Brokers string `koanf:"brokers"`
	Topic   string `koanf:"topic"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Gate: GateConfig{
			ConsentTimeout: 30 * time.Second,
			QueueLimit:     0,
			AuditBuffer:    256,
		},
		Kafka: KafkaConfig{
			Topic: "consentgate.audit",
		},
	}
}

// Load builds the configuration from defaults overridden by environment
// variables (CONSENTGATE_SERVER_ADDR -> server.addr, etc.).
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load config defaults: %w", err)
	}

	envProvider := env.Provider("CONSENTGATE_", ".", func(key string) string {
		key = strings.TrimPrefix(key, "CONSENTGATE_")
		return strings.Replace(strings.ToLower(key), "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load config environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// BrokerList splits the comma-separated broker string.
func (c KafkaConfig) BrokerList() []string {
	if c.Brokers == "" {
		return nil
	}
	return pkgstrings.DedupeAndTrim(strings.Split(c.Brokers, ","))
}
