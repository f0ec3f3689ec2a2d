package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentgate/internal/platform/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Gate.ConsentTimeout)
	assert.Equal(t, 256, cfg.Gate.AuditBuffer)
	assert.Equal(t, "consentgate.audit", cfg.Kafka.Topic)
	assert.False(t, cfg.Debug)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONSENTGATE_SERVER_ADDR", ":9090")
	t.Setenv("CONSENTGATE_GATE_CONSENT_TIMEOUT", "5s")
	t.Setenv("CONSENTGATE_DEBUG", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Gate.ConsentTimeout)
	assert.True(t, cfg.Debug)
}

func TestBrokerList(t *testing.T) {
	assert.Nil(t, config.KafkaConfig{}.BrokerList())
	assert.Equal(t,
		[]string{"broker-a:9092", "broker-b:9092"},
		config.KafkaConfig{Brokers: "broker-a:9092, broker-b:9092"}.BrokerList(),
	)
}
