package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "POSTGRES_MAX_CONNS", "AUTO_MIGRATE", "KAFKA_BROKERS", "PROJECTOR_WORKERS", "JWT_SECRET"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, int32(10), cfg.PostgresMaxConns)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 4, cfg.ProjectorWorkers)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("POSTGRES_MAX_CONNS", "25")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("PROJECTOR_WORKERS", "-3")
	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, int32(25), cfg.PostgresMaxConns)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 4, cfg.ProjectorWorkers)
}
