package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "bcrypt", cfg.Password.Algorithm)
	assert.Equal(t, "none", cfg.Events.Backend)
	assert.Equal(t, "panel_users.events", cfg.Events.Channel)
	assert.Equal(t, "minio", cfg.Storage.Backend)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("PASSWORD_HASHER", "ARGON2ID")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("EVENTS_BACKEND", "rabbitmq")
	t.Setenv("RABBITMQ_QUEUE_DURABLE", "not-a-bool")
	t.Setenv("MINIO_USE_SSL", "1")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "argon2id", cfg.Password.Algorithm)
	assert.Equal(t, 10, cfg.Password.BcryptCost)
	assert.Equal(t, "rabbitmq", cfg.Events.Backend)
	assert.True(t, cfg.RabbitMQ.QueueDurable, "invalid bools keep the default")
	assert.True(t, cfg.Minio.UseSSL)
}
