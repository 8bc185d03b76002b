package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.SUNAT.Mode)
	assert.Equal(t, 5*time.Second, cfg.SUNAT.PollInterval)
	assert.Equal(t, 120, cfg.SUNAT.PollMaxAttempts)
	assert.Equal(t, "tributa", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_LeeVariablesDeEntorno(t *testing.T) {
	t.Setenv("SUNAT_MODE", "live")
	t.Setenv("SUNAT_POLL_INTERVAL", "250ms")
	t.Setenv("SUNAT_AUTO_ADVANCE", "false")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "live", cfg.SUNAT.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.SUNAT.PollInterval)
	assert.False(t, cfg.SUNAT.AutoAdvance)
	assert.Equal(t, "memory", cfg.App.Storage)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoad_ModoSunatInvalido(t *testing.T) {
	t.Setenv("SUNAT_MODE", "sandbox")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_ProduccionExigeSecretoJWT(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestDBConfig_DatabaseURLTienePrioridad(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "tributa", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/tributa?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://otro"
	assert.Equal(t, "postgres://otro", c.ConnectionString())
}
