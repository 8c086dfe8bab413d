package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "uerp", cfg.Service)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ":8080", cfg.HTTPAddress)
	assert.Equal(t, 5432, cfg.Postgres.WriterHostport)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Search.Addresses)
	assert.Equal(t, 5*time.Minute, cfg.RefreshRBACInterval)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "metrics")
	t.Setenv("SERVICE_VERSION", "2")
	t.Setenv("SEARCH_ADDRESSES", "http://os1:9200,http://os2:9200")
	t.Setenv("REFRESH_RBAC_INTERVAL", "30s")
	t.Setenv("IDENTITY_BASE_URL", "http://keycloak:8080")
	t.Setenv("REDIS_KV_DATABASE", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "metrics", cfg.Service)
	assert.Equal(t, 2, cfg.Version)
	assert.Equal(t, []string{"http://os1:9200", "http://os2:9200"}, cfg.Search.Addresses)
	assert.Equal(t, 30*time.Second, cfg.RefreshRBACInterval)
	assert.Equal(t, 3, cfg.Redis.KVDatabase)
	assert.True(t, cfg.AuthEnabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("SERVICE_VERSION", "0")
	_, err := Load()
	assert.Error(t, err)
}
