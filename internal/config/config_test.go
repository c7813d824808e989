package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "file", cfg.Tenants.Kind)
	assert.Equal(t, "default", cfg.Tenants.DefaultTenant)
	assert.Equal(t, "allow", cfg.Authz.OnMembershipError)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 300, cfg.RateLimit.Cap)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 100, cfg.Upstream.PageSize)
	assert.Equal(t, 5, cfg.Queue.Concurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TENANT_STORE", "postgres")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("RATELIMIT_CAP", "50")
	t.Setenv("RATELIMIT_WINDOW", "30s")
	t.Setenv("AUTHZ_ON_MEMBERSHIP_ERROR", "deny")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Tenants.Kind)
	assert.Equal(t, 50, cfg.RateLimit.Cap)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "deny", cfg.Authz.OnMembershipError)
}

func TestValidate_Rejections(t *testing.T) {
	t.Setenv("TENANT_STORE", "redis")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TENANT_STORE", "postgres")
	t.Setenv("DB_PASSWORD", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("TENANT_STORE", "file")
	t.Setenv("AUTHZ_ON_MEMBERSHIP_ERROR", "maybe")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseDuration_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
}
