package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: 9090
auth:
  jwt_secret: file-secret
providers:
  offerwall:
    enabled: true
    secret_key: ow
  qureka:
    enabled: false
business:
  withdrawal_review_sla: 24h
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	t.Setenv("REWARDHUB_AUTH_JWT_SECRET", "env-secret")

	cfg := LoadConfig(path)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Business.WithdrawalReviewSLA)

	// 未配置的字段使用默认值
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, time.Minute, cfg.Business.ConfigCacheTTL)

	require.Contains(t, cfg.Providers, "offerwall")
	assert.True(t, cfg.Providers["offerwall"].Enabled)
	assert.Equal(t, "ow", cfg.Providers["offerwall"].SecretKey)
	assert.False(t, cfg.Providers["qureka"].Enabled)
}
