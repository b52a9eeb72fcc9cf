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

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.Tolerance)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.True(t, cfg.Webhook.AllowLegacySignatures)
	assert.Equal(t, "https://api.kira-pay.com", cfg.Gateway.BaseURL)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Setenv("KIRA_PAY_API_URL", "https://sandbox.kira-pay.test")
	t.Setenv("KIRA_PAY_API_KEY", "key-123")
	t.Setenv("KIRA_PAY_WEBHOOK_SECRET", "whsec-abcdef")
	t.Setenv("NEXT_PUBLIC_APP_URL", "https://shop.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sandbox.kira-pay.test", cfg.Gateway.BaseURL)
	assert.Equal(t, "key-123", cfg.Gateway.APIKey)
	// 管理令牌回退到 API key
	assert.Equal(t, "key-123", cfg.Gateway.AuthToken)
	assert.Equal(t, "whsec-abcdef", cfg.Webhook.Secret)
	assert.Equal(t, "https://shop.example.com/api/webhooks/kira-pay", cfg.App.DefaultWebhookURL())
}

func TestLoad_NestedEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("GATEWAY_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestValidateForRegistration(t *testing.T) {
	assert.Error(t, WebhookConfig{Secret: ""}.ValidateForRegistration())
	assert.Error(t, WebhookConfig{Secret: "short"}.ValidateForRegistration())
	assert.NoError(t, WebhookConfig{Secret: "sixsix"}.ValidateForRegistration())
}
