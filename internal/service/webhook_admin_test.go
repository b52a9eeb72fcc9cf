package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/gateway"
)

type fakeRegistrar struct {
	url, secret string
	deleted     bool
}

func (f *fakeRegistrar) RegisterWebhook(_ context.Context, url, secret string) (*gateway.WebhookResult, error) {
	f.url, f.secret = url, secret
	return &gateway.WebhookResult{Endpoint: &gateway.WebhookEndpoint{ID: "wh1", URL: url}}, nil
}

func (f *fakeRegistrar) GetWebhook(context.Context) (*gateway.WebhookResult, error) {
	if f.url == "" {
		return &gateway.WebhookResult{Message: "none"}, nil
	}
	return &gateway.WebhookResult{Endpoint: &gateway.WebhookEndpoint{URL: f.url}}, nil
}

func (f *fakeRegistrar) DeleteWebhook(context.Context) (*gateway.WebhookResult, error) {
	f.deleted = true
	return &gateway.WebhookResult{Message: "deleted"}, nil
}

func TestWebhookAdmin_RegisterDefaultURL(t *testing.T) {
	reg := &fakeRegistrar{}
	svc := NewWebhookAdminService(reg,
		config.WebhookConfig{Secret: "whsec-abcdef"},
		config.AppConfig{PublicURL: "https://shop.example/"})

	res, err := svc.Register(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/api/webhooks/kira-pay", reg.url)
	assert.Equal(t, "whsec-abcdef", reg.secret)
	assert.Equal(t, "wh1", res.Endpoint.ID)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reg.url, got.Endpoint.URL)

	_, err = svc.Delete(context.Background())
	require.NoError(t, err)
	assert.True(t, reg.deleted)
}

func TestWebhookAdmin_RegisterRequiresSecret(t *testing.T) {
	reg := &fakeRegistrar{}
	svc := NewWebhookAdminService(reg, config.WebhookConfig{Secret: "abc"}, config.AppConfig{PublicURL: "https://shop.example"})

	_, err := svc.Register(context.Background(), "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, reg.url, "gateway must not be called")
}

func TestWebhookAdmin_RegisterRejectsRelativeURL(t *testing.T) {
	svc := NewWebhookAdminService(&fakeRegistrar{}, config.WebhookConfig{Secret: "whsec-abcdef"}, config.AppConfig{})
	_, err := svc.Register(context.Background(), "/api/webhooks/kira-pay")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
