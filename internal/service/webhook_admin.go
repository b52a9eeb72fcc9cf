package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

// WebhookRegistrar 网关侧回调登记接口
type WebhookRegistrar interface {
	RegisterWebhook(ctx context.Context, url, secret string) (*gateway.WebhookResult, error)
	GetWebhook(ctx context.Context) (*gateway.WebhookResult, error)
	DeleteWebhook(ctx context.Context) (*gateway.WebhookResult, error)
}

// WebhookAdminService 登记、查询、删除网关回调地址
type WebhookAdminService struct {
	client  WebhookRegistrar
	webhook config.WebhookConfig
	app     config.AppConfig
}

func NewWebhookAdminService(client WebhookRegistrar, webhook config.WebhookConfig, app config.AppConfig) *WebhookAdminService {
	return &WebhookAdminService{client: client, webhook: webhook, app: app}
}

// Register url 为空时使用 <public_url>/api/webhooks/kira-pay
func (s *WebhookAdminService) Register(ctx context.Context, url string) (*gateway.WebhookResult, error) {
	if err := s.webhook.ValidateForRegistration(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	url = strings.TrimSpace(url)
	if url == "" {
		url = s.app.DefaultWebhookURL()
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return nil, validationErrorf("webhook url must be absolute http(s): %q", url)
	}

	res, err := s.client.RegisterWebhook(ctx, url, s.webhook.Secret)
	if err != nil {
		return nil, err
	}
	logger.Info("webhook endpoint registered", zap.String("url", url))
	return res, nil
}

func (s *WebhookAdminService) Get(ctx context.Context) (*gateway.WebhookResult, error) {
	return s.client.GetWebhook(ctx)
}

func (s *WebhookAdminService) Delete(ctx context.Context) (*gateway.WebhookResult, error) {
	res, err := s.client.DeleteWebhook(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("webhook endpoint deleted")
	return res, nil
}
