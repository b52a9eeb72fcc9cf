package gateway

import (
	"context"
	"net/http"
)

// WebhookEndpoint 网关侧登记的回调地址
type WebhookEndpoint struct {
	ID        string `json:"_id"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt"`
}

// WebhookResult 管理接口返回
type WebhookResult struct {
	Message  string           `json:"message,omitempty"`
	Endpoint *WebhookEndpoint `json:"webhook,omitempty"`
}

type webhookEnvelope struct {
	WebhookEndpoint
	Message string           `json:"message"`
	Webhook *WebhookEndpoint `json:"webhook"`
}

func (e webhookEnvelope) result() *WebhookResult {
	res := &WebhookResult{Message: e.Message, Endpoint: e.Webhook}
	if res.Endpoint == nil && e.URL != "" {
		ep := e.WebhookEndpoint
		res.Endpoint = &ep
	}
	return res
}

// RegisterWebhook 登记回调地址与签名密钥
func (c *Client) RegisterWebhook(ctx context.Context, url, secret string) (*WebhookResult, error) {
	var env webhookEnvelope
	in := map[string]string{"url": url, "secret": secret}
	if err := c.do(ctx, "webhook_register", http.MethodPost, "/api/webhooks", in, true, &env); err != nil {
		return nil, err
	}
	return env.result(), nil
}

// GetWebhook 查询当前登记的回调
func (c *Client) GetWebhook(ctx context.Context) (*WebhookResult, error) {
	var env webhookEnvelope
	if err := c.do(ctx, "webhook_get", http.MethodGet, "/api/webhooks", nil, true, &env); err != nil {
		return nil, err
	}
	return env.result(), nil
}

// DeleteWebhook 删除当前登记的回调
func (c *Client) DeleteWebhook(ctx context.Context) (*WebhookResult, error) {
	var env webhookEnvelope
	if err := c.do(ctx, "webhook_delete", http.MethodDelete, "/api/webhooks", nil, true, &env); err != nil {
		return nil, err
	}
	return env.result(), nil
}
