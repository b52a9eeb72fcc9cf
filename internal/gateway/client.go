// Package gateway Kira-Pay HTTP 客户端
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/metrics"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

const maxResponseBytes = 1 << 20

// ErrMalformedResponse 网关返回中找不到链接ID或URL
var ErrMalformedResponse = errors.New("malformed gateway response")

// APIError 网关返回非 2xx
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error (%d): %s", e.StatusCode, e.Message)
}

// Client 网关客户端；不做内部重试，超时即失败
type Client struct {
	baseURL   string
	apiKey    string
	authToken string
	http      *http.Client
	tracer    trace.Tracer
}

type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(cfg config.GatewayConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	authToken := cfg.AuthToken
	if authToken == "" {
		authToken = cfg.APIKey
	}
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		authToken: authToken,
		http:      &http.Client{Timeout: timeout},
		tracer:    otel.Tracer("github.com/KIRA-Technologies/swagchain/internal/gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateLinkRequest 创建支付链接参数
type CreateLinkRequest struct {
	Amount      decimal.Decimal
	OrderID     string
	RedirectURL string
}

// PaymentLink 网关托管的支付页
type PaymentLink struct {
	ID  string
	URL string
}

// PaymentStatus 主动查询的支付状态
type PaymentStatus struct {
	Verified bool
	Status   string
}

// CreatePaymentLink 为订单创建一次性支付链接
func (c *Client) CreatePaymentLink(ctx context.Context, req CreateLinkRequest) (*PaymentLink, error) {
	body := map[string]interface{}{
		"price":         json.Number(req.Amount.StringFixed(2)),
		"customOrderId": req.OrderID,
		"redirectUrl":   req.RedirectURL,
		"type":          "single_use",
	}

	var out map[string]interface{}
	if err := c.do(ctx, "create_link", http.MethodPost, "/api/link/generate", body, false, &out); err != nil {
		return nil, err
	}

	link := &PaymentLink{
		ID:  probe(out, []string{"id"}, []string{"linkId"}, []string{"link", "id"}, []string{"data", "id"}),
		URL: probe(out, []string{"url"}, []string{"paymentUrl"}, []string{"link", "url"}, []string{"data", "url"}),
	}
	if link.URL == "" || link.ID == "" {
		logger.Error("gateway link response missing id or url", zap.String("order_id", req.OrderID))
		return nil, ErrMalformedResponse
	}
	return link, nil
}

// VerifyPaymentStatus 查询链接对应的支付状态，PAID/COMPLETED 视为已支付
func (c *Client) VerifyPaymentStatus(ctx context.Context, linkID string) (*PaymentStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := "/api/orders/" + url.PathEscape(linkID) + "/status"
	if err := c.do(ctx, "verify_status", http.MethodGet, path, nil, false, &out); err != nil {
		return nil, err
	}
	status := strings.ToUpper(strings.TrimSpace(out.Status))
	return &PaymentStatus{
		Verified: status == "PAID" || status == "COMPLETED",
		Status:   out.Status,
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in interface{}, admin bool, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("gateway.path", path),
	)

	start := time.Now()
	err := c.roundTrip(ctx, span, method, path, in, admin, out)
	metrics.ObserveGateway(op, err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("gateway call failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, span trace.Span, method, path string, in interface{}, admin bool, out interface{}) error {
	var reader io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	if admin {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func errorMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("HTTP error: %d", status)
}

// probe 依次尝试多个字段路径，返回第一个非空值
func probe(m map[string]interface{}, paths ...[]string) string {
	for _, path := range paths {
		var cur interface{} = m
		for _, key := range path {
			obj, ok := cur.(map[string]interface{})
			if !ok {
				cur = nil
				break
			}
			cur = obj[key]
		}
		switch v := cur.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
