package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/service"
	"github.com/KIRA-Technologies/swagchain/internal/webhook"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
	"github.com/KIRA-Technologies/swagchain/pkg/response"
)

const defaultMaxBodyBytes = 1 << 20

// Services handler 依赖的业务服务
type Services struct {
	Cart         *service.CartService
	Checkout     *service.CheckoutService
	Orders       *service.OrderService
	Payments     *service.PaymentService
	Webhooks     *service.WebhookService
	WebhookAdmin *service.WebhookAdminService
}

type Handler struct {
	cart         *service.CartService
	checkout     *service.CheckoutService
	orders       *service.OrderService
	payments     *service.PaymentService
	webhooks     *service.WebhookService
	webhookAdmin *service.WebhookAdminService

	verifier     *webhook.Verifier
	maxBodyBytes int64
}

// New verifier 未配置密钥时回调不做签名校验，只在这里告警一次
func New(svc Services, verifier *webhook.Verifier, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	if !verifier.Enabled() {
		logger.Warn("webhook secret is not configured, signature verification is disabled")
	}
	return &Handler{
		cart:         svc.Cart,
		checkout:     svc.Checkout,
		orders:       svc.Orders,
		payments:     svc.Payments,
		webhooks:     svc.Webhooks,
		webhookAdmin: svc.WebhookAdmin,
		verifier:     verifier,
		maxBodyBytes: maxBodyBytes,
	}
}

// writeError 业务错误到 HTTP 状态的统一映射
func writeError(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		stock      *service.InsufficientStockError
		transition *service.InvalidTransitionError
		gwErr      *service.PaymentGatewayError
		apiErr     *gateway.APIError
	)
	switch {
	case errors.As(err, &validation):
		response.BadRequest(c, validation.Message)
	case errors.Is(err, service.ErrEmptyCart):
		response.BadRequest(c, err.Error())
	case errors.As(err, &stock):
		response.Conflict(c, stock.Error())
	case errors.As(err, &transition), errors.Is(err, service.ErrConcurrentUpdate):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrProductNotFound):
		response.NotFound(c, err.Error())
	case errors.As(err, &gwErr):
		response.BadGateway(c, "payment gateway error: "+gatewayMessage(gwErr.Err))
	case errors.As(err, &apiErr), errors.Is(err, gateway.ErrMalformedResponse):
		response.BadGateway(c, "payment gateway error: "+gatewayMessage(err))
	default:
		response.InternalError(c, err)
	}
}

func gatewayMessage(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, gateway.ErrMalformedResponse) {
		return gateway.ErrMalformedResponse.Error()
	}
	return "unavailable"
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
