package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/internal/service"
	"github.com/KIRA-Technologies/swagchain/internal/webhook"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

// KiraPayWebhook 接收网关回调：先校验原始 body 的签名，再解析
// @Summary Kira-Pay 支付回调
// @Tags 回调
// @Accept json
// @Produce json
// @Param X-KiraPay-Signature header string false "HMAC-SHA256 签名"
// @Param X-KiraPay-Timestamp header string false "签名时间戳"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/webhooks/kira-pay [post]
func (h *Handler) KiraPayWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	signature := c.GetHeader(webhook.SignatureHeader)
	if signature == "" {
		signature = c.GetHeader(webhook.LegacySignatureHeader)
	}
	if err := h.verifier.Verify(body, signature, c.GetHeader(webhook.TimestampHeader)); err != nil {
		logger.Warn("webhook signature rejected",
			zap.String("path", c.Request.URL.Path),
			zap.String("reason", err.Error()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	ev, err := webhook.ParseEvent(body)
	if err != nil {
		logger.Warn("malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	res, err := h.webhooks.Handle(c.Request.Context(), ev, body)
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		// 非 2xx 让网关重试，订单可能稍后才落库
		logger.Warn("webhook order not found",
			zap.String("event", ev.Name),
			zap.String("link_code", ev.LinkCode),
			zap.String("custom_order_id", ev.CustomOrderID))
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	case err != nil:
		logger.Error("webhook processing failed",
			zap.String("event", ev.Name),
			zap.String("transaction_id", ev.TransactionID),
			zap.Error(err))
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("webhook.event", ev.Name)
				scope.SetExtra("transaction_id", ev.TransactionID)
				hub.CaptureException(err)
			})
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	logger.Debug("webhook handled",
		zap.String("event", ev.Name),
		zap.String("outcome", string(res.Outcome)),
		zap.String("order_id", res.OrderID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// KiraPayWebhookProbe 网关登记回调地址时的连通性校验
// @Summary 回调地址校验
// @Tags 回调
// @Produce json
// @Param challenge query string false "校验令牌"
// @Success 200 {object} map[string]string
// @Router /api/webhooks/kira-pay [get]
func (h *Handler) KiraPayWebhookProbe(c *gin.Context) {
	if challenge := c.Query("challenge"); challenge != "" {
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Kira-Pay webhook endpoint active"})
}
