// Package api 组装 HTTP 路由
package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/KIRA-Technologies/swagchain/config"
	_ "github.com/KIRA-Technologies/swagchain/docs"
	"github.com/KIRA-Technologies/swagchain/internal/api/handler"
	"github.com/KIRA-Technologies/swagchain/internal/api/middleware"
)

// NewRouter 公共路由、回调路由、用户 API 与后台 API
func NewRouter(h *handler.Handler, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		sentrygin.New(sentrygin.Options{Repanic: true}),
		otelgin.Middleware(cfg.Tracing.ServiceName),
		middleware.Logger(),
		middleware.Metrics(),
	)

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	hooks := r.Group("/api/webhooks", middleware.RateLimit(cfg.RateLimit.WebhookRPS, cfg.RateLimit.WebhookBurst))
	for _, path := range []string{"/kira-pay", "/kirapay"} {
		hooks.POST(path, h.KiraPayWebhook)
		hooks.GET(path, h.KiraPayWebhookProbe)
	}

	v1 := r.Group("/api/v1", gzip.Gzip(gzip.DefaultCompression), middleware.JWTAuth(cfg.JWT.Secret))
	{
		v1.GET("/cart", h.GetCart)
		v1.POST("/cart/items", h.AddToCart)
		v1.POST("/checkout", h.Checkout)
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.POST("/orders/:id/refresh", h.RefreshPayment)
	}

	admin := v1.Group("/admin", middleware.AdminOnly())
	{
		admin.GET("/orders", h.AdminListOrders)
		admin.PUT("/orders/:id/status", h.AdminUpdateStatus)
		admin.POST("/webhooks", h.AdminRegisterWebhook)
		admin.GET("/webhooks", h.AdminGetWebhook)
		admin.DELETE("/webhooks", h.AdminDeleteWebhook)
	}

	return r
}
