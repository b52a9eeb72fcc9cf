package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/api/middleware"
	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/internal/service"
	"github.com/KIRA-Technologies/swagchain/internal/testutil"
	"github.com/KIRA-Technologies/swagchain/internal/webhook"
	"github.com/KIRA-Technologies/swagchain/pkg/response"
)

const (
	testSecret = "whsec-handler-test"
	userHeader = "X-Test-User"
	roleHeader = "X-Test-Role"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLinks struct {
	mu  sync.Mutex
	n   int
	err error
}

func (f *fakeLinks) CreatePaymentLink(_ context.Context, _ gateway.CreateLinkRequest) (*gateway.PaymentLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.n++
	id := fmt.Sprintf("LINK-%d", f.n)
	return &gateway.PaymentLink{ID: id, URL: "https://pay.example/" + id}, nil
}

type fakeStatus struct {
	status *gateway.PaymentStatus
	err    error
}

func (f *fakeStatus) VerifyPaymentStatus(context.Context, string) (*gateway.PaymentStatus, error) {
	return f.status, f.err
}

type fakeRegistrar struct {
	url string
	err error
}

func (f *fakeRegistrar) RegisterWebhook(_ context.Context, url, _ string) (*gateway.WebhookResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.url = url
	return &gateway.WebhookResult{Message: "registered", Endpoint: &gateway.WebhookEndpoint{ID: "wh_1", URL: url}}, nil
}

func (f *fakeRegistrar) GetWebhook(context.Context) (*gateway.WebhookResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.WebhookResult{Endpoint: &gateway.WebhookEndpoint{ID: "wh_1", URL: f.url}}, nil
}

func (f *fakeRegistrar) DeleteWebhook(context.Context) (*gateway.WebhookResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.WebhookResult{Message: "deleted"}, nil
}

type env struct {
	store     *repository.Store
	router    *gin.Engine
	links     *fakeLinks
	status    *fakeStatus
	registrar *fakeRegistrar
	verifier  *webhook.Verifier
}

// newEnv 用请求头模拟身份，避免每个用例都签发 JWT
func newEnv(t *testing.T, secret string) *env {
	t.Helper()
	store := testutil.NewStore(t)
	orders := service.NewOrderService(store)
	e := &env{
		store:     store,
		links:     &fakeLinks{},
		status:    &fakeStatus{status: &gateway.PaymentStatus{Status: "PENDING"}},
		registrar: &fakeRegistrar{},
		verifier:  webhook.NewVerifier(secret),
	}
	h := New(Services{
		Cart:     service.NewCartService(store),
		Checkout: service.NewCheckoutService(store, e.links, "https://shop.example"),
		Orders:   orders,
		Payments: service.NewPaymentService(orders, e.status, nil),
		Webhooks: service.NewWebhookService(store, orders),
		WebhookAdmin: service.NewWebhookAdminService(e.registrar,
			config.WebhookConfig{Secret: secret},
			config.AppConfig{PublicURL: "https://shop.example"}),
	}, e.verifier, 1<<10)

	r := gin.New()
	r.POST("/api/webhooks/kira-pay", h.KiraPayWebhook)
	r.GET("/api/webhooks/kira-pay", h.KiraPayWebhookProbe)

	v1 := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, c.GetHeader(userHeader))
		c.Set(middleware.ContextRole, c.GetHeader(roleHeader))
	})
	v1.GET("/cart", h.GetCart)
	v1.POST("/cart/items", h.AddToCart)
	v1.POST("/checkout", h.Checkout)
	v1.GET("/orders", h.ListOrders)
	v1.GET("/orders/:id", h.GetOrder)
	v1.POST("/orders/:id/refresh", h.RefreshPayment)

	admin := v1.Group("/admin", middleware.AdminOnly())
	admin.GET("/orders", h.AdminListOrders)
	admin.PUT("/orders/:id/status", h.AdminUpdateStatus)
	admin.POST("/webhooks", h.AdminRegisterWebhook)
	admin.GET("/webhooks", h.AdminGetWebhook)
	admin.DELETE("/webhooks", h.AdminDeleteWebhook)

	e.router = r
	return e
}

func (e *env) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	if user == "admin" {
		req.Header.Set(roleHeader, middleware.RoleAdmin)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) postWebhook(body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/kira-pay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) reload(t *testing.T, orderID string) *model.Order {
	t.Helper()
	order, err := e.store.Orders.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

var testAddress = service.ShippingAddress{
	FullName:   "Ada Lovelace",
	Street:     "12 St James's Square",
	City:       "London",
	State:      "London",
	PostalCode: "SW1Y 4JH",
	Country:    "GB",
}

// checkout 加购并下单，返回订单
func (e *env) checkout(t *testing.T, user string, product *model.Product, qty int) *model.Order {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/cart/items", user, gin.H{"productId": product.ID, "quantity": qty})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/api/v1/checkout", user, testAddress)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		Data service.CheckoutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return e.reload(t, res.Data.OrderID)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var r response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}
