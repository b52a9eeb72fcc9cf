package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/service"
	"github.com/KIRA-Technologies/swagchain/internal/testutil"
)

func TestOrders_ScopedToUser(t *testing.T) {
	e := newEnv(t, testSecret)
	p := testutil.SeedProduct(t, e.store, "A", "10.00", 5)
	order := e.checkout(t, "u1", p, 1)

	w := e.do(http.MethodGet, "/api/v1/orders/"+order.ID, "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/v1/orders/"+order.ID, "u2", nil).Code)

	w = e.do(http.MethodGet, "/api/v1/orders", "u1", nil)
	var list struct {
		Data []model.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, order.ID, list.Data[0].ID)
}

func TestRefreshPayment(t *testing.T) {
	e := newEnv(t, testSecret)
	p := testutil.SeedProduct(t, e.store, "A", "10.00", 5)
	order := e.checkout(t, "u1", p, 1)

	var res struct {
		Data service.RefreshResult `json:"data"`
	}

	w := e.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/refresh", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Data.Verified)
	assert.Equal(t, model.OrderStatusCreated, res.Data.Status)

	e.status.status = &gateway.PaymentStatus{Verified: true, Status: "PAID"}
	w = e.do(http.MethodPost, "/api/v1/orders/"+order.ID+"/refresh", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Data.Verified)
	assert.Equal(t, model.OrderStatusPaid, res.Data.Status)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/v1/orders/missing/refresh", "u1", nil).Code)
}

func TestAdmin_UpdateStatusAndList(t *testing.T) {
	e := newEnv(t, testSecret)
	p := testutil.SeedProduct(t, e.store, "A", "10.00", 5)
	order := e.checkout(t, "u1", p, 2)
	path := "/api/v1/admin/orders/" + order.ID + "/status"

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPut, path, "u1", gin.H{"status": "SHIPPED"}).Code)

	// CREATED 不能直接发货
	assert.Equal(t, http.StatusConflict, e.do(http.MethodPut, path, "admin", gin.H{"status": "SHIPPED"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPut, path, "admin", gin.H{"status": "LOST"}).Code)

	w := e.do(http.MethodPut, path, "admin", gin.H{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.OrderStatusCancelled, e.reload(t, order.ID).Status)
	assert.Equal(t, 5, testutil.Stock(t, e.store, p.ID))

	w = e.do(http.MethodGet, "/api/v1/admin/orders?status=CANCELLED", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data struct {
			Total int64         `json:"total"`
			List  []model.Order `json:"list"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Data.Total)
	require.Len(t, page.Data.List, 1)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/v1/admin/orders?status=bogus", "admin", nil).Code)
}

func TestAdmin_Webhooks(t *testing.T) {
	e := newEnv(t, testSecret)

	w := e.do(http.MethodPost, "/api/v1/admin/webhooks", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://shop.example/api/webhooks/kira-pay", e.registrar.url)

	w = e.do(http.MethodPost, "/api/v1/admin/webhooks", "admin", gin.H{"url": "ftp://nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/v1/admin/webhooks", "admin", nil).Code)

	e.registrar.err = &gateway.APIError{StatusCode: http.StatusUnauthorized, Message: "bad token"}
	w = e.do(http.MethodDelete, "/api/v1/admin/webhooks", "admin", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "payment gateway error: bad token", decode(t, w).Message)
}

func TestAdmin_RegisterRequiresSecret(t *testing.T) {
	e := newEnv(t, "")
	w := e.do(http.MethodPost, "/api/v1/admin/webhooks", "admin", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Message, "webhook secret")
}
