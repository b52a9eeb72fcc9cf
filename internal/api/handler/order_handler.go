package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/KIRA-Technologies/swagchain/internal/api/middleware"
	"github.com/KIRA-Technologies/swagchain/pkg/response"
)

// ListOrders 当前用户的订单，按创建时间倒序
// @Summary 我的订单
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量上限" default(50)
// @Success 200 {object} response.Response{data=[]model.Order}
// @Router /api/v1/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListForUser(c.Request.Context(), middleware.UserID(c), queryInt(c, "limit", 50))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, orders)
}

// GetOrder 订单详情
// @Summary 订单详情
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetForUser(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, order)
}

// RefreshPayment 回调迟到时主动向网关查询支付状态
// @Summary 刷新支付状态
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response{data=service.RefreshResult}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id}/refresh [post]
func (h *Handler) RefreshPayment(c *gin.Context) {
	res, err := h.payments.VerifyAndUpdateOrderPayment(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}
