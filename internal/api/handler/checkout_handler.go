package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/KIRA-Technologies/swagchain/internal/api/middleware"
	"github.com/KIRA-Technologies/swagchain/internal/service"
	"github.com/KIRA-Technologies/swagchain/pkg/response"
)

// Checkout 下单并返回支付链接
// @Summary 下单
// @Description 预占库存、创建订单并生成 Kira-Pay 支付链接；网关失败时不会留下订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ShippingAddress true "收货地址"
// @Success 201 {object} response.Response{data=service.CheckoutResult}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/checkout [post]
func (h *Handler) Checkout(c *gin.Context) {
	var addr service.ShippingAddress
	if err := c.ShouldBindJSON(&addr); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.checkout.CreateOrder(c.Request.Context(), middleware.UserID(c), addr)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, res)
}
