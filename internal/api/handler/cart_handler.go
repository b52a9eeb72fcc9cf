package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/KIRA-Technologies/swagchain/internal/api/middleware"
	"github.com/KIRA-Technologies/swagchain/pkg/response"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// GetCart 当前用户购物车
// @Summary 查询购物车
// @Tags 购物车
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=service.CartView}
// @Failure 401 {object} response.Response
// @Router /api/v1/cart [get]
func (h *Handler) GetCart(c *gin.Context) {
	view, err := h.cart.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, view)
}

// AddToCart 加入购物车，数量累加
// @Summary 加入购物车
// @Tags 购物车
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body addToCartRequest true "商品与数量"
// @Success 200 {object} response.Response{data=model.CartItem}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/cart/items [post]
func (h *Handler) AddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	item, err := h.cart.AddToCart(c.Request.Context(), middleware.UserID(c), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, item)
}
