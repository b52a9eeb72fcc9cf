package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/pkg/response"
)

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type registerWebhookRequest struct {
	URL string `json:"url"`
}

// AdminListOrders 后台订单列表
// @Summary 订单列表（后台）
// @Tags 后台
// @Produce json
// @Security BearerAuth
// @Param status query string false "订单状态"
// @Param user_id query string false "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/admin/orders [get]
func (h *Handler) AdminListOrders(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	if pageSize > 100 {
		pageSize = 100
	}
	f := repository.OrderFilter{
		Status: model.OrderStatus(strings.ToUpper(c.Query("status"))),
		UserID: c.Query("user_id"),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	list, total, err := h.orders.ListAll(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "total": total, "list": list})
}

// AdminUpdateStatus 履约状态变更（发货、签收、取消）
// @Summary 更新订单状态（后台）
// @Tags 后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "订单ID"
// @Param request body updateStatusRequest true "目标状态"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/admin/orders/{id}/status [put]
func (h *Handler) AdminUpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	target := model.OrderStatus(strings.ToUpper(req.Status))
	if !target.Valid() {
		response.BadRequest(c, "unknown status "+req.Status)
		return
	}
	res, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), target)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res.Order)
}

// AdminRegisterWebhook 向网关登记回调地址
// @Summary 登记回调地址（后台）
// @Tags 后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body registerWebhookRequest false "回调地址，留空使用默认"
// @Success 200 {object} response.Response{data=gateway.WebhookResult}
// @Failure 400 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/admin/webhooks [post]
func (h *Handler) AdminRegisterWebhook(c *gin.Context) {
	var req registerWebhookRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	res, err := h.webhookAdmin.Register(c.Request.Context(), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

// AdminGetWebhook 查询当前登记的回调地址
// @Summary 查询回调地址（后台）
// @Tags 后台
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=gateway.WebhookResult}
// @Failure 502 {object} response.Response
// @Router /api/v1/admin/webhooks [get]
func (h *Handler) AdminGetWebhook(c *gin.Context) {
	res, err := h.webhookAdmin.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

// AdminDeleteWebhook 删除回调地址
// @Summary 删除回调地址（后台）
// @Tags 后台
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=gateway.WebhookResult}
// @Failure 502 {object} response.Response
// @Router /api/v1/admin/webhooks [delete]
func (h *Handler) AdminDeleteWebhook(c *gin.Context) {
	res, err := h.webhookAdmin.Delete(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}
