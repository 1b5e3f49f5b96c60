package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vip_task_server/internal/api/middleware"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/pkg/response"
	"github.com/qs3c/vip_task_server/internal/service"
)

type AccessHandler struct {
	accessService *service.AccessService
}

func NewAccessHandler(accessService *service.AccessService) *AccessHandler {
	return &AccessHandler{
		accessService: accessService,
	}
}

// Request 申请VIP权限
// POST /api/v1/vip/access
func (h *AccessHandler) Request(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.RequestAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	access, err := h.accessService.Request(c.Request.Context(), userID, &req)
	if err != nil {
		renderError(c, err)
		return
	}

	response.SuccessWithMessage(c, "申请已提交，等待审批", toAccessResponse(access))
}

// List 我的VIP权限
// GET /api/v1/vip/access
func (h *AccessHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	accesses, total, err := h.accessService.ListByUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		renderError(c, err)
		return
	}

	items := make([]*dto.AccessResponse, 0, len(accesses))
	for i := range accesses {
		items = append(items, toAccessResponse(&accesses[i]))
	}
	response.SuccessPage(c, total, page, pageSize, items)
}

// Categories 已开放的分类
// GET /api/v1/vip/categories
func (h *AccessHandler) Categories(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	categories, err := h.accessService.GrantedCategories(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	response.Success(c, categories)
}

// Get 管理员查看权限实例
// GET /api/v1/admin/access/:id
func (h *AccessHandler) Get(c *gin.Context) {
	accessID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的权限ID")
		return
	}

	access, err := h.accessService.Get(c.Request.Context(), accessID)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, toAccessResponse(access))
}

// Approve 审批通过
// POST /api/v1/admin/access/:id/approve
func (h *AccessHandler) Approve(c *gin.Context) {
	operatorID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	accessID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的权限ID")
		return
	}

	// 请求体可省略，表示不启用连单
	var req dto.ApproveAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.ParamError(c, err.Error())
		return
	}

	access, err := h.accessService.Approve(c.Request.Context(), operatorID, accessID, &req)
	if err != nil {
		renderError(c, err)
		return
	}

	response.SuccessWithMessage(c, "审批通过", toAccessResponse(access))
}

// Reject 拒绝申请
// POST /api/v1/admin/access/:id/reject
func (h *AccessHandler) Reject(c *gin.Context) {
	operatorID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	accessID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的权限ID")
		return
	}

	var req dto.RejectAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	access, err := h.accessService.Reject(c.Request.Context(), operatorID, accessID, req.Note)
	if err != nil {
		renderError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已拒绝并退款", toAccessResponse(access))
}
