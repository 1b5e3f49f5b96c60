package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vip_task_server/internal/api/middleware"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/pkg/response"
	"github.com/qs3c/vip_task_server/internal/service"
)

type ComboHandler struct {
	comboService *service.ComboService
}

func NewComboHandler(comboService *service.ComboService) *ComboHandler {
	return &ComboHandler{
		comboService: comboService,
	}
}

// List 实例下的连单
// GET /api/v1/admin/access/:id/combos
func (h *ComboHandler) List(c *gin.Context) {
	accessID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的权限ID")
		return
	}

	combos, err := h.comboService.List(c.Request.Context(), accessID)
	if err != nil {
		renderError(c, err)
		return
	}

	items := make([]*dto.ComboResponse, 0, len(combos))
	for i := range combos {
		items = append(items, toComboResponse(&combos[i]))
	}
	response.Success(c, items)
}

// Create 新建连单
// POST /api/v1/admin/access/:id/combos
func (h *ComboHandler) Create(c *gin.Context) {
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

	var req dto.ComboRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	combo, err := h.comboService.Create(c.Request.Context(), operatorID, accessID, &req)
	if err != nil {
		renderError(c, err)
		return
	}

	response.SuccessWithMessage(c, "创建成功", toComboResponse(combo))
}

// Update 修改连单
// PUT /api/v1/admin/combos/:id
func (h *ComboHandler) Update(c *gin.Context) {
	comboID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的连单ID")
		return
	}

	var req dto.ComboRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	combo, err := h.comboService.Update(c.Request.Context(), comboID, &req)
	if err != nil {
		renderError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", toComboResponse(combo))
}

// Delete 删除连单
// DELETE /api/v1/admin/combos/:id
func (h *ComboHandler) Delete(c *gin.Context) {
	comboID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的连单ID")
		return
	}

	if err := h.comboService.Delete(c.Request.Context(), comboID); err != nil {
		renderError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}
