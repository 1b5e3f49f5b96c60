package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vip_task_server/internal/api/middleware"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/pkg/response"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/service"
)

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// Purchase 购买下一个任务
// POST /api/v1/tasks/:access_id/purchase
func (h *TaskHandler) Purchase(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	accessID, err := strconv.ParseInt(c.Param("access_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的权限ID")
		return
	}

	outcome, err := h.taskService.AttemptPurchase(c.Request.Context(), userID, accessID)
	if err != nil {
		if errors.Is(err, progression.ErrNoActiveAccess) {
			response.SuccessWithMessage(c, "没有进行中的VIP任务", &dto.PurchaseResponse{
				Status:   service.PurchaseStatusNoActiveAccess,
				AccessID: accessID,
			})
			return
		}
		renderError(c, err)
		return
	}

	response.Success(c, toPurchaseResponse(outcome))
}

// State 任务面板：进度和下一个任务
// GET /api/v1/tasks/:access_id
func (h *TaskHandler) State(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	accessID, err := strconv.ParseInt(c.Param("access_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的权限ID")
		return
	}

	state, quote, err := h.taskService.State(c.Request.Context(), userID, accessID)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, &dto.TaskStateResponse{
		Access:   toAccessResponse(state.Access),
		Progress: toProgress(state.Progress),
		Next:     toNextTask(quote),
	})
}

// Catalog 冻结目录
// GET /api/v1/tasks/:access_id/catalog
func (h *TaskHandler) Catalog(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	accessID, err := strconv.ParseInt(c.Param("access_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的权限ID")
		return
	}

	state, _, err := h.taskService.State(c.Request.Context(), userID, accessID)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, &dto.CatalogResponse{
		AccessID: accessID,
		Items:    toCatalogItems(state),
	})
}
