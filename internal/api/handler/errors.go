package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/pkg/response"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/service"
)

// renderError 把领域错误映射为统一响应，未知错误只记录日志不外泄细节
func renderError(c *gin.Context, err error) {
	if fe, ok := progression.AsInsufficientFunds(err); ok {
		response.InsufficientFundsError(c, "", &dto.InsufficientFundsData{
			Required:  fe.Required.StringFixed(2),
			Current:   fe.Current.StringFixed(2),
			Shortfall: fe.Shortfall().StringFixed(2),
		})
		return
	}
	if ve, ok := progression.AsValidation(err); ok {
		response.ParamError(c, ve.Error())
		return
	}
	if progression.IsConfiguration(err) {
		slog.Error("配置错误", "path", c.FullPath(), "error", err)
		response.ConfigError(c, "")
		return
	}

	switch {
	case errors.Is(err, progression.ErrConcurrencyConflict):
		response.ConflictError(c, "")
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrLevelNotFound),
		errors.Is(err, service.ErrAccessNotFound),
		errors.Is(err, service.ErrComboNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrDuplicateAccess):
		response.DuplicateError(c, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrComboLocked):
		response.InvalidStateError(c, err.Error())
	case errors.Is(err, service.ErrNoteRequired),
		errors.Is(err, service.ErrInvalidAmount):
		response.ParamError(c, err.Error())
	default:
		slog.Error("请求处理失败", "path", c.FullPath(), "error", err)
		response.ServerError(c, "")
	}
}
