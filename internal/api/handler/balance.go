package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vip_task_server/internal/api/middleware"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/pkg/response"
	"github.com/qs3c/vip_task_server/internal/service"
)

type BalanceHandler struct {
	balanceService *service.BalanceService
}

func NewBalanceHandler(balanceService *service.BalanceService) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
	}
}

// GetBalance 当前余额
// GET /api/v1/user/balance
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	balance, err := h.balanceService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, &dto.BalanceResponse{
		UserID:  userID,
		Balance: balance.StringFixed(2),
	})
}

// Transactions 余额流水
// GET /api/v1/user/transactions
func (h *BalanceHandler) Transactions(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.balanceService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		renderError(c, err)
		return
	}

	items := make([]*dto.TransactionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toTransactionResponse(&entries[i]))
	}
	response.SuccessPage(c, total, page, pageSize, items)
}

// Credit 管理员充值
// POST /api/v1/admin/users/:id/credit
func (h *BalanceHandler) Credit(c *gin.Context) {
	operatorID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的用户ID")
		return
	}

	var req dto.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	entry, err := h.balanceService.Credit(c.Request.Context(), operatorID, userID, req.Amount, req.Note)
	if err != nil {
		renderError(c, err)
		return
	}

	response.SuccessWithMessage(c, "充值成功", toTransactionResponse(entry))
}
