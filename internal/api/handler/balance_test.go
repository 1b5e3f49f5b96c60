package handler

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/response"
	"github.com/qs3c/vip_task_server/internal/testutil"
)

func TestBalanceHandler(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	user := testutil.TestUser(t, ctx.DB, testutil.WithBalance("12.5"))
	admin := testutil.TestUser(t, ctx.DB, testutil.WithRole(model.RoleAdmin))

	router := gin.New()
	router.GET("/user/balance", mockAuth(user.ID), ctx.Balance.GetBalance)
	router.GET("/user/transactions", mockAuth(user.ID), ctx.Balance.Transactions)
	router.POST("/admin/users/:id/credit", mockAuthWithRole(admin.ID, model.RoleAdmin), ctx.Balance.Credit)

	w := performRequest(router, "GET", "/user/balance", nil)
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "12.50", dataMap(t, resp)["balance"])

	creditPath := fmt.Sprintf("/admin/users/%d/credit", user.ID)
	w = performRequest(router, "POST", creditPath, gin.H{"amount": "0", "note": "x"})
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)

	w = performRequest(router, "POST", creditPath, gin.H{"amount": "7.5", "note": "活动奖励"})
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, "admin_credit", data["type"])
	assert.Equal(t, "20.00", data["balance_after"])

	w = performRequest(router, "POST", "/admin/users/99999/credit", gin.H{"amount": "1"})
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)

	w = performRequest(router, "GET", "/user/transactions", nil)
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	page := dataMap(t, resp)
	assert.Equal(t, float64(1), page["total"])
}
