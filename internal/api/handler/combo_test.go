package handler

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/response"
)

func comboRouter(ctx *testContext, userID int64) *gin.Engine {
	router := gin.New()
	router.Use(mockAuthWithRole(userID, model.RoleAdmin))
	router.GET("/admin/access/:id/combos", ctx.Combo.List)
	router.POST("/admin/access/:id/combos", ctx.Combo.Create)
	router.PUT("/admin/combos/:id", ctx.Combo.Update)
	router.DELETE("/admin/combos/:id", ctx.Combo.Delete)
	router.POST("/tasks/:access_id/purchase", mockAuth(userID), ctx.Task.Purchase)
	return router
}

func TestComboHandler_Lifecycle(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	user, access := approvedWithCatalog(t, ctx, "500")
	router := comboRouter(ctx, user.ID)
	base := fmt.Sprintf("/admin/access/%d/combos", access.ID)

	w := performRequest(router, "POST", base, gin.H{
		"position":        1,
		"mode":            "deposit",
		"multiplier":      "2",
		"deposit_percent": "50",
	})
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	first := int64(dataMap(t, resp)["id"].(float64))

	w = performRequest(router, "POST", base, gin.H{
		"position":          3,
		"mode":              "price_percentage",
		"multiplier":        "2",
		"vip_price_percent": "150",
	})
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	third := int64(dataMap(t, resp)["id"].(float64))

	w = performRequest(router, "GET", base, nil)
	resp = parseResponse(t, w)
	assert.Len(t, resp.Data.([]interface{}), 2)

	// 第 1 个任务按连单计算：押金 50，佣金 100*15%/3*2 = 10
	w = performRequest(router, "POST", fmt.Sprintf("/tasks/%d/purchase", access.ID), nil)
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, true, data["is_combo"])
	assert.Equal(t, "10.00", data["commission"])
	assert.Equal(t, "5.00", data["combo_bonus"])

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/combos/%d", first), nil)
	assert.Equal(t, response.CodeInvalidState, parseResponse(t, w).Code)

	w = performRequest(router, "PUT", fmt.Sprintf("/admin/combos/%d", third), gin.H{
		"position":        3,
		"mode":            "deposit",
		"multiplier":      "4",
		"deposit_percent": "80",
	})
	resp = parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "4", dataMap(t, resp)["multiplier"])

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/combos/%d", third), nil)
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)
}

func TestComboHandler_Create_Invalid(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	user, access := approvedWithCatalog(t, ctx, "500")
	router := comboRouter(ctx, user.ID)
	base := fmt.Sprintf("/admin/access/%d/combos", access.ID)

	tests := []struct {
		name string
		body gin.H
		code int
	}{
		{"unknown mode", gin.H{"position": 1, "mode": "bogus", "multiplier": "2"}, response.CodeParamError},
		{"position past end", gin.H{"position": 4, "mode": "deposit", "multiplier": "2", "deposit_percent": "50"}, response.CodeParamError},
		{"multiplier out of range", gin.H{"position": 1, "mode": "deposit", "multiplier": "0.5", "deposit_percent": "50"}, response.CodeParamError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(router, "POST", base, tt.body)
			assert.Equal(t, tt.code, parseResponse(t, w).Code)
		})
	}

	w := performRequest(router, "POST", "/admin/access/99999/combos", gin.H{"position": 1, "mode": "deposit", "multiplier": "2", "deposit_percent": "50"})
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)

	w = performRequest(router, "DELETE", "/admin/combos/99999", nil)
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
}
