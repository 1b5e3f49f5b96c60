package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/api/middleware"
	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/lock"
	"github.com/qs3c/vip_task_server/internal/pkg/response"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
	"github.com/qs3c/vip_task_server/internal/repository"
	"github.com/qs3c/vip_task_server/internal/service"
	"github.com/qs3c/vip_task_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testContext 本地测试上下文
type testContext struct {
	DB      *gorm.DB
	Task    *TaskHandler
	Access  *AccessHandler
	Combo   *ComboHandler
	Balance *BalanceHandler
}

func setupHandlers(t *testing.T) (*testContext, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	vipRepo := repository.NewVipRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	comboRepo := repository.NewComboRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	cfg := &config.Config{}
	exec := service.NewExecutor(txn.NewManager(db), lock.NewLocalLocker())
	balanceService := service.NewBalanceService(userRepo, ledgerRepo, exec)
	catalogService := service.NewCatalogService(vipRepo, accessRepo, comboRepo, purchaseRepo)
	accessService := service.NewAccessService(accessRepo, userRepo, vipRepo, balanceService, catalogService, exec, nil, cfg)
	comboService := service.NewComboService(comboRepo, accessRepo, vipRepo, catalogService, exec, cfg)
	taskService := service.NewTaskService(accessRepo, comboRepo, purchaseRepo, balanceService, catalogService, exec, nil, cfg)

	ctx := &testContext{
		DB:      db,
		Task:    NewTaskHandler(taskService),
		Access:  NewAccessHandler(accessService),
		Combo:   NewComboHandler(comboService),
		Balance: NewBalanceHandler(balanceService),
	}

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return ctx, cleanup
}

// mockAuth 模拟认证中间件
func mockAuth(userID int64) gin.HandlerFunc {
	return mockAuthWithRole(userID, model.RoleUser)
}

func mockAuthWithRole(userID int64, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.RoleKey, role)
		c.Next()
	}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}
