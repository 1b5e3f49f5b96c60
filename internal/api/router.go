package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/api/handler"
	"github.com/qs3c/vip_task_server/internal/api/middleware"
)

type Router struct {
	taskHandler      *handler.TaskHandler
	accessHandler    *handler.AccessHandler
	comboHandler     *handler.ComboHandler
	balanceHandler   *handler.BalanceHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	taskHandler *handler.TaskHandler,
	accessHandler *handler.AccessHandler,
	comboHandler *handler.ComboHandler,
	balanceHandler *handler.BalanceHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		taskHandler:      taskHandler,
		accessHandler:    accessHandler,
		comboHandler:     comboHandler,
		balanceHandler:   balanceHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		// WebSocket，token 在 query 中校验
		api.GET("/ws", r.websocketHandler.Handle)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			user := authenticated.Group("/user")
			{
				user.GET("/balance", r.balanceHandler.GetBalance)
				user.GET("/transactions", r.balanceHandler.Transactions)
			}

			vip := authenticated.Group("/vip")
			{
				vip.POST("/access", r.accessHandler.Request)
				vip.GET("/access", r.accessHandler.List)
				vip.GET("/categories", r.accessHandler.Categories)
			}

			tasks := authenticated.Group("/tasks")
			{
				tasks.GET("/:access_id", r.taskHandler.State)
				tasks.GET("/:access_id/catalog", r.taskHandler.Catalog)
				tasks.POST("/:access_id/purchase", r.taskHandler.Purchase)
			}
		}

		admin := api.Group("/admin")
		admin.Use(middleware.Auth(r.cfg.JWT.Secret), middleware.AdminOnly())
		{
			admin.GET("/access/:id", r.accessHandler.Get)
			admin.POST("/access/:id/approve", r.accessHandler.Approve)
			admin.POST("/access/:id/reject", r.accessHandler.Reject)
			admin.GET("/access/:id/combos", r.comboHandler.List)
			admin.POST("/access/:id/combos", r.comboHandler.Create)
			admin.PUT("/combos/:id", r.comboHandler.Update)
			admin.DELETE("/combos/:id", r.comboHandler.Delete)
			admin.POST("/users/:id/credit", r.balanceHandler.Credit)
		}
	}

	return engine
}
