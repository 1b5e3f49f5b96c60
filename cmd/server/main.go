package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/api"
	"github.com/qs3c/vip_task_server/internal/api/handler"
	"github.com/qs3c/vip_task_server/internal/database"
	"github.com/qs3c/vip_task_server/internal/pkg/lock"
	"github.com/qs3c/vip_task_server/internal/pkg/logger"
	"github.com/qs3c/vip_task_server/internal/pkg/pubsub"
	"github.com/qs3c/vip_task_server/internal/pkg/queue"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
	"github.com/qs3c/vip_task_server/internal/pkg/ws"
	"github.com/qs3c/vip_task_server/internal/repository"
	"github.com/qs3c/vip_task_server/internal/service"
)

var configPath = flag.String("config", "config.yaml", "配置文件路径")

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log)

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		fatal("Failed to connect database", err)
	}
	if err := database.Migrate(db); err != nil {
		fatal("Failed to migrate database", err)
	}
	slog.Info("Database connected", "driver", cfg.Database.Driver)

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		fatal("Failed to connect redis", err)
	}
	slog.Info("Redis connected")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	vipRepo := repository.NewVipRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	comboRepo := repository.NewComboRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	if err := database.SeedLevels(context.Background(), vipRepo, cfg.VIP.Levels); err != nil {
		fatal("Failed to seed vip levels", err)
	}

	// 事件入队、进度推送
	eventQueue := queue.NewQueue(rdb, cfg.Queue.EventQueue)
	progressPublisher := pubsub.NewPublisher(rdb, cfg.Queue.ProgressTopic)
	notifier := service.NewNotifier(eventQueue, progressPublisher)

	// 初始化 Service
	exec := service.NewExecutor(txn.NewManager(db), lock.NewRedisLocker(rdb, cfg.Lock.Expiry, cfg.Lock.Tries))
	balanceService := service.NewBalanceService(userRepo, ledgerRepo, exec)
	catalogService := service.NewCatalogService(vipRepo, accessRepo, comboRepo, purchaseRepo)
	accessService := service.NewAccessService(accessRepo, userRepo, vipRepo, balanceService, catalogService, exec, notifier, cfg)
	comboService := service.NewComboService(comboRepo, accessRepo, vipRepo, catalogService, exec, cfg)
	taskService := service.NewTaskService(accessRepo, comboRepo, purchaseRepo, balanceService, catalogService, exec, notifier, cfg)

	// 初始化 WebSocket Hub，订阅进度频道转发给在线用户
	wsHub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriber := pubsub.NewSubscriber(rdb, cfg.Queue.ProgressTopic)
	go func() {
		err := subscriber.Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
			// 本实例没有该用户的连接
			if !wsHub.IsOnline(msg.UserID) {
				return
			}
			if err := wsHub.Relay(msg); err != nil {
				slog.Debug("进度推送失败", "user_id", msg.UserID, "error", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("进度订阅中断", "error", err)
		}
	}()

	// 初始化 Handler
	router := api.NewRouter(
		handler.NewTaskHandler(taskService),
		handler.NewAccessHandler(accessService),
		handler.NewComboHandler(comboService),
		handler.NewBalanceHandler(balanceService),
		handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins),
		cfg,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Failed to start server", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	slog.Info("Received shutdown signal")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	slog.Info("Closing websocket connections", "count", wsHub.ConnectionCount())
	wsHub.CloseAll()
	if err := rdb.Close(); err != nil {
		slog.Warn("Redis close failed", "error", err)
	}
	slog.Info("Server shutdown complete")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
