package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/database"
	"github.com/qs3c/vip_task_server/internal/metrics"
	"github.com/qs3c/vip_task_server/internal/pkg/cron"
	"github.com/qs3c/vip_task_server/internal/pkg/events"
	"github.com/qs3c/vip_task_server/internal/pkg/lock"
	"github.com/qs3c/vip_task_server/internal/pkg/logger"
	"github.com/qs3c/vip_task_server/internal/pkg/pubsub"
	"github.com/qs3c/vip_task_server/internal/pkg/queue"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
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
	log := logger.Init(cfg.Log)

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		fatal("Failed to connect database", err)
	}

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		fatal("Failed to connect redis", err)
	}

	eventQueue := queue.NewQueue(rdb, cfg.Queue.EventQueue)
	notifier := service.NewNotifier(eventQueue, pubsub.NewPublisher(rdb, cfg.Queue.ProgressTopic))

	// 过期申请处理需要完整的权限服务
	userRepo := repository.NewUserRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	vipRepo := repository.NewVipRepository(db)
	exec := service.NewExecutor(txn.NewManager(db), lock.NewRedisLocker(rdb, cfg.Lock.Expiry, cfg.Lock.Tries))
	balanceService := service.NewBalanceService(userRepo, repository.NewLedgerRepository(db), exec)
	catalogService := service.NewCatalogService(vipRepo, accessRepo, repository.NewComboRepository(db), repository.NewPurchaseRepository(db))
	accessService := service.NewAccessService(accessRepo, userRepo, vipRepo, balanceService, catalogService, exec, notifier, cfg)

	// 事件转发到 Kafka
	kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer kafkaPublisher.Close()

	m := metrics.Get()
	forwarder := events.NewForwarder(eventQueue, kafkaPublisher, log.With("component", "forwarder"),
		events.WithResultHook(func(ok bool) {
			status := "success"
			if !ok {
				status = "failed"
			}
			m.EventPublishTotal.WithLabelValues("kafka", status).Inc()
		}),
	)

	scheduler := cron.NewService(accessService, cfg.Access)
	if err := scheduler.Start(); err != nil {
		fatal("Failed to start scheduler", err)
	}

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := forwarder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("事件转发中断", "error", err)
			cancel()
		}
	}()
	slog.Info("Worker started", "queue", cfg.Queue.EventQueue, "topic", cfg.Kafka.Topic)

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		slog.Info("Received shutdown signal")
	case <-ctx.Done():
	}

	cancel()
	scheduler.Stop(30 * time.Second)
	wg.Wait()
	slog.Info("Worker shutdown complete")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
