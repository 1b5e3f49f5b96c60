package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/database"
	"github.com/qs3c/vip_task_server/internal/pkg/lock"
	"github.com/qs3c/vip_task_server/internal/pkg/logger"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
	"github.com/qs3c/vip_task_server/internal/repository"
	"github.com/qs3c/vip_task_server/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", true, "只列出需要修复的实例，不写库")
	timeout = flag.Duration("timeout", 10*time.Minute, "整体超时时间")
)

// 修复进度已满但状态仍为 approved 的权限实例
func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect database", "error", err)
		os.Exit(1)
	}
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	accessRepo := repository.NewAccessRepository(db)
	comboRepo := repository.NewComboRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	exec := service.NewExecutor(txn.NewManager(db), lock.NewRedisLocker(rdb, cfg.Lock.Expiry, cfg.Lock.Tries))
	balanceService := service.NewBalanceService(repository.NewUserRepository(db), repository.NewLedgerRepository(db), exec)
	catalogService := service.NewCatalogService(repository.NewVipRepository(db), accessRepo, comboRepo, purchaseRepo)
	taskService := service.NewTaskService(accessRepo, comboRepo, purchaseRepo, balanceService, catalogService, exec, nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	slog.Info("Starting reconcile", "dry_run", *dryRun)
	items, err := taskService.Reconcile(ctx, *dryRun)
	for _, item := range items {
		slog.Info("进度已满",
			"access_id", item.AccessID,
			"user_id", item.UserID,
			"purchased", item.PurchasedCount,
			"total", item.TotalTasks,
		)
	}
	if err != nil {
		slog.Error("Reconcile failed", "matched", len(items), "error", err)
		os.Exit(1)
	}

	if *dryRun {
		slog.Info("Dry run finished, run with -dry-run=false to apply", "matched", len(items))
		return
	}
	slog.Info("Reconcile finished", "fixed", len(items))
}
