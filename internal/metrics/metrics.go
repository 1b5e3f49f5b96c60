package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TaskMetrics 任务与权限相关指标
type TaskMetrics struct {
	// 购买相关
	PurchaseTotal    *prometheus.CounterVec // 购买尝试（按结果）
	PurchaseDuration prometheus.Histogram   // 购买耗时
	CommissionAmount *prometheus.CounterVec // 发放佣金（按类型 regular/combo）
	ComboHitTotal    *prometheus.CounterVec // 命中连单（按来源、模式）
	RetryTotal       prometheus.Counter     // 并发冲突重试

	// 权限生命周期
	AccessTransitionTotal *prometheus.CounterVec // 状态流转（按目标状态）
	ComboChangeTotal      *prometheus.CounterVec // 连单配置变更（按操作）

	// 分布式锁
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时

	// 事件与推送
	EventPublishTotal *prometheus.CounterVec // 事件投递（按结果）
	WSConnections     prometheus.Gauge       // 在线进度连接数
}

var (
	instance *TaskMetrics
	once     sync.Once
)

// Get 进程内单例，避免重复注册
func Get() *TaskMetrics {
	once.Do(func() {
		instance = newTaskMetrics()
	})
	return instance
}

func newTaskMetrics() *TaskMetrics {
	return &TaskMetrics{
		PurchaseTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vip_task_purchase_total",
				Help: "Total number of purchase attempts",
			},
			[]string{"result"}, // purchased/completed/insufficient_funds/no_access/conflict/error
		),
		PurchaseDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vip_task_purchase_duration_seconds",
				Help:    "Duration of purchase attempts",
				Buckets: prometheus.DefBuckets,
			},
		),
		CommissionAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vip_task_commission_amount",
				Help: "Commission credited to users",
			},
			[]string{"type"},
		),
		ComboHitTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vip_task_combo_hit_total",
				Help: "Purchases resolved by a combo rule",
			},
			[]string{"source", "mode"},
		),
		RetryTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vip_task_retry_total",
				Help: "Retries after concurrency conflicts",
			},
		),
		AccessTransitionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vip_access_transition_total",
				Help: "Access lifecycle transitions",
			},
			[]string{"status"},
		),
		ComboChangeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vip_combo_change_total",
				Help: "Combo override changes",
			},
			[]string{"op"},
		),
		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vip_lock_acquire_total",
				Help: "Total number of user lock acquisitions",
			},
			[]string{"result"}, // success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vip_lock_acquire_duration_seconds",
				Help:    "Duration of user lock acquisition",
				Buckets: prometheus.DefBuckets,
			},
		),
		EventPublishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vip_event_publish_total",
				Help: "Domain events handed to the queue or broker",
			},
			[]string{"stage", "result"},
		),
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vip_ws_connections",
				Help: "Open progress websocket connections",
			},
		),
	}
}
