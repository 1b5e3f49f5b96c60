package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Lock     LockConfig     `mapstructure:"lock"`
	Task     TaskConfig     `mapstructure:"task"`
	Combo    ComboConfig    `mapstructure:"combo"`
	Access   AccessConfig   `mapstructure:"access"`
	VIP      VIPConfig      `mapstructure:"vip"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql | sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"` // sqlite 文件路径
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // text | json
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type QueueConfig struct {
	EventQueue    string `mapstructure:"event_queue"`
	ProgressTopic string `mapstructure:"progress_topic"`
}

type LockConfig struct {
	Expiry time.Duration `mapstructure:"expiry"`
	Tries  int           `mapstructure:"tries"`
}

type TaskConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

// ComboConfig 连单参数的取值范围
type ComboConfig struct {
	MinMultiplier      float64 `mapstructure:"min_multiplier"`
	MaxMultiplier      float64 `mapstructure:"max_multiplier"`
	MinDepositPercent  float64 `mapstructure:"min_deposit_percent"`
	MaxDepositPercent  float64 `mapstructure:"max_deposit_percent"`
	MinVipPricePercent float64 `mapstructure:"min_vip_price_percent"`
	MaxVipPricePercent float64 `mapstructure:"max_vip_price_percent"`
}

type AccessConfig struct {
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
	ExpireCron string        `mapstructure:"expire_cron"`
}

type VIPConfig struct {
	Levels []VIPLevelConfig `mapstructure:"levels"`
}

// VIPLevelConfig 启动时写入 vip_levels 的等级定义
type VIPLevelConfig struct {
	Level                int     `mapstructure:"level"`
	Category             string  `mapstructure:"category"`
	ProductsCount        int     `mapstructure:"products_count"`
	CommissionPercentage float64 `mapstructure:"commission_percentage"`
	Price                float64 `mapstructure:"price"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("kafka.topic", "vip-task-events")
	v.SetDefault("queue.event_queue", "queue:vip_events")
	v.SetDefault("queue.progress_topic", "vip:progress")
	v.SetDefault("lock.expiry", "5s")
	v.SetDefault("lock.tries", 32)
	v.SetDefault("task.max_retries", 3)
	v.SetDefault("combo.min_multiplier", 1)
	v.SetDefault("combo.max_multiplier", 500)
	v.SetDefault("combo.min_deposit_percent", 5)
	v.SetDefault("combo.max_deposit_percent", 5000)
	v.SetDefault("combo.min_vip_price_percent", 100)
	v.SetDefault("combo.max_vip_price_percent", 500)
	v.SetDefault("access.pending_ttl", "72h")
	v.SetDefault("access.expire_cron", "0 */10 * * * *")
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
