package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Tracking     TrackingConfig     `mapstructure:"tracking"`
	Geo          GeoConfig          `mapstructure:"geo"`
	Notification NotificationConfig `mapstructure:"notification"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin 模式: debug / release / test
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Production bool   `mapstructure:"production"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // mysql / postgres / sqlite
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
}

// 为空时在线状态落在数据库
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// TrackingConfig 事件上报相关的上限与权重
type TrackingConfig struct {
	MaxPageTimeSeconds        int            `mapstructure:"max_page_time_seconds"`
	MaxHeartbeatSeconds       int            `mapstructure:"max_heartbeat_seconds"`
	MaxSessionDurationSeconds int            `mapstructure:"max_session_duration_seconds"`
	SummaryMinDurationSeconds int            `mapstructure:"summary_min_duration_seconds"`
	RevisitIntentBonus        int            `mapstructure:"revisit_intent_bonus"`
	HeatmapMaxPoints          int            `mapstructure:"heatmap_max_points"`
	ShareEventLimit           int            `mapstructure:"share_event_limit"`
	PresenceTTLSeconds        int            `mapstructure:"presence_ttl_seconds"`
	IntentWeights             map[string]int `mapstructure:"intent_weights"`
}

type GeoConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type NotificationConfig struct {
	AppBaseURL         string      `mapstructure:"app_base_url"`
	SendTimeoutSeconds int         `mapstructure:"send_timeout_seconds"`
	Queue              QueueConfig `mapstructure:"queue"`
	Email              EmailConfig `mapstructure:"email"`
	CRM                CRMConfig   `mapstructure:"crm"`
}

type QueueConfig struct {
	Provider   string         `mapstructure:"provider"` // channel / kafka / rabbitmq
	Workers    int            `mapstructure:"workers"`
	BufferSize int            `mapstructure:"buffer_size"`
	Kafka      KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Queue    string `mapstructure:"queue"`
	Prefetch int    `mapstructure:"prefetch"`
}

type EmailConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`
}

type CRMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

var GlobalConfig Config

func Init() error {
	return load("config")
}

// 测试用的配置文件
func InitTest() error {
	return load("config.test")
}

func load(name string) error {
	// 获取项目根目录
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(filepath.Dir(filepath.Dir(b)))

	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(basepath, "config"))
	v.AddConfigPath("./config")

	// DOCTRACK_DATABASE_DSN 之类的环境变量覆盖配置文件
	v.SetEnvPrefix("doctrack")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	GlobalConfig = cfg
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("jwt.expiration", "24h")

	v.SetDefault("tracking.max_page_time_seconds", 300)
	v.SetDefault("tracking.max_heartbeat_seconds", 60)
	v.SetDefault("tracking.max_session_duration_seconds", 7200)
	v.SetDefault("tracking.summary_min_duration_seconds", 30)
	v.SetDefault("tracking.revisit_intent_bonus", 10)
	v.SetDefault("tracking.heatmap_max_points", 200)
	v.SetDefault("tracking.share_event_limit", 500)
	v.SetDefault("tracking.presence_ttl_seconds", 60)

	v.SetDefault("geo.base_url", "http://ip-api.com/json")
	v.SetDefault("geo.timeout_ms", 1500)

	v.SetDefault("notification.send_timeout_seconds", 10)
	v.SetDefault("notification.queue.provider", "channel")
	v.SetDefault("notification.queue.workers", 4)
	v.SetDefault("notification.queue.buffer_size", 256)
	v.SetDefault("notification.queue.kafka.topic", "doctrack_notifications")
	v.SetDefault("notification.queue.kafka.consumer_group", "doctrack-notifier")
	v.SetDefault("notification.queue.rabbitmq.queue", "doctrack.notifications")
	v.SetDefault("notification.queue.rabbitmq.prefetch", 8)
}
