package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション設定を表す
type Config struct {
	Env            string `envconfig:"APP_ENV" default:"development"`
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	ChannelManager ChannelManagerConfig
	RabbitMQ       RabbitMQConfig
	Reservation    ReservationConfig
	Tracing        TracingConfig
	Metrics        MetricsConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            string        `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"postgres"`
	Password        string        `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName          string        `envconfig:"DB_NAME" default:"hotel_reservation"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	URL             string        `envconfig:"DATABASE_URL"`
	MigrationsPath  string        `envconfig:"MIGRATIONS_PATH" default:"migrations"`
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	URL      string `envconfig:"REDIS_URL"`
}

// ChannelManagerConfig はチャネルマネージャー接続設定
type ChannelManagerConfig struct {
	URL     string        `envconfig:"CHANNEL_MANAGER_URL"`
	Timeout time.Duration `envconfig:"CHANNEL_MANAGER_TIMEOUT" default:"15s"`
}

// RabbitMQConfig は通知キューの設定（URL 未設定なら通知しない）
type RabbitMQConfig struct {
	URL      string `envconfig:"RABBITMQ_URL"`
	Exchange string `envconfig:"NOTIFICATION_EXCHANGE" default:"notification.exchange"`
	Queue    string `envconfig:"NOTIFICATION_QUEUE" default:"notification.email"`
}

// ReservationConfig は予約フローの設定
type ReservationConfig struct {
	FlowTimeout       time.Duration `envconfig:"RESERVATION_FLOW_TIMEOUT" default:"60s"`
	LockTTL           time.Duration `envconfig:"INVENTORY_LOCK_TTL" default:"45s"`
	LockWait          time.Duration `envconfig:"INVENTORY_LOCK_WAIT" default:"10s"`
	LockRetryInterval time.Duration `envconfig:"INVENTORY_LOCK_RETRY_INTERVAL" default:"50ms"`
	AvailabilityTTL   time.Duration `envconfig:"AVAILABILITY_CACHE_TTL" default:"30s"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	PendingTimeout    time.Duration `envconfig:"RECONCILE_PENDING_AFTER" default:"5m"`
}

// TracingConfig はトレーシング設定（エンドポイント未設定なら無効）
type TracingConfig struct {
	Endpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"hotel-reservation-broker"`
}

// MetricsConfig は /metrics の Basic 認証設定
type MetricsConfig struct {
	User     string `envconfig:"METRICS_USER"`
	Password string `envconfig:"METRICS_PASSWORD"`
}

// IsEnabled は認証が有効かどうかを返す
func (c *MetricsConfig) IsEnabled() bool {
	return c.User != "" && c.Password != ""
}

// Load は環境変数から設定を読み込む
// DATABASE_URL / REDIS_URL が設定されている場合は個別の設定より優先する
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if cfg.Database.URL != "" {
		if err := cfg.Database.applyURL(cfg.Database.URL); err != nil {
			return nil, err
		}
	}
	if cfg.Redis.URL != "" {
		if err := cfg.Redis.applyURL(cfg.Redis.URL); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// IsProduction は本番環境かどうかを返す
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

func (c *DatabaseConfig) applyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("DATABASE_URL の形式が不正です: %w", err)
	}
	c.Host = u.Hostname()
	if port := u.Port(); port != "" {
		c.Port = port
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	if name := trimSlash(u.Path); name != "" {
		c.DBName = name
	}
	// URL 指定時はマネージド環境を想定して既定で require
	c.SSLMode = "require"
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
	return nil
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func (c *RedisConfig) applyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("REDIS_URL の形式が不正です: %w", err)
	}
	c.Host = u.Hostname()
	if port := u.Port(); port != "" {
		c.Port = port
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	return nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	return s
}
