package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"yourmove/common/config"
	"yourmove/internal/models"
)

// Config 分析服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 分析核心配置
	Analyzer struct {
		BufferCapacity       int           // 滚动窗口容量，默认 120（10Hz 下约 12 秒）
		TickRate             float64       // 客户端帧率
		AnalyticsEveryFrames int           // 每 N 帧刷新一次分析载荷缓存
		SessionIdleTimeout   time.Duration // 会话空闲超时，超时后释放状态
	}

	// Redis Streams 配置
	Stream struct {
		Frames        string // 帧数据流
		Commands      string // 指令输出流
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int64
		MaxLen        int64 // 流长度上限（近似裁剪）
	}

	// Redis 缓存配置
	Cache struct {
		SessionKeyPrefix string // 如 "yourmove:session:"
		AnalyticsTTL     time.Duration
		StatusTTL        time.Duration
	}

	// 持久化配置
	Storage struct {
		LogEveryFrames     int             // 每 N 帧写一条 session_data_log
		PersistMinSeverity models.Severity // 不低于该级别的异常写入 anomaly_events
	}

	// MQTT 主题
	Topics struct {
		Frames   string // 订阅，如 "yourmove/+/frames"
		Commands string // 发布模板，如 "yourmove/%s/command"
	}

	Gateway struct {
		Enabled   bool
		Addr      string
		JWTSecret string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 数据库：postgres | sqlite | none
	cfg.Database.Driver = getEnv("STORAGE_DRIVER", "postgres")
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "yourmove")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", "./yourmove.db")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "yourmove-analyzer")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	cfg.Analyzer.BufferCapacity = getEnvInt("ANALYZER_BUFFER_CAPACITY", 120)
	cfg.Analyzer.TickRate = getEnvFloat("ANALYZER_TICK_RATE", 10)
	cfg.Analyzer.AnalyticsEveryFrames = getEnvInt("ANALYTICS_EVERY_FRAMES", 10)
	cfg.Analyzer.SessionIdleTimeout = getEnvSeconds("SESSION_IDLE_TIMEOUT_SECONDS", 300)

	cfg.Stream.Frames = getEnv("STREAM_FRAMES", "yourmove:frames:stream")
	cfg.Stream.Commands = getEnv("STREAM_COMMANDS", "yourmove:commands:stream")
	cfg.Stream.ConsumerGroup = getEnv("CONSUMER_GROUP", "yourmove-analyzer-group")
	cfg.Stream.ConsumerName = getEnv("CONSUMER_NAME", "yourmove-analyzer-1")
	cfg.Stream.BatchSize = int64(getEnvInt("STREAM_BATCH_SIZE", 10))
	cfg.Stream.MaxLen = int64(getEnvInt("STREAM_MAX_LEN", 10000))

	cfg.Cache.SessionKeyPrefix = getEnv("CACHE_SESSION_PREFIX", "yourmove:session:")
	cfg.Cache.AnalyticsTTL = getEnvSeconds("CACHE_ANALYTICS_TTL", 30)
	cfg.Cache.StatusTTL = getEnvSeconds("CACHE_STATUS_TTL", 10)

	cfg.Storage.LogEveryFrames = getEnvInt("STORAGE_LOG_EVERY_FRAMES", 10)
	minSeverity, err := models.ParseSeverity(getEnv("STORAGE_PERSIST_MIN_SEVERITY", "high"))
	if err != nil {
		return nil, fmt.Errorf("STORAGE_PERSIST_MIN_SEVERITY: %w", err)
	}
	cfg.Storage.PersistMinSeverity = minSeverity

	cfg.Topics.Frames = getEnv("MQTT_TOPIC_FRAMES", "yourmove/+/frames")
	cfg.Topics.Commands = getEnv("MQTT_TOPIC_COMMANDS", "yourmove/%s/command")

	cfg.Gateway.Enabled = getEnv("GATEWAY_ENABLED", "true") == "true"
	cfg.Gateway.Addr = getEnv("GATEWAY_ADDR", ":8000")
	cfg.Gateway.JWTSecret = getEnv("JWT_SECRET", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Analyzer.BufferCapacity < 2 {
		return fmt.Errorf("ANALYZER_BUFFER_CAPACITY must be >= 2, got %d", c.Analyzer.BufferCapacity)
	}
	if c.Analyzer.TickRate <= 0 {
		return fmt.Errorf("ANALYZER_TICK_RATE must be > 0, got %v", c.Analyzer.TickRate)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Database.Driver)
	}
	if c.Stream.BatchSize <= 0 {
		return fmt.Errorf("STREAM_BATCH_SIZE must be > 0, got %d", c.Stream.BatchSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

// getEnvSeconds 以秒为单位的时长
func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
