package config

import (
	"os"
	"strconv"
)

// DatabaseConfig PostgreSQL 配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis 配置（Addr 为空时禁用快照镜像）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT 配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// TopicsConfig MQTT 主题（与 ESP32 固件约定一致）
type TopicsConfig struct {
	Data          string // 统一传感器数据主题
	Status        string // online/offline 状态主题
	ControlRate   string
	ControlEnable string
	ControlBuzzer string
	ControlLED    string
}

// Config 服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Topics   TopicsConfig

	HTTP struct {
		Addr string
	}

	Retention struct {
		Days          int // 读数保留天数
		IntervalHours int // 清理任务运行间隔（小时）
	}

	Snapshot struct {
		CacheKey     string // Redis 快照镜像键
		CacheTTL     int    // 镜像 TTL（秒）
		OfflineAfter int    // 无读数多少秒后标记 offline
	}

	Webhook struct {
		URL string // 为空时禁用报警 webhook
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置（带默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "feuermelder")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "feuermelder-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USER", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 0))

	cfg.Topics.Data = getEnv("TOPIC_SENSORS", "home/sensors/data")
	cfg.Topics.Status = getEnv("TOPIC_STATUS", "home/sensors/status")
	cfg.Topics.ControlRate = getEnv("TOPIC_CONTROL_RATE", "home/sensors/control/rate")
	cfg.Topics.ControlEnable = getEnv("TOPIC_CONTROL_ENABLE", "home/sensors/control/enable")
	cfg.Topics.ControlBuzzer = getEnv("TOPIC_CONTROL_BUZZER", "home/sensors/control/buzzer")
	cfg.Topics.ControlLED = getEnv("TOPIC_CONTROL_LED", "home/sensors/control/led")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":3000")

	cfg.Retention.Days = getEnvInt("RETENTION_DAYS", 30)
	cfg.Retention.IntervalHours = getEnvInt("RETENTION_INTERVAL_HOURS", 24)

	cfg.Snapshot.CacheKey = getEnv("SNAPSHOT_CACHE_KEY", "feuermelder:snapshot")
	cfg.Snapshot.CacheTTL = getEnvInt("SNAPSHOT_CACHE_TTL", 60)
	cfg.Snapshot.OfflineAfter = getEnvInt("OFFLINE_AFTER_SECONDS", 30)

	cfg.Webhook.URL = getEnv("WEBHOOK_URL", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
