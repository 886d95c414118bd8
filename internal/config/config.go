package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig PostgreSQL 连接配置
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN 生成 lib/pq 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig MQTT 通知配置（可选，Broker 为空时禁用通知）
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// Config 监护服务配置
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`

	// 监护服务特定配置
	Guardian struct {
		// Redis 缓存配置
		Cache struct {
			TrailKeyPrefix      string `yaml:"trail_key_prefix"`      // 轨迹缓存键前缀，如 "guardian:subject:"
			TrailSuffix         string `yaml:"trail_suffix"`          // 轨迹缓存键后缀，如 ":trail"
			NearbySuffix        string `yaml:"nearby_suffix"`         // 附近人数缓存键后缀，如 ":nearby"
			AssessmentSuffix    string `yaml:"assessment_suffix"`     // 最新评估缓存键后缀，如 ":assessment"
			AssessmentTTL       int    `yaml:"assessment_ttl"`        // 最新评估 TTL（秒）
		} `yaml:"cache"`

		// 轮询配置
		PollInterval  int `yaml:"poll_interval"`  // 评估轮询间隔（秒）
		SweepInterval int `yaml:"sweep_interval"` // 升级扫描间隔（秒）

		// 评估配置
		Evaluation struct {
			BatchSize int `yaml:"batch_size"` // 批量评估对象数量
		} `yaml:"evaluation"`

		// 触发阈值（对应 trigger.Config）
		Trigger struct {
			CriticalRisk        float64 `yaml:"critical_risk"`
			HighRisk            float64 `yaml:"high_risk"`
			SustainedWindowSec  int     `yaml:"sustained_window_sec"`
			SustainedCount      int     `yaml:"sustained_count"`
			AnomalyThreshold    int     `yaml:"anomaly_threshold"`
			ConfidenceThreshold float64 `yaml:"confidence_threshold"`
			CooldownSec         int     `yaml:"cooldown_sec"`
			ConfirmTimeoutSec   int     `yaml:"confirm_timeout_sec"`
		} `yaml:"trigger"`
	} `yaml:"guardian"`

	// 天气服务配置（BaseURL 为空时禁用）
	Weather struct {
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"weather"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load 加载配置：环境变量兜底，GUARDIAN_CONFIG_FILE 指向的 YAML 可覆盖
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "guardian")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-guardian")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "guardian/trigger-events")

	// 监护服务配置
	cfg.Guardian.Cache.TrailKeyPrefix = getEnv("CACHE_TRAIL_PREFIX", "guardian:subject:")
	cfg.Guardian.Cache.TrailSuffix = ":trail"
	cfg.Guardian.Cache.NearbySuffix = ":nearby"
	cfg.Guardian.Cache.AssessmentSuffix = ":assessment"
	cfg.Guardian.Cache.AssessmentTTL = getEnvInt("CACHE_ASSESSMENT_TTL", 300)

	cfg.Guardian.PollInterval = getEnvInt("POLL_INTERVAL", 30)
	cfg.Guardian.SweepInterval = getEnvInt("SWEEP_INTERVAL", 10)
	cfg.Guardian.Evaluation.BatchSize = getEnvInt("EVAL_BATCH_SIZE", 10)

	cfg.Guardian.Trigger.CriticalRisk = getEnvFloat("TRIGGER_CRITICAL_RISK", 0.85)
	cfg.Guardian.Trigger.HighRisk = getEnvFloat("TRIGGER_HIGH_RISK", 0.75)
	cfg.Guardian.Trigger.SustainedWindowSec = getEnvInt("TRIGGER_SUSTAINED_WINDOW", 300)
	cfg.Guardian.Trigger.SustainedCount = getEnvInt("TRIGGER_SUSTAINED_COUNT", 3)
	cfg.Guardian.Trigger.AnomalyThreshold = getEnvInt("TRIGGER_ANOMALY_THRESHOLD", 3)
	cfg.Guardian.Trigger.ConfidenceThreshold = getEnvFloat("TRIGGER_CONFIDENCE_THRESHOLD", 0.7)
	cfg.Guardian.Trigger.CooldownSec = getEnvInt("TRIGGER_COOLDOWN", 1800)
	cfg.Guardian.Trigger.ConfirmTimeoutSec = getEnvInt("TRIGGER_CONFIRM_TIMEOUT", 60)

	cfg.Weather.BaseURL = getEnv("WEATHER_BASE_URL", "")
	cfg.Weather.APIKey = getEnv("WEATHER_API_KEY", "")
	cfg.Weather.TimeoutSec = getEnvInt("WEATHER_TIMEOUT", 5)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 可选 YAML 覆盖
	if path := os.Getenv("GUARDIAN_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return cfg, nil
}

// SustainedWindow 持续风险滚动窗口
func (c *Config) SustainedWindow() time.Duration {
	return time.Duration(c.Guardian.Trigger.SustainedWindowSec) * time.Second
}

// Cooldown 升级后冷却时长
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Guardian.Trigger.CooldownSec) * time.Second
}

// ConfirmTimeout 人工确认窗口时长
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Guardian.Trigger.ConfirmTimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
