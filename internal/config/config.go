package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用程序配置
type Config struct {
	Telegram  TelegramConfig
	LLM       LLMConfig
	Mongo     MongoConfig
	Poller    PollerConfig
	Publisher PublisherConfig
	MediaDir  string // 媒体落盘根目录
}

// TelegramConfig 平台接入配置：读取侧用用户账号（MTProto），
// 发布侧用 Bot API
type TelegramConfig struct {
	APIID           int    // MTProto 应用 ID
	APIHash         string // MTProto 应用 hash
	SessionFile     string // 用户会话文件路径
	BotToken        string // 发布用的 Bot Token
	TargetChannelID string // 全局默认发布目标（可被每频道配置覆盖）
}

// LLMConfig 翻译服务配置
type LLMConfig struct {
	APIKey          string
	BaseURL         string
	FallbackBaseURL string // 主服务不可用时的备用端点
	Model           string
	TargetLanguage  string
}

// MongoConfig 存储配置
type MongoConfig struct {
	URI      string
	Database string
}

// PollerConfig 轮询配置
type PollerConfig struct {
	Interval        time.Duration // 轮询间隔
	InitialSyncDays int           // 首次同步回溯天数
}

// PublisherConfig 发布配置
type PublisherConfig struct {
	SendsPerMinute int // 对目标频道每分钟的最大发送次数
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			APIHash:         os.Getenv("TELEGRAM_API_HASH"),
			SessionFile:     getEnv("TELEGRAM_SESSION_FILE", "session.json"),
			BotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
			TargetChannelID: os.Getenv("TARGET_CHANNEL_ID"),
		},
		LLM: LLMConfig{
			APIKey:          os.Getenv("LLM_API_KEY"),
			BaseURL:         os.Getenv("LLM_BASE_URL"),
			FallbackBaseURL: os.Getenv("LLM_FALLBACK_BASE_URL"),
			Model:           getEnv("LLM_MODEL", "gpt-4o"),
			TargetLanguage:  getEnv("LLM_TARGET_LANGUAGE", "Ukrainian"),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: getEnv("MONGO_DB_NAME", "mirror_bot"),
		},
		MediaDir: getEnv("MEDIA_DIR", "media"),
	}

	apiID, err := parseIntEnv("TELEGRAM_API_ID", 0)
	if err != nil {
		return nil, err
	}
	cfg.Telegram.APIID = apiID

	intervalMs, err := parseIntEnv("POLLER_INTERVAL_MS", 60000)
	if err != nil {
		return nil, err
	}
	if intervalMs < 1000 {
		return nil, fmt.Errorf("POLLER_INTERVAL_MS must be >= 1000, got %d", intervalMs)
	}
	cfg.Poller.Interval = time.Duration(intervalMs) * time.Millisecond

	syncDays, err := parseIntEnv("POLLER_INITIAL_SYNC_DAYS", 30)
	if err != nil {
		return nil, err
	}
	if syncDays < 1 {
		return nil, fmt.Errorf("POLLER_INITIAL_SYNC_DAYS must be >= 1, got %d", syncDays)
	}
	cfg.Poller.InitialSyncDays = syncDays

	sendsPerMinute, err := parseIntEnv("PUBLISHER_SENDS_PER_MINUTE", 20)
	if err != nil {
		return nil, err
	}
	if sendsPerMinute < 1 {
		return nil, fmt.Errorf("PUBLISHER_SENDS_PER_MINUTE must be >= 1, got %d", sendsPerMinute)
	}
	cfg.Publisher.SendsPerMinute = sendsPerMinute

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Telegram.APIID == 0 || c.Telegram.APIHash == "" {
		return fmt.Errorf("TELEGRAM_API_ID and TELEGRAM_API_HASH are required")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	return nil
}

func getEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func parseIntEnv(name string, fallback int) (int, error) {
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return parsed, nil
}
