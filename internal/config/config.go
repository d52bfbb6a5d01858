package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/pkg/errors"
)

// Config 聚合服务启动时读取的全部配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Telegram TelegramConfig
	History  HistoryConfig
	Log      LogConfig
	Bot      BotProfile
}

// Load 从环境变量加载配置。.env 文件需由调用方提前加载。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	telegram, err := loadTelegramConfig()
	if err != nil {
		return nil, err
	}

	history, err := loadHistoryConfig()
	if err != nil {
		return nil, err
	}

	bot := DefaultBotProfile()
	if path := strings.TrimSpace(os.Getenv("BOT_PROFILE_FILE")); path != "" {
		bot, err = LoadBotProfile(path)
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Telegram: telegram,
		History:  history,
		Log:      loadLogConfig(),
		Bot:      bot,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, errors.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

const (
	DefaultTemperature = float32(0.7)
	DefaultMaxTokens   = 500
)

// AIConfig 描述大模型及其固定的采样参数。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Enabled 表示是否提供了模型与必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建 Ark 模型实例。关闭 SDK 自带的重试，失败直接返回给调用方。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: set ARK_MODEL and ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens
	timeout := c.Timeout
	retries := 0

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Timeout:     &timeout,
		RetryTimes:  &retries,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature := DefaultTemperature
	if override, err := parseOptionalFloatEnv("ARK_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 || *override > 2 {
			return AIConfig{}, errors.Errorf("invalid ARK_TEMPERATURE value %v: must be within [0, 2]", *override)
		}
		temperature = float32(*override)
	}

	maxTokens := DefaultMaxTokens
	if override, err := parseOptionalIntEnv("ARK_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return AIConfig{}, errors.Errorf("invalid ARK_MAX_TOKENS value %d: must be positive", *override)
		}
		maxTokens = *override
	}

	timeout, err := parseDurationEnv("ARK_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

// TelegramConfig 描述 Bot API 地址与 webhook 注册配置。
type TelegramConfig struct {
	BotToken       string
	APIBase        string
	WebhookBaseURL string
	WebhookSecret  string
	RequestTimeout time.Duration
}

// BotAPIURL 返回机器人的 API 根地址，例如 https://api.telegram.org/bot<token>。
func (c TelegramConfig) BotAPIURL() string {
	return strings.TrimRight(c.APIBase, "/") + "/bot" + c.BotToken
}

// WebhookURL 返回 Telegram 推送更新的地址，未配置公网地址时为空。
func (c TelegramConfig) WebhookURL() string {
	if c.WebhookBaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.WebhookBaseURL, "/") + "/webhook"
}

// Validate 校验调用 Telegram 所必需的配置。
func (c TelegramConfig) Validate() error {
	if c.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func loadTelegramConfig() (TelegramConfig, error) {
	timeout, err := parseDurationEnv("TELEGRAM_TIMEOUT", 15*time.Second)
	if err != nil {
		return TelegramConfig{}, err
	}

	return TelegramConfig{
		BotToken:       strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		APIBase:        getEnvOrDefault("TELEGRAM_API_BASE", "https://api.telegram.org"),
		WebhookBaseURL: strings.TrimSpace(os.Getenv("WEBHOOK_BASE_URL")),
		WebhookSecret:  strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		RequestTimeout: timeout,
	}, nil
}

// HistoryConfig 描述每个会话的滑动窗口大小。
type HistoryConfig struct {
	TrimThreshold int
	Window        int
}

func loadHistoryConfig() (HistoryConfig, error) {
	cfg := HistoryConfig{TrimThreshold: 12, Window: 10}

	if override, err := parseOptionalIntEnv("HISTORY_TRIM_THRESHOLD"); err != nil {
		return HistoryConfig{}, err
	} else if override != nil {
		cfg.TrimThreshold = *override
	}

	if override, err := parseOptionalIntEnv("HISTORY_WINDOW"); err != nil {
		return HistoryConfig{}, err
	} else if override != nil {
		cfg.Window = *override
	}

	if cfg.Window < 1 || cfg.Window >= cfg.TrimThreshold {
		return HistoryConfig{}, errors.Errorf("invalid history window %d for threshold %d", cfg.Window, cfg.TrimThreshold)
	}
	return cfg, nil
}

// LogConfig 描述 zerolog 日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s value %q", key, value)
	}
	return &val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s value %q", key, raw)
	}
	if val <= 0 {
		return 0, errors.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
