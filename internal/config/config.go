package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

const (
	defaultAPIURL   = "http://localhost:8000"
	defaultChatPath = "/api/v1/chat"
	defaultTimeout  = 30
)

// Config 聚合客户端的配置项。
type Config struct {
	API   APIConfig
	Store StoreConfig
	Log   LogConfig
}

// Load 从环境变量加载客户端配置。
func Load() (*Config, error) {
	api, err := loadAPIConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{API: api, Store: store, Log: loadLogConfig()}, nil
}

// APIConfig 描述后端 HTTP API。
type APIConfig struct {
	BaseURL string
	// ChatPath differs between backend versions (/api/v1/chat, /api/v1/chat/message).
	ChatPath string
	Timeout  time.Duration
}

func loadAPIConfig() (APIConfig, error) {
	base := strings.TrimRight(getEnvOrDefault("ZCHAT_API_URL", defaultAPIURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return APIConfig{}, fmt.Errorf("invalid ZCHAT_API_URL value: %q", base)
	}

	chatPath := getEnvOrDefault("ZCHAT_CHAT_PATH", defaultChatPath)
	if !strings.HasPrefix(chatPath, "/") {
		chatPath = "/" + chatPath
	}

	seconds := defaultTimeout
	if override, err := parseOptionalIntEnv("ZCHAT_REQUEST_TIMEOUT"); err != nil {
		return APIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return APIConfig{}, fmt.Errorf("invalid ZCHAT_REQUEST_TIMEOUT value %d: must be positive", *override)
		}
		seconds = *override
	}

	return APIConfig{
		BaseURL:  base,
		ChatPath: chatPath,
		Timeout:  time.Duration(seconds) * time.Second,
	}, nil
}

// Store drivers.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// StoreConfig 描述本地会话持久化。
type StoreConfig struct {
	Driver string
	Path   string
}

func loadStoreConfig() (StoreConfig, error) {
	return StoreFor(getEnvOrDefault("ZCHAT_STORE", StoreFile))
}

// StoreFor resolves the store config for driver. ZCHAT_STORE_PATH still
// overrides the default location.
func StoreFor(driver string) (StoreConfig, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	var defaultName string
	switch driver {
	case StoreFile:
		defaultName = "session.json"
	case StoreSQLite:
		defaultName = "session.db"
	case StoreMemory:
		return StoreConfig{Driver: driver}, nil
	default:
		return StoreConfig{}, fmt.Errorf("invalid ZCHAT_STORE value: %q", driver)
	}

	path := strings.TrimSpace(os.Getenv("ZCHAT_STORE_PATH"))
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return StoreConfig{}, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".zchat", defaultName)
	}

	return StoreConfig{Driver: driver, Path: path}, nil
}

// LogConfig 日志配置，File 为空时只输出到 stderr。
type LogConfig struct {
	Level string
	File  string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level: strings.ToLower(getEnvOrDefault("ZCHAT_LOG_LEVEL", "warn")),
		File:  strings.TrimSpace(os.Getenv("ZCHAT_LOG_FILE")),
	}
}

// ServerConfig 描述开发后端 chatd 的配置。
type ServerConfig struct {
	Addr      string
	JWTSecret string
	TokenTTL  time.Duration
	AI        AIConfig
	Log       LogConfig
}

// LoadServer 从环境变量加载 chatd 配置。
func LoadServer() (*ServerConfig, error) {
	addr, err := loadServerAddr()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	ttlMinutes := 60
	if override, err := parseOptionalIntEnv("CHATD_TOKEN_TTL"); err != nil {
		return nil, err
	} else if override != nil && *override > 0 {
		ttlMinutes = *override
	}

	return &ServerConfig{
		Addr:      addr,
		JWTSecret: getEnvOrDefault("CHATD_JWT_SECRET", "chatd-dev-secret"),
		TokenTTL:  time.Duration(ttlMinutes) * time.Minute,
		AI:        ai,
		Log: LogConfig{
			Level: strings.ToLower(getEnvOrDefault("CHATD_LOG_LEVEL", "info")),
			File:  strings.TrimSpace(os.Getenv("CHATD_LOG_FILE")),
		},
	}, nil
}

// loadServerAddr 解析服务器监听地址。
func loadServerAddr() (string, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
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
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
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
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
