package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/agora/backend/internal/orchestration"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server        ServerConfig
	AI            AIConfig
	Orchestration OrchestrationConfig
	Store         StoreConfig
	Log           LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	orch, err := loadOrchestrationConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:        server,
		AI:            ai,
		Orchestration: orch,
		Store:         store,
		Log:           loadLogConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
	// AskRPS 为 0 表示不限流
	AskRPS   float64
	AskBurst int
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr(os.Getenv("PORT"))
	if err != nil {
		return ServerConfig{}, err
	}

	rps, err := parseOptionalFloatEnv("AGORA_ASK_RPS")
	if err != nil {
		return ServerConfig{}, err
	}
	burst, err := parseOptionalIntEnv("AGORA_ASK_BURST")
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{Addr: addr, AskRPS: 1, AskBurst: 5}
	if rps != nil {
		if *rps < 0 {
			return ServerConfig{}, fmt.Errorf("invalid AGORA_ASK_RPS value %v: must not be negative", *rps)
		}
		cfg.AskRPS = *rps
	}
	if burst != nil {
		if *burst < 1 {
			return ServerConfig{}, fmt.Errorf("invalid AGORA_ASK_BURST value %d: must be positive", *burst)
		}
		cfg.AskBurst = *burst
	}
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	return cfg, nil
}

func parseAddr(raw string) (string, error) {
	port := strings.TrimSpace(raw)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
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

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
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

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("Model")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
	}, nil
}

// Manager kinds accepted by AGORA_MANAGER.
const (
	ManagerModel      = "model"
	ManagerRoundRobin = "round_robin"
)

// OrchestrationConfig 描述群聊编排的限制与策略。
type OrchestrationConfig struct {
	MaxInvocations    int
	MaxMessageLength  int
	DecisionMaxTokens int
	FilterMaxTokens   int
	Manager           string
	// RosterFile 为空时使用内置的参与者名单
	RosterFile string
}

// Runtime converts the settings into runtime limits. streaming follows the model config.
func (c OrchestrationConfig) Runtime(streaming bool) orchestration.Config {
	return orchestration.Config{
		MaxInvocations:    c.MaxInvocations,
		MaxQuestionLength: c.MaxMessageLength,
		DecisionMaxTokens: c.DecisionMaxTokens,
		FilterMaxTokens:   c.FilterMaxTokens,
		Streaming:         streaming,
	}
}

func loadOrchestrationConfig() (OrchestrationConfig, error) {
	cfg := OrchestrationConfig{
		MaxInvocations:    orchestration.DefaultMaxInvocations,
		MaxMessageLength:  orchestration.DefaultMaxQuestionLength,
		DecisionMaxTokens: orchestration.DefaultDecisionMaxTokens,
		FilterMaxTokens:   200,
		Manager:           strings.ToLower(getEnvOrDefault("AGORA_MANAGER", ManagerModel)),
		RosterFile:        strings.TrimSpace(os.Getenv("AGORA_ROSTER_FILE")),
	}

	positive := []struct {
		key    string
		target *int
	}{
		{"AGORA_MAX_INVOCATIONS", &cfg.MaxInvocations},
		{"AGORA_MAX_MESSAGE_LENGTH", &cfg.MaxMessageLength},
		{"AGORA_DECISION_MAX_TOKENS", &cfg.DecisionMaxTokens},
	}
	for _, item := range positive {
		val, err := parseOptionalIntEnv(item.key)
		if err != nil {
			return OrchestrationConfig{}, err
		}
		if val == nil {
			continue
		}
		if *val < 1 {
			return OrchestrationConfig{}, fmt.Errorf("invalid %s value %d: must be positive", item.key, *val)
		}
		*item.target = *val
	}

	filterTokens, err := parseOptionalIntEnv("AGORA_FILTER_MAX_TOKENS")
	if err != nil {
		return OrchestrationConfig{}, err
	}
	if filterTokens != nil {
		// 0 表示交给模型默认值
		if *filterTokens < 0 {
			return OrchestrationConfig{}, fmt.Errorf("invalid AGORA_FILTER_MAX_TOKENS value %d: must not be negative", *filterTokens)
		}
		cfg.FilterMaxTokens = *filterTokens
	}

	switch cfg.Manager {
	case ManagerModel, ManagerRoundRobin:
	default:
		return OrchestrationConfig{}, fmt.Errorf("invalid AGORA_MANAGER value %q: want %q or %q", cfg.Manager, ManagerModel, ManagerRoundRobin)
	}
	return cfg, nil
}

// Store backends accepted by STORE_BACKEND.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// StoreConfig 描述会话存储配置。
type StoreConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

func loadStoreConfig() (StoreConfig, error) {
	cfg := StoreConfig{
		Backend:       strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreMemory)),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:     getEnvOrDefault("REDIS_KEY_PREFIX", "agora:"),
	}

	db, err := parseOptionalIntEnv("REDIS_DB")
	if err != nil {
		return StoreConfig{}, err
	}
	if db != nil {
		cfg.RedisDB = *db
	}

	switch cfg.Backend {
	case StoreMemory, StoreRedis:
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q: want %q or %q", cfg.Backend, StoreMemory, StoreRedis)
	}
	return cfg, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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
