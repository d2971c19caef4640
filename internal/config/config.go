package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	aiopenai "github.com/zhouzirui/persona-lab/backend/internal/service/ai/openai"
)

const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// defaultModels 是未设置 AI_MODELS 时可选的模型列表。
var defaultModels = []string{
	"gpt-5",
	"gpt-5-mini",
	"gpt-5-nano",
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4o-nano",
}

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Persona PersonaConfig
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

	personaCfg, err := loadPersonaConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Persona: personaCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	OpenBrowser bool
	PublicURL   string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	openBrowser, err := parseBoolEnv("OPEN_BROWSER", false)
	if err != nil {
		return ServerConfig{}, err
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	publicURL := getEnvOrDefault("PUBLIC_URL", "")
	if publicURL == "" {
		host := addr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		publicURL = "http://" + host
	}

	return ServerConfig{Addr: addr, OpenBrowser: openBrowser, PublicURL: publicURL}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider       string
	APIKey         string
	AccessKey      string
	SecretKey      string
	BaseURL        string
	Region         string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	DefaultModel   string
	Models         []string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	RequestTimeout time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.DefaultModel == "" {
		return false
	}
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	default:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失", c.Provider)
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

	switch c.Provider {
	case ProviderOpenAI:
		return aiopenai.NewChatModel(ctx, aiopenai.Config{
			APIKey:      c.OpenAIAPIKey,
			BaseURL:     c.OpenAIBaseURL,
			Model:       c.DefaultModel,
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
		})
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.DefaultModel,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q", c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI))
	if provider != ProviderArk && provider != ProviderOpenAI {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("AI_REQUEST_TIMEOUT", 2*time.Minute)
	if err != nil {
		return AIConfig{}, err
	}

	models := parseListEnv("AI_MODELS")
	if len(models) == 0 {
		models = append([]string(nil), defaultModels...)
	}

	defaultModel := getEnvOrDefault("AI_MODEL", "")
	if defaultModel == "" {
		if provider == ProviderOpenAI {
			defaultModel = "gpt-4o-mini"
		} else {
			defaultModel = models[0]
		}
	}
	if !contains(models, defaultModel) {
		models = append([]string{defaultModel}, models...)
	}

	return AIConfig{
		Provider:       provider,
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		OpenAIAPIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:  getEnvOrDefault("OPENAI_BASE_URL", ""),
		DefaultModel:   defaultModel,
		Models:         models,
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		RequestTimeout: timeout,
	}, nil
}

// PersonaConfig 描述 persona 存储与示例数据配置。
type PersonaConfig struct {
	Dir          string
	ExamplesPath string
	ExampleCount int
}

func loadPersonaConfig() (PersonaConfig, error) {
	count := 3
	if override, err := parseOptionalIntEnv("PERSONA_EXAMPLE_COUNT"); err != nil {
		return PersonaConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return PersonaConfig{}, fmt.Errorf("invalid PERSONA_EXAMPLE_COUNT value %d: must be at least 1", *override)
		}
		count = *override
	}

	return PersonaConfig{
		Dir:          getEnvOrDefault("PERSONA_DIR", "personas"),
		ExamplesPath: getEnvOrDefault("PERSONA_EXAMPLES_PATH", ""),
		ExampleCount: count,
	}, nil
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

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

// parseListEnv 解析逗号分隔的列表，忽略空项。
func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
