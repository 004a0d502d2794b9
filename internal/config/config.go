// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// 运行环境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// 存储驱动
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

const (
	DefaultGatewayURL  = "https://ai.gateway.lovable.dev/v1"
	DefaultScriptModel = "google/gemini-2.5-flash"
	DefaultImageModel  = "google/gemini-2.5-flash-image-preview"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// Config 启动时从环境变量读取的配置
type Config struct {
	Port          string
	Env           string
	DataDir       string
	LogDir        string
	LogLevel      string
	StorageDriver string
	DatabaseURL   string

	AIGatewayURL    string
	AIGatewayAPIKey string
	ScriptModel     string
	ImageModel      string
	AITimeout       time.Duration

	AuthSecretKey  string
	TokenTTL       time.Duration
	AllowedOrigins []string
	PublicBaseURL  string

	ImageTimeout          time.Duration
	StoryboardConcurrency int
	RenderWorkers         int
}

// DebugMode 非生产环境
func (c *Config) DebugMode() bool {
	return c.Env != EnvProduction
}

// IsProduction 生产环境
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate 启动前校验必须项
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("APP_ENV 必须是 development/production/test，当前为 %q", c.Env)
	}
	if c.IsProduction() && c.AuthSecretKey == "" {
		return fmt.Errorf("生产环境必须设置 AUTH_SECRET_KEY")
	}
	switch c.StorageDriver {
	case StorageFile:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORAGE_DRIVER=postgres 时必须设置 DATABASE_URL")
		}
	default:
		return fmt.Errorf("未知的存储驱动 %q", c.StorageDriver)
	}
	return nil
}

// Load 从 .env 和环境变量加载配置
func Load() (*Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		DataDir:       getEnvPath("DATA_DIR", "data"),
		LogDir:        getEnv("LOG_DIR", "logs"),
		LogLevel:      getEnv("LOG_LEVEL", ""),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageFile)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		AIGatewayURL:    getEnv("AI_GATEWAY_URL", DefaultGatewayURL),
		AIGatewayAPIKey: getEnv("AI_GATEWAY_API_KEY", getEnv("LOVABLE_API_KEY", "")),
		ScriptModel:     getEnv("SCRIPT_MODEL", DefaultScriptModel),
		ImageModel:      getEnv("IMAGE_MODEL", DefaultImageModel),
		AITimeout:       getEnvDuration("AI_TIMEOUT", 90*time.Second),

		AuthSecretKey:  getEnv("AUTH_SECRET_KEY", ""),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 7*24*time.Hour),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:8080", "http://localhost:3000"}),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		ImageTimeout:          getEnvDuration("IMAGE_TIMEOUT", 10*time.Second),
		StoryboardConcurrency: getEnvInt("STORYBOARD_CONCURRENCY", 3),
		RenderWorkers:         getEnvInt("RENDER_WORKERS", 2),
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
		if cfg.IsProduction() {
			cfg.LogLevel = "info"
		}
	}

	if cfg.AIGatewayAPIKey == "" {
		// 只记录警告，AI 相关接口会返回配置错误
		log.Println("警告: 未设置 AI_GATEWAY_API_KEY，脚本和分镜生成将不可用")
	}

	return cfg, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取目录类环境变量并确保目录存在
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}
	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getEnvDuration 支持 "10s" 或纯秒数
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RateLimitOverride config.json 中的限流覆盖
type RateLimitOverride struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

// AppConfig 运行期配置，可持久化到数据目录下的 config.json
type AppConfig struct {
	Port          string `json:"port"`
	Env           string `json:"env"`
	DataDir       string `json:"data_dir"`
	StorageDriver string `json:"storage_driver"`
	DebugMode     bool   `json:"debug_mode"`

	AIGatewayURL       string `json:"ai_gateway_url"`
	AIGatewayAPIKey    string `json:"-"`
	SealedGatewayKey   string `json:"ai_gateway_api_key_sealed,omitempty"`
	ScriptModel        string `json:"script_model"`
	ImageModel         string `json:"image_model"`
	PublicBaseURL      string `json:"public_base_url"`
	StoryboardParallel int    `json:"storyboard_concurrency"`

	RateLimits map[string]RateLimitOverride `json:"rate_limits,omitempty"`

	secret string
}

// InitConfig 以环境配置为基础，合并 config.json 中保存的运行期设置
func InitConfig(base *Config) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	configFile = filepath.Join(base.DataDir, "config.json")
	cfg := &AppConfig{
		Port:               base.Port,
		Env:                base.Env,
		DataDir:            base.DataDir,
		StorageDriver:      base.StorageDriver,
		DebugMode:          base.DebugMode(),
		AIGatewayURL:       base.AIGatewayURL,
		AIGatewayAPIKey:    base.AIGatewayAPIKey,
		ScriptModel:        base.ScriptModel,
		ImageModel:         base.ImageModel,
		PublicBaseURL:      base.PublicBaseURL,
		StoryboardParallel: base.StoryboardConcurrency,
		secret:             base.AuthSecretKey,
	}

	if data, err := os.ReadFile(configFile); err == nil {
		var saved AppConfig
		if err := json.Unmarshal(data, &saved); err != nil {
			log.Printf("警告: 解析 %s 失败，忽略: %v", configFile, err)
		} else {
			mergeSaved(cfg, &saved)
		}
	}

	currentConfig = cfg
	return saveLocked()
}

// mergeSaved 文件中的模型与网关设置覆盖默认值，环境变量中的密钥优先
func mergeSaved(cfg, saved *AppConfig) {
	if saved.AIGatewayURL != "" {
		cfg.AIGatewayURL = saved.AIGatewayURL
	}
	if saved.ScriptModel != "" {
		cfg.ScriptModel = saved.ScriptModel
	}
	if saved.ImageModel != "" {
		cfg.ImageModel = saved.ImageModel
	}
	if saved.StoryboardParallel > 0 {
		cfg.StoryboardParallel = saved.StoryboardParallel
	}
	if len(saved.RateLimits) > 0 {
		cfg.RateLimits = saved.RateLimits
	}
	if cfg.AIGatewayAPIKey == "" && saved.SealedGatewayKey != "" && cfg.secret != "" {
		if key, err := utils.OpenString(saved.SealedGatewayKey, cfg.secret); err == nil {
			cfg.AIGatewayAPIKey = key
			cfg.SealedGatewayKey = saved.SealedGatewayKey
		}
	}
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		base, _ := Load()
		return &AppConfig{
			Port:               base.Port,
			Env:                base.Env,
			DataDir:            base.DataDir,
			StorageDriver:      base.StorageDriver,
			DebugMode:          base.DebugMode(),
			AIGatewayURL:       base.AIGatewayURL,
			AIGatewayAPIKey:    base.AIGatewayAPIKey,
			ScriptModel:        base.ScriptModel,
			ImageModel:         base.ImageModel,
			PublicBaseURL:      base.PublicBaseURL,
			StoryboardParallel: base.StoryboardConcurrency,
		}
	}

	configCopy := *currentConfig
	if currentConfig.RateLimits != nil {
		configCopy.RateLimits = make(map[string]RateLimitOverride, len(currentConfig.RateLimits))
		for k, v := range currentConfig.RateLimits {
			configCopy.RateLimits[k] = v
		}
	}
	return &configCopy
}

// UpdateAIConfig 更新 AI 网关设置，密钥加密后保存
func UpdateAIConfig(gatewayURL, apiKey, scriptModel, imageModel string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}
	if gatewayURL != "" {
		currentConfig.AIGatewayURL = gatewayURL
	}
	if scriptModel != "" {
		currentConfig.ScriptModel = scriptModel
	}
	if imageModel != "" {
		currentConfig.ImageModel = imageModel
	}
	if apiKey != "" {
		currentConfig.AIGatewayAPIKey = apiKey
		if currentConfig.secret != "" {
			sealed, err := utils.SealString(apiKey, currentConfig.secret)
			if err != nil {
				return fmt.Errorf("加密网关密钥失败: %w", err)
			}
			currentConfig.SealedGatewayKey = sealed
		}
	}
	return saveLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveLocked()
}

func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	tmp := configFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, configFile)
}
