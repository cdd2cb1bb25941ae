// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 是覆盖配置项的环境变量前缀，例如 IDEAX_AI_API_KEY 覆盖 ai.api_key。
const EnvPrefix = "IDEAX"

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Vector   VectorConfig   `mapstructure:"vector"`
	AI       AIConfig       `mapstructure:"ai"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Security SecurityConfig `mapstructure:"security"`
	Reminder ReminderConfig `mapstructure:"reminder"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr 返回 HTTP 监听地址。
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig 存储关系库连接配置。driver 为 sqlite 时使用 sqlite_path，为 mysql 时使用 dsn。
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// VectorConfig 存储向量索引的配置。
type VectorConfig struct {
	Path          string `mapstructure:"path"`
	Dimensions    int    `mapstructure:"dimensions"`
	LocalFallback bool   `mapstructure:"local_fallback"`
	// 本地哈希向量的相似度分布远低于 provider 向量，单独设置相关推荐阈值
	LocalRelatedThreshold float64 `mapstructure:"local_related_threshold"`
}

// AIConfig 存储 AI provider 的初始设置与调用参数。
// provider 相关字段仅在数据库中没有设置记录时作为初始值。
type AIConfig struct {
	Provider         string             `mapstructure:"provider"`
	APIKey           string             `mapstructure:"api_key"`
	Model            string             `mapstructure:"model"`
	EmbeddingModel   string             `mapstructure:"embedding_model"`
	Endpoint         string             `mapstructure:"endpoint"`
	Timeout          time.Duration      `mapstructure:"timeout"`
	RelatedThreshold float64            `mapstructure:"related_threshold"`
	RelatedLimit     int                `mapstructure:"related_limit"`
	AutoReminder     bool               `mapstructure:"auto_reminder"`
	CacheSize        int64              `mapstructure:"cache_size"`
	Generation       AIGenerationConfig `mapstructure:"generation"`
}

// AIGenerationConfig 配置生成相关参数（可选，零值表示使用 provider 默认值）。
type AIGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// SecurityConfig 存储本地加密相关的配置。
type SecurityConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

// ReminderConfig 存储到期提醒轮询的配置。
type ReminderConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8321")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.sqlite_path", "./data/ideas.db")

	v.SetDefault("vector.path", "./data/vector_db")
	v.SetDefault("vector.dimensions", 1536)
	v.SetDefault("vector.local_fallback", true)
	v.SetDefault("vector.local_related_threshold", 0.3)

	v.SetDefault("ai.provider", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gpt-3.5-turbo")
	v.SetDefault("ai.embedding_model", "text-embedding-ada-002")
	v.SetDefault("ai.endpoint", "")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.related_threshold", 0.75)
	v.SetDefault("ai.related_limit", 5)
	v.SetDefault("ai.auto_reminder", true)
	v.SetDefault("ai.cache_size", 1024)
	v.SetDefault("ai.generation.temperature", 0.0)
	v.SetDefault("ai.generation.top_p", 0.0)
	v.SetDefault("ai.generation.max_tokens", 0)

	v.SetDefault("jwt.enabled", false)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 24*30)

	v.SetDefault("security.secret_key", "ideasystemx-local-secret")

	v.SetDefault("reminder.poll_interval", time.Minute)
}

// Load 读取 configPath 指定的 YAML 文件并解析配置；文件不存在时只使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查配置项的取值范围。
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return errors.New("config: database.sqlite_path is required for sqlite")
		}
	case "mysql":
		if c.Database.DSN == "" {
			return errors.New("config: database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.Vector.Dimensions <= 0 {
		return fmt.Errorf("config: vector.dimensions must be positive, got %d", c.Vector.Dimensions)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("config: ai.timeout must be positive, got %s", c.AI.Timeout)
	}
	if c.Reminder.PollInterval <= 0 {
		return fmt.Errorf("config: reminder.poll_interval must be positive, got %s", c.Reminder.PollInterval)
	}
	return nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
