package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`                      // 服务器主机
	Port int    `mapstructure:"port" validate:"min=1,max=65535"` // 服务器端口
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`                              // 本地存储路径
	Bucket    string `mapstructure:"bucket"`                            // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`                          // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// LLMConfig 大语言模型配置（摘要增强，可选）
type LLMConfig struct {
	Enable      bool    `mapstructure:"enable"`      // 是否启用大模型摘要
	Provider    string  `mapstructure:"provider"`    // 提供商：tongyi等
	Model       string  `mapstructure:"model"`       // 模型名称
	APIKey      string  `mapstructure:"api_key"`     // API密钥
	Endpoint    string  `mapstructure:"endpoint"`    // API端点
	MaxTokens   int     `mapstructure:"max_tokens"`  // 最大生成token数量
	Temperature float32 `mapstructure:"temperature"` // 采样温度
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`                             // 是否启用缓存
	Type     string `mapstructure:"type" validate:"oneof=memory redis"` // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`                            // Redis地址
	Password string `mapstructure:"password"`                           // Redis密码
	DB       int    `mapstructure:"db"`                                 // Redis数据库
	TTL      int    `mapstructure:"ttl"`                                // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用异步任务队列
	Type          string `mapstructure:"type"`           // 队列类型：redis
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
	CallbackURL   string `mapstructure:"callback_url"`   // 回调URL
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型: sqlite, mysql, postgres
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// AnalyzerConfig 合同分析配置
type AnalyzerConfig struct {
	SummarySentences int      `mapstructure:"summary_sentences" validate:"min=1"` // 摘要句数
	Categories       []string `mapstructure:"categories"`                         // 条款类别列表，留空使用内置类别
	MaxFileSize      int64    `mapstructure:"max_file_size"`                      // 上传文件大小上限（字节）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别：debug, info, warn, error
	File       string `mapstructure:"file"`        // 日志文件路径，留空输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"` // 保留的历史日志文件数
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml" // 默认在当前目录寻找config.yaml
	}

	// 初始化viper
	v := viper.New()

	// 设置配置文件路径和类型
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，创建一个默认配置文件
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			// 创建默认配置文件
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 设置默认值
	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	// 处理配置中引用的环境变量
	resConfig := processEnvironmentVariables(&config)

	// 校验配置
	if err := validate(resConfig); err != nil {
		return nil, err
	}

	return resConfig, nil
}

// processEnvironmentVariables 展开形如${ENV_VAR}的配置项
func processEnvironmentVariables(cfg *Config) *Config {
	// 处理LLM API密钥
	if strings.HasPrefix(cfg.LLM.APIKey, "${") && strings.HasSuffix(cfg.LLM.APIKey, "}") {
		envVar := cfg.LLM.APIKey[2 : len(cfg.LLM.APIKey)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			cfg.LLM.APIKey = envVal
		}
	}

	// 处理存储密钥
	if strings.HasPrefix(cfg.Storage.SecretKey, "${") && strings.HasSuffix(cfg.Storage.SecretKey, "}") {
		envVar := cfg.Storage.SecretKey[2 : len(cfg.Storage.SecretKey)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			cfg.Storage.SecretKey = envVal
		}
	}

	return cfg
}

// validate 校验配置合法性
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// minio存储必须提供端点和密钥
	if cfg.Storage.Type == "minio" {
		if cfg.Storage.Endpoint == "" || cfg.Storage.AccessKey == "" || cfg.Storage.SecretKey == "" {
			return fmt.Errorf("invalid config: minio storage requires endpoint, access_key and secret_key")
		}
	}

	// 启用大模型摘要时必须提供API密钥
	if cfg.LLM.Enable && cfg.LLM.APIKey == "" {
		return fmt.Errorf("invalid config: llm.api_key is required when llm is enabled")
	}

	return nil
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "contracts")
	v.SetDefault("storage.use_ssl", false)

	// LLM默认配置
	v.SetDefault("llm.enable", false)
	v.SetDefault("llm.provider", "tongyi")
	v.SetDefault("llm.model", "qwen-turbo")
	v.SetDefault("llm.max_tokens", 1000)

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 3600) // 1小时

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60) // 60秒

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/contracts.db")

	// 分析默认配置
	v.SetDefault("analyzer.summary_sentences", 5)
	v.SetDefault("analyzer.max_file_size", 32<<20) // 32MB

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
}
