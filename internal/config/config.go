package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	VectorIndex VectorIndexConfig
	Rewrite     RewriteConfig
	Ingestion   IngestionConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	JWT         JWTConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

// VectorIndexConfig 向量索引服务连接配置
type VectorIndexConfig struct {
	BaseURL    string
	Timeout    int // 秒
	TopK       int
	Collection string // 上传文件的默认集合
}

// RewriteConfig 查询改写配置
type RewriteConfig struct {
	Enabled       bool
	Model         string
	APIKey        string
	BaseURL       string // 兼容OpenAI协议的网关地址，空则用官方默认
	HistoryTurns  int    // 保留的最近历史轮数
	MaxFilenames  int    // 提示词中列出的已知文件名上限
	CacheTTL      int    // 改写结果缓存TTL（秒），0禁用
	TimeoutSecond int
}

// IngestionConfig 摄取状态轮询配置
type IngestionConfig struct {
	PollIntervalMS   int // 批量轮询间隔
	SinglePollMS     int // 单文件轮询间隔
	SingleMaxAttempt int // 单文件轮询最大次数
}

type RedisConfig struct {
	Host string
	Port string
	DB   int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type JWTConfig struct {
	Secret string
}

type MetricsConfig struct {
	Enabled bool
}

var AppConfig *Config

// LoadConfig 加载配置：默认值 → config.yaml（可选）→ 环境变量
func LoadConfig() error {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.env", "development")

	// 向量索引服务默认值
	viper.SetDefault("vector_index.base_url", "http://localhost:8900")
	viper.SetDefault("vector_index.timeout", 30)
	viper.SetDefault("vector_index.top_k", 5)
	viper.SetDefault("vector_index.collection", "chat-files")

	// 查询改写默认值
	viper.SetDefault("rewrite.enabled", true)
	viper.SetDefault("rewrite.model", "gpt-4o-mini")
	viper.SetDefault("rewrite.api_key", "")
	viper.SetDefault("rewrite.base_url", "")
	viper.SetDefault("rewrite.history_turns", 3)
	viper.SetDefault("rewrite.max_filenames", 20)
	viper.SetDefault("rewrite.cache_ttl", 600)
	viper.SetDefault("rewrite.timeout_second", 15)

	// 摄取轮询默认值
	viper.SetDefault("ingestion.poll_interval_ms", 1000)
	viper.SetDefault("ingestion.single_poll_ms", 2000)
	viper.SetDefault("ingestion.single_max_attempt", 30)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "retrieval-audit")
	viper.SetDefault("kafka.enabled", false)

	viper.SetDefault("jwt.secret", "change-me-in-production")

	viper.SetDefault("metrics.enabled", true)

	// 环境变量覆盖，如 CHATRAG_VECTOR_INDEX_BASE_URL
	viper.SetEnvPrefix("CHATRAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 常用项的裸环境变量兼容
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		viper.Set("rewrite.api_key", key)
	}

	// 可选配置文件
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// buildConfig 从viper当前状态构造Config
func buildConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		VectorIndex: VectorIndexConfig{
			BaseURL:    viper.GetString("vector_index.base_url"),
			Timeout:    viper.GetInt("vector_index.timeout"),
			TopK:       viper.GetInt("vector_index.top_k"),
			Collection: viper.GetString("vector_index.collection"),
		},
		Rewrite: RewriteConfig{
			Enabled:       viper.GetBool("rewrite.enabled"),
			Model:         viper.GetString("rewrite.model"),
			APIKey:        viper.GetString("rewrite.api_key"),
			BaseURL:       viper.GetString("rewrite.base_url"),
			HistoryTurns:  viper.GetInt("rewrite.history_turns"),
			MaxFilenames:  viper.GetInt("rewrite.max_filenames"),
			CacheTTL:      viper.GetInt("rewrite.cache_ttl"),
			TimeoutSecond: viper.GetInt("rewrite.timeout_second"),
		},
		Ingestion: IngestionConfig{
			PollIntervalMS:   viper.GetInt("ingestion.poll_interval_ms"),
			SinglePollMS:     viper.GetInt("ingestion.single_poll_ms"),
			SingleMaxAttempt: viper.GetInt("ingestion.single_max_attempt"),
		},
		Redis: RedisConfig{
			Host: viper.GetString("redis.host"),
			Port: viper.GetString("redis.port"),
			DB:   viper.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetStringSlice("kafka.brokers"),
			Topic:   viper.GetString("kafka.topic"),
			Enabled: viper.GetBool("kafka.enabled"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("metrics.enabled"),
		},
	}

	if cfg.VectorIndex.BaseURL == "" {
		return nil, fmt.Errorf("vector_index.base_url must not be empty")
	}
	return cfg, nil
}

// GetAppConfig 获取全局配置
func GetAppConfig() *Config {
	return AppConfig
}

// PollInterval 批量轮询间隔
func (c *IngestionConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// SinglePollInterval 单文件轮询间隔
func (c *IngestionConfig) SinglePollInterval() time.Duration {
	return time.Duration(c.SinglePollMS) * time.Millisecond
}

// WatchConfig 监听配置文件变更并热加载
// 部分变更（如端口）需要重启才生效，这里只刷新AppConfig
func WatchConfig(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := buildConfig()
		if err != nil {
			return
		}
		AppConfig = cfg
		if onChange != nil {
			onChange(cfg)
		}
	})
	viper.WatchConfig()
}
