package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fyerfyer/neurocme/internal/cache"
	"github.com/fyerfyer/neurocme/internal/document"
	"github.com/fyerfyer/neurocme/internal/llm"
	"github.com/fyerfyer/neurocme/internal/models"
	"github.com/fyerfyer/neurocme/pkg/storage"
)

// EnvPrefix 环境变量前缀，例如 NEUROCME_SERVER_PORT
const EnvPrefix = "NEUROCME"

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
	Mode string `mapstructure:"mode"` // gin运行模式：debug, release, test
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件，为空时输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件最大尺寸
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
}

// AnalysisConfig 分析默认配置
type AnalysisConfig struct {
	SpecialtyFocus string        `mapstructure:"specialty_focus"`
	DesiredDepth   string        `mapstructure:"desired_depth"`
	OutputType     string        `mapstructure:"output_type"`
	UseLLM         bool          `mapstructure:"use_llm"`
	MaxTopics      int           `mapstructure:"max_topics"`
	MaxChunkChars  int           `mapstructure:"max_chunk_chars"` // 分块最大字符数
	MinChunkChars  int           `mapstructure:"min_chunk_chars"` // 分块最小字符数
	Timeout        time.Duration `mapstructure:"timeout"`         // 单次分析超时
}

// ScoringConfig 评分配置
type ScoringConfig struct {
	WeightsFile string `mapstructure:"weights_file"` // 外部权重文件，为空时使用打包配置
}

// IngestConfig 摄取配置
type IngestConfig struct {
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`    // 网页抓取超时
	UserAgent      string        `mapstructure:"user_agent"`       // 抓取使用的User-Agent
	MaxFetchBytes  int64         `mapstructure:"max_fetch_bytes"`  // 网页响应体上限
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"` // PDF上传大小上限
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`    // 提供商，为空时不做增强
	Model       string        `mapstructure:"model"`       // 模型名称
	APIKey      string        `mapstructure:"api_key"`     // API密钥
	Endpoint    string        `mapstructure:"endpoint"`    // API端点
	Timeout     time.Duration `mapstructure:"timeout"`     // 请求超时
	MaxRetries  int           `mapstructure:"max_retries"` // 最大重试次数
	MaxTokens   int           `mapstructure:"max_tokens"`  // 最大生成token数量
	Temperature float32       `mapstructure:"temperature"` // 采样温度
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type      string `mapstructure:"type"`       // 缓存类型：memory 或 redis
	Address   string `mapstructure:"address"`    // Redis地址
	Password  string `mapstructure:"password"`   // Redis密码
	DB        int    `mapstructure:"db"`         // Redis数据库
	KeyPrefix string `mapstructure:"key_prefix"` // 键前缀
	TTL       int    `mapstructure:"ttl"`        // 结果TTL（秒）
}

// StorageConfig 导出归档配置
type StorageConfig struct {
	Enable    bool   `mapstructure:"enable"`   // 是否启用归档
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// Load 从文件和环境变量加载配置
// 配置文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logrus.WithField("path", configPath).Warn("Config file not found, using defaults")
	} else {
		logrus.WithField("path", v.ConfigFileUsed()).Info("Using config file")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandEnvironmentVariables(&cfg)
	return &cfg, nil
}

// expandEnvironmentVariables 替换 ${VAR} 形式的密钥配置
func expandEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.LLM.APIKey,
		&cfg.Cache.Password,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
	} {
		*field = expandEnv(*field)
	}
}

func expandEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
		return envVal
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	// 分析默认配置
	def := models.DefaultAnalysisOptions()
	chunking := document.DefaultChunkerConfig()
	v.SetDefault("analysis.specialty_focus", string(def.SpecialtyFocus))
	v.SetDefault("analysis.desired_depth", def.DesiredDepth)
	v.SetDefault("analysis.output_type", def.OutputType)
	v.SetDefault("analysis.use_llm", def.UseLLM)
	v.SetDefault("analysis.max_topics", def.MaxTopics)
	v.SetDefault("analysis.max_chunk_chars", chunking.MaxChars)
	v.SetDefault("analysis.min_chunk_chars", chunking.MinChars)
	v.SetDefault("analysis.timeout", "2m")

	// 评分默认配置
	v.SetDefault("scoring.weights_file", "")

	// 摄取默认配置
	fetch := document.DefaultFetchConfig()
	v.SetDefault("ingest.fetch_timeout", fetch.Timeout.String())
	v.SetDefault("ingest.user_agent", fetch.UserAgent)
	v.SetDefault("ingest.max_fetch_bytes", fetch.MaxBytes)
	v.SetDefault("ingest.max_upload_bytes", 25<<20)

	// LLM默认配置
	llmDef := llm.DefaultConfig()
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", llmDef.Model)
	v.SetDefault("llm.api_key", "${TONGYI_API_KEY}")
	v.SetDefault("llm.endpoint", llmDef.BaseURL)
	v.SetDefault("llm.timeout", llmDef.Timeout.String())
	v.SetDefault("llm.max_retries", llmDef.MaxRetries)
	v.SetDefault("llm.max_tokens", llmDef.MaxTokens)
	v.SetDefault("llm.temperature", llmDef.Temperature)

	// 缓存默认配置
	cacheDef := cache.DefaultConfig()
	v.SetDefault("cache.type", cacheDef.Type)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.key_prefix", cacheDef.KeyPrefix)
	v.SetDefault("cache.ttl", int(cacheDef.DefaultTTL.Seconds()))

	// 归档默认配置
	v.SetDefault("storage.enable", false)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./exports")
	v.SetDefault("storage.bucket", "neurocme-exports")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)
}

// Address 服务监听地址
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AnalysisOptions 配置中的默认分析选项
func (c *Config) AnalysisOptions() models.AnalysisOptions {
	return models.AnalysisOptions{
		SpecialtyFocus: models.Specialty(c.Analysis.SpecialtyFocus),
		DesiredDepth:   c.Analysis.DesiredDepth,
		OutputType:     c.Analysis.OutputType,
		UseLLM:         c.Analysis.UseLLM,
		MaxTopics:      c.Analysis.MaxTopics,
	}.WithDefaults()
}

// ChunkerConfig 分块配置
func (c *Config) ChunkerConfig() document.ChunkerConfig {
	return document.ChunkerConfig{
		MaxChars: c.Analysis.MaxChunkChars,
		MinChars: c.Analysis.MinChunkChars,
	}
}

// FetchConfig 网页抓取配置
func (c *Config) FetchConfig() document.FetchConfig {
	return document.FetchConfig{
		Timeout:   c.Ingest.FetchTimeout,
		UserAgent: c.Ingest.UserAgent,
		MaxBytes:  c.Ingest.MaxFetchBytes,
	}
}

// CacheConfig 结果缓存配置
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Type:          c.Cache.Type,
		RedisAddr:     c.Cache.Address,
		RedisPassword: c.Cache.Password,
		RedisDB:       c.Cache.DB,
		KeyPrefix:     c.Cache.KeyPrefix,
		DefaultTTL:    c.ResultTTL(),
	}
}

// ResultTTL 分析结果的保存时间
func (c *Config) ResultTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// StorageConfig 导出归档存储配置
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Type:  c.Storage.Type,
		Local: storage.LocalConfig{Path: c.Storage.Path},
		Minio: storage.MinioConfig{
			Endpoint:  c.Storage.Endpoint,
			AccessKey: c.Storage.AccessKey,
			SecretKey: c.Storage.SecretKey,
			UseSSL:    c.Storage.UseSSL,
			Bucket:    c.Storage.Bucket,
		},
	}
}

// LLMOptions 大模型客户端选项
func (c *Config) LLMOptions() []llm.Option {
	return []llm.Option{
		llm.WithAPIKey(c.LLM.APIKey),
		llm.WithBaseURL(c.LLM.Endpoint),
		llm.WithModel(c.LLM.Model),
		llm.WithTimeout(c.LLM.Timeout),
		llm.WithMaxRetries(c.LLM.MaxRetries),
		llm.WithMaxTokens(c.LLM.MaxTokens),
		llm.WithTemperature(c.LLM.Temperature),
	}
}

// EnrichmentProvider 根据配置创建主题增强提供者
// 未配置提供商或缺少API密钥时返回NullProvider
func (c *Config) EnrichmentProvider() (llm.EnrichmentProvider, error) {
	if c.LLM.Provider == "" || c.LLM.APIKey == "" || strings.HasPrefix(c.LLM.APIKey, "${") {
		return llm.NullProvider{}, nil
	}
	client, err := llm.NewClient(c.LLM.Provider, c.LLMOptions()...)
	if err != nil {
		return nil, err
	}
	return llm.NewClientProvider(client), nil
}
