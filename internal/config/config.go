package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address  string `yaml:"address"`  // MongoDB 服务器地址
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// EtcdConfig 定义了 Etcd 服务发现的连接配置。
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"` // Etcd 节点地址列表
	Username  string   `yaml:"username"`  // 用户名
	Password  string   `yaml:"password"`  // 密码
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`      // Kafka Broker 地址列表
	TasksTopic   string   `yaml:"tasksTopic"`   // 待执行子任务主题
	ResultsTopic string   `yaml:"resultsTopic"` // 子任务结果主题
	EventsTopic  string   `yaml:"eventsTopic"`  // 监控事件主题
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`   // Redis 数据库配置
	MySQL   MySQLConfig `yaml:"mysql"`   // MySQL 数据库配置
	MongoDB MongoConfig `yaml:"mongodb"` // MongoDB 数据库配置
	MinIO   MinIOConfig `yaml:"minio"`   // MinIO 对象存储配置
	Etcd    EtcdConfig  `yaml:"etcd"`    // Etcd 服务发现配置
	Kafka   KafkaConfig `yaml:"kafka"`   // Kafka 消息队列配置
}

// LLMConfig 包含了不同LLM提供商的配置。
type LLMConfig struct {
	Provider string       `yaml:"provider"` // LLM提供商 ("openai" 或 "ollama")
	OpenAI   OpenAIConfig `yaml:"openai"`   // OpenAI 模型配置
	Ollama   OllamaConfig `yaml:"ollama"`   // Ollama 模型配置
}

// OpenAIConfig 包含了 OpenAI 模型的配置。
// APIKey 为空时回退到 OPENAI_API_KEY 环境变量。
type OpenAIConfig struct {
	APIKey string `yaml:"apiKey"` // OpenAI API 密钥
	Model  string `yaml:"model"`  // 模型名称 (例如: "gpt-4o-mini")
}

// OllamaConfig 包含了 Ollama 模型的配置。
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"` // Ollama 服务地址，为空时使用默认地址
	Model   string `yaml:"model"`   // 模型名称
}

// OrchestratorConfig 定义了团队编排器的运行参数。
type OrchestratorConfig struct {
	MaxRounds          int    `yaml:"maxRounds"`          // 单个子任务团队会话的最大轮数
	MaxTaskAttempts    int    `yaml:"maxTaskAttempts"`    // 单个子任务的最大重试次数
	MaxReplans         int    `yaml:"maxReplans"`         // 单个工作流允许的最大重规划次数
	StallTimeout       string `yaml:"stallTimeout"`       // 无进展判定阈值 (例如: "5m")
	StallCheckInterval string `yaml:"stallCheckInterval"` // 停滞巡检周期 (例如: "30s")
}

// StallTimeoutDuration 解析停滞阈值，非法值回退到 5 分钟。
func (c OrchestratorConfig) StallTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.StallTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// StallCheckIntervalDuration 解析巡检周期，非法值回退到 30 秒。
func (c OrchestratorConfig) StallCheckIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.StallCheckInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// WorkspaceConfig 定义了 Docker 工作区管理器的参数。
type WorkspaceConfig struct {
	BaseDir        string `yaml:"baseDir"`        // 工作区根目录
	Image          string `yaml:"image"`          // 执行代码所用的镜像
	WorkVolume     string `yaml:"workVolume"`     // 工作区卷名称
	CacheVolume    string `yaml:"cacheVolume"`    // 包缓存卷名称
	ContainerLabel string `yaml:"containerLabel"` // 容器标签，清理时按此过滤
	CPULimit       string `yaml:"cpuLimit"`       // 例如: "1.0"
	MemoryLimit    string `yaml:"memoryLimit"`    // 例如: "512m"
	ExecTimeout    string `yaml:"execTimeout"`    // 单次执行超时 (例如: "120s")
}

// ExecTimeoutDuration 解析执行超时，非法值回退到 2 分钟。
func (c WorkspaceConfig) ExecTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ExecTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// AuthConfig 用于配置 API 的 JWT 认证。
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // JWT 密钥
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"`     // 每秒生成的令牌数
	Capacity int     `yaml:"capacity"` // 令牌桶容量
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// ServicesConfig 定义了各服务的监听地址。
type ServicesConfig struct {
	APIAddress     string `yaml:"apiAddress"`     // 编排 API 服务 (例如: ":5000")
	MonitorAddress string `yaml:"monitorAddress"` // 监控服务 (例如: ":8501")
	WorkerTTL      int64  `yaml:"workerTTL"`      // worker 在 etcd 中的租约 TTL (秒)
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App          AppInfo            `yaml:"app"`
	Auth         AuthConfig         `yaml:"auth"`
	Logger       LoggerConfig       `yaml:"logger"`
	LLM          LLMConfig          `yaml:"llm"`
	Databases    DatabaseConfigs    `yaml:"databases"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
	Middleware   MiddlewareConfig   `yaml:"middleware"`
	Services     ServicesConfig     `yaml:"services"`
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	// OpenAI 密钥允许从环境变量注入，避免写入配置文件。
	if cfg.LLM.OpenAI.APIKey == "" {
		cfg.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return &cfg, nil
}
