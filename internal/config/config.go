package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server        ServerConfig
	Metrics       MetricsConfig
	Database      DatabaseConfig
	Shotgun       ShotgunConfig
	Jira          JiraConfig
	Source        SourceConfig
	Routing       RoutingConfig
	Relay         RelayConfig
	Deduplication DeduplicationConfig
	Sync          map[string]SyncSettings
	Audit         AuditConfig
	Bridge        BridgeConfig
	Logging       LoggingConfig
	Tracing       TracingConfig
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig holds the cert/key pair for serving HTTPS. Both files must be
// set together; leaving both empty serves plain HTTP.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// ShotgunConfig points at the production tracking site whose event stream
// and project registry drive the bridge. Script credentials authenticate
// both the event poller and project lookups.
type ShotgunConfig struct {
	Site           string        `mapstructure:"site"`
	ScriptName     string        `mapstructure:"script_name"`
	ScriptKey      string        `mapstructure:"script_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type JiraConfig struct {
	Site   string `mapstructure:"site"`
	User   string `mapstructure:"user"`
	Secret string `mapstructure:"secret"`
}

type SourceConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	Poll  PollConfig  `mapstructure:"poll"`
}

type KafkaConfig struct {
	Brokers []string    `mapstructure:"brokers"`
	GroupID string      `mapstructure:"group_id"`
	Topic   string      `mapstructure:"topic"`
	Retry   RetryConfig `mapstructure:"retry"`
}

type PollConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	Retry     RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type RoutingConfig struct {
	// CacheTTLSeconds bounds how long resolved routes stay cached; 0 keeps
	// them until an invalidation event arrives.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	// CacheLookupFailures controls whether a failed registry lookup is
	// cached as "no route" or retried on the next event for that project.
	CacheLookupFailures bool `mapstructure:"cache_lookup_failures"`
}

type RelayConfig struct {
	Timeout        time.Duration        `mapstructure:"timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type DeduplicationConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TTLSeconds   int    `mapstructure:"ttl_seconds"`
	OnRedisError string `mapstructure:"on_redis_error"`
}

// SyncSettings configures one named syncer instance. The settings name is
// part of the bridge URL (/sg2jira/<name>/...).
type SyncSettings struct {
	Syncer           string                 `mapstructure:"syncer"`
	AcceptExpression string                 `mapstructure:"accept_expression"`
	EntityTypes      []string               `mapstructure:"entity_types"`
	Settings         map[string]interface{} `mapstructure:"settings"`
}

type AuditConfig struct {
	Driver string `mapstructure:"driver"`
}

type BridgeConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
