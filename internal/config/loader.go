package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"sgbridge/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	// Credentials usually live in a .env next to the config, same as the
	// settings files the bridge grew up with. Missing file is fine.
	_ = godotenv.Load()

	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("shotgun.site", "SGJIRA_SG_SITE", "SHOTGUN_SITE")
	viper.BindEnv("shotgun.script_name", "SGDAEMON_SGJIRA_NAME", "SHOTGUN_SCRIPT_NAME")
	viper.BindEnv("shotgun.script_key", "SGDAEMON_SGJIRA_KEY", "SHOTGUN_SCRIPT_KEY")

	viper.BindEnv("jira.site", "SGJIRA_JIRA_SITE")
	viper.BindEnv("jira.user", "SGJIRA_JIRA_USER")
	viper.BindEnv("jira.secret", "SGJIRA_JIRA_USER_SECRET")

	viper.BindEnv("source.kafka.brokers", "SOURCE_KAFKA_BROKERS")
	viper.BindEnv("source.kafka.group_id", "SOURCE_KAFKA_GROUP_ID")
	viper.BindEnv("source.kafka.topic", "SOURCE_KAFKA_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.tls.cert_file", "SERVER_TLS_CERT_FILE")
	viper.BindEnv("server.tls.key_file", "SERVER_TLS_KEY_FILE")

	viper.BindEnv("metrics.port", "METRICS_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("SOURCE_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Source.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = constants.DefaultBridgeHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = constants.DefaultBridgePort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = constants.DefaultMetricsPort
	}
	if cfg.Shotgun.RequestTimeout == 0 {
		cfg.Shotgun.RequestTimeout = constants.DefaultHTTPTimeout
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = constants.SourceTypePoll
	}
	if cfg.Source.Kafka.Topic == "" {
		cfg.Source.Kafka.Topic = constants.DefaultKafkaTopic
	}
	if cfg.Source.Kafka.GroupID == "" {
		cfg.Source.Kafka.GroupID = constants.DefaultKafkaGroup
	}
	if cfg.Source.Poll.Interval == 0 {
		cfg.Source.Poll.Interval = constants.DefaultPollInterval
	}
	if cfg.Source.Poll.BatchSize == 0 {
		cfg.Source.Poll.BatchSize = constants.DefaultPollBatch
	}
	if cfg.Relay.Timeout == 0 {
		cfg.Relay.Timeout = constants.DefaultHTTPTimeout
	}
	if cfg.Deduplication.TTLSeconds == 0 {
		cfg.Deduplication.TTLSeconds = constants.DefaultDedupTTLSeconds
	}
	if cfg.Deduplication.OnRedisError == "" {
		cfg.Deduplication.OnRedisError = constants.FallbackAllow
	}
	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = constants.AuditDriverNone
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
