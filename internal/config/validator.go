package config

import (
	"fmt"
	"regexp"
	"strings"

	"sgbridge/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Settings names end up in URLs, so they are restricted to a safe charset.
var settingsNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func ValidSettingsName(name string) bool {
	return settingsNameRe.MatchString(name)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateSource(cfg.Source); err != nil {
		errors = append(errors, err)
	}

	if err := validateShotgun(cfg.Shotgun); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateRelay(cfg.Relay); err != nil {
		errors = append(errors, err)
	}

	if err := validateDeduplication(cfg.Deduplication); err != nil {
		errors = append(errors, err)
	}

	if err := validateSync(cfg.Sync); err != nil {
		errors = append(errors, err)
	}

	if err := validateAudit(cfg); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		return &ValidationError{
			Field:   "server.tls",
			Message: "cert_file and key_file must be set together",
		}
	}

	return nil
}

func validateSource(cfg SourceConfig) error {
	switch cfg.Type {
	case constants.SourceTypeKafka:
		return validateKafka(cfg.Kafka)
	case constants.SourceTypePoll:
		return validatePoll(cfg.Poll)
	default:
		return &ValidationError{
			Field:   "source.type",
			Message: fmt.Sprintf("unknown source type: %s (supported: kafka, poll)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "source.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("source.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "source.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "source.kafka.topic",
			Message: "Kafka topic is required",
		}
	}

	return validateRetry("source.kafka.retry", cfg.Retry)
}

func validatePoll(cfg PollConfig) error {
	if cfg.Interval <= 0 {
		return &ValidationError{
			Field:   "source.poll.interval",
			Message: "poll interval must be positive",
		}
	}

	if cfg.BatchSize <= 0 {
		return &ValidationError{
			Field:   "source.poll.batch_size",
			Message: "batch size must be positive",
		}
	}

	return validateRetry("source.poll.retry", cfg.Retry)
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   field + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	return nil
}

func validateShotgun(cfg ShotgunConfig) error {
	if cfg.Site == "" && cfg.ScriptName == "" && cfg.ScriptKey == "" {
		return nil
	}

	if cfg.Site == "" {
		return &ValidationError{
			Field:   "shotgun.site",
			Message: "site URL is required when credentials are set",
		}
	}

	if !strings.HasPrefix(cfg.Site, "http://") && !strings.HasPrefix(cfg.Site, "https://") {
		return &ValidationError{
			Field:   "shotgun.site",
			Message: "site must be an http(s) URL",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateRelay(cfg RelayConfig) error {
	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "relay.timeout",
			Message: "timeout must be positive",
		}
	}

	if cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.FailureRatio <= 0 || cfg.CircuitBreaker.FailureRatio > 1 {
			return &ValidationError{
				Field:   "relay.circuit_breaker.failure_ratio",
				Message: "failure_ratio must be in (0, 1]",
			}
		}

		if cfg.CircuitBreaker.MinRequests == 0 {
			return &ValidationError{
				Field:   "relay.circuit_breaker.min_requests",
				Message: "min_requests must be positive",
			}
		}
	}

	return nil
}

func validateDeduplication(cfg DeduplicationConfig) error {
	if cfg.TTLSeconds < 0 {
		return &ValidationError{
			Field:   "deduplication.ttl_seconds",
			Message: "TTL must be non-negative",
		}
	}

	validOnError := map[string]bool{
		"allow": true, "reject": true, "fail": true,
	}
	if cfg.OnRedisError != "" && !validOnError[strings.ToLower(cfg.OnRedisError)] {
		return &ValidationError{
			Field:   "deduplication.on_redis_error",
			Message: fmt.Sprintf("invalid on_redis_error value: %s (valid: allow, reject, fail)", cfg.OnRedisError),
		}
	}

	return nil
}

func validateSync(sync map[string]SyncSettings) error {
	for name, settings := range sync {
		if !ValidSettingsName(name) {
			return &ValidationError{
				Field:   fmt.Sprintf("sync.%s", name),
				Message: "settings name may only contain letters, digits, hyphens and underscores",
			}
		}

		if settings.Syncer == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("sync.%s.syncer", name),
				Message: "syncer is required",
			}
		}
	}

	return nil
}

func validateAudit(cfg *Config) error {
	switch cfg.Audit.Driver {
	case constants.AuditDriverNone:
		return nil
	case constants.AuditDriverPostgres:
		if cfg.Database.Postgres.Host == "" {
			return &ValidationError{
				Field:   "audit.driver",
				Message: "postgres audit driver requires database.postgres configuration",
			}
		}
		return nil
	case constants.AuditDriverMongoDB:
		if cfg.Database.MongoDB.URI == "" {
			return &ValidationError{
				Field:   "audit.driver",
				Message: "mongodb audit driver requires database.mongodb configuration",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "audit.driver",
			Message: fmt.Sprintf("unknown audit driver: %s (supported: postgres, mongodb, none)", cfg.Audit.Driver),
		}
	}
}
