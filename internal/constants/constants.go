package constants

import "time"

const (
	ServiceNameTrigger = "trigger-service"
	ServiceNameBridge  = "bridge-service"
)

const (
	KafkaMaxWait      = 500 * time.Millisecond
	KafkaCommitEvery  = 1
	DefaultKafkaTopic = "shotgun_events"
	DefaultKafkaGroup = "sgbridge-trigger"
)

const (
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultPollBatch    = 50
)

const (
	CacheKeyPrefixDedup    = "sgbridge:dedup:event:"
	CacheKeyPollWatermark  = "sgbridge:trigger:last_event_id"
	DefaultDedupTTLSeconds = 86400
)

const (
	SyncURLFieldName = "sg_jira_sync_url"
	AdminResetPath   = "/admin/reset"
)

const (
	DefaultBridgePort  = 9090
	DefaultBridgeHost  = "127.0.0.1"
	DefaultMetricsPort = 9102
)

const (
	DefaultMongoDBName     = "sgbridge"
	DefaultAuditCollection = "sync_audit"
	DefaultMigrationsPath  = "migrations/postgres"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
	MaxRelayBodyBytes = 1024
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow  = "allow"
	FallbackReject = "reject"
	FallbackFail   = "fail"
)

const (
	SourceTypeKafka = "kafka"
	SourceTypePoll  = "poll"
)

const (
	AuditDriverPostgres = "postgres"
	AuditDriverMongoDB  = "mongodb"
	AuditDriverNone     = "none"
)

const (
	SyncerTaskIssue = "task_issue"
	SyncerLogOnly   = "log_only"
)

const (
	DirectionSGToJira = "sg2jira"
	DirectionJiraToSG = "jira2sg"
)
