package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sgbridge/internal/constants"
	"sgbridge/pkg/metrics"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO sync_audit (id, direction, settings, entity_type, entity_key, session_uuid, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var detail *string
	if entry.Detail != "" {
		detail = &entry.Detail
	}

	var sessionUUID *string
	if entry.SessionUUID != "" {
		sessionUUID = &entry.SessionUUID
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		id, entry.Direction, entry.Settings,
		entry.EntityType, entry.EntityKey, sessionUUID,
		entry.Status, detail, createdAt,
	)
	s.recordQuery("insert_audit", start, err)

	if err != nil {
		metrics.IncAuditRecord(constants.AuditDriverPostgres, "error")
		return fmt.Errorf("failed to log audit entry: %w", err)
	}

	metrics.IncAuditRecord(constants.AuditDriverPostgres, "success")
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, direction, settings, entity_type, entity_key, COALESCE(session_uuid, ''), status, COALESCE(detail, ''), created_at
		FROM sync_audit
		ORDER BY created_at DESC
		LIMIT $1
	`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, clampLimit(limit))
	s.recordQuery("list_audit", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		var entry Entry
		if err := rows.Scan(
			&entry.ID, &entry.Direction, &entry.Settings,
			&entry.EntityType, &entry.EntityKey, &entry.SessionUUID,
			&entry.Status, &entry.Detail, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (s *PostgresStore) recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(constants.ServiceNameBridge, "postgres", operation, status)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceNameBridge, "postgres", operation, time.Since(start))
}
