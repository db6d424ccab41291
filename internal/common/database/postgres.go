// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lead-intake-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// LeadConversationsSchema creates the archive table used by archive-lead-conversation.
const LeadConversationsSchema = `
CREATE TABLE IF NOT EXISTS lead_conversations (
    id                UUID PRIMARY KEY,
    transcript_sha256 CHAR(64) NOT NULL UNIQUE,
    transcript        TEXT NOT NULL,
    lead_fields       JSONB NOT NULL DEFAULT '{}'::jsonb,
    score_total       INTEGER,
    priority          VARCHAR(1),
    crm_lead_id       BIGINT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_lead_conversations_crm_lead_id ON lead_conversations (crm_lead_id);`

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema applies the archive DDL. It is idempotent.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, LeadConversationsSchema); err != nil {
		return fmt.Errorf("failed to apply lead_conversations schema: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
